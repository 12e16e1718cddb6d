package models

import (
	"time"

	"github.com/google/uuid"
)

// Category classifies an opportunity by field.
type Category string

const (
	CategorySTEM       Category = "stem"
	CategoryArts       Category = "arts"
	CategoryHumanities Category = "humanities"
	CategoryBusiness   Category = "business"
	CategoryGeneral    Category = "general"
)

// Categories lists every known category in display order.
var Categories = []Category{
	CategorySTEM,
	CategoryArts,
	CategoryHumanities,
	CategoryBusiness,
	CategoryGeneral,
}

// OpportunityType distinguishes scholarships from paid positions.
type OpportunityType string

const (
	TypeScholarship OpportunityType = "scholarship"
	TypeJob         OpportunityType = "job"
	TypeInternship  OpportunityType = "internship"
	TypeOther       OpportunityType = "other"
)

// Opportunity is a single scholarship, job or internship record.
// Records are immutable once loaded into a scan.
type Opportunity struct {
	ID           uuid.UUID       `json:"id"`
	Title        string          `json:"title"`
	Organization string          `json:"organization"`
	Description  string          `json:"description"` // plain text, markup stripped on import
	Category     Category        `json:"category"`
	Type         OpportunityType `json:"type"`
	Amount       *float64        `json:"amount"`  // award value, nil when unknown
	Stipend      *float64        `json:"stipend"` // hourly, jobs/internships only
	Deadline     *time.Time      `json:"deadline"`
	Requirements []string        `json:"requirements"`
	Website      string          `json:"website"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
