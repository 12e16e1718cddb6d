package models

import (
	"time"

	"github.com/google/uuid"
)

// Urgency buckets an opportunity by how close its deadline is.
type Urgency string

const (
	UrgencyHigh   Urgency = "high"
	UrgencyMedium Urgency = "medium"
	UrgencyLow    Urgency = "low"
)

// ScanFrequency controls how often the alert radar re-scans the catalog.
type ScanFrequency string

const (
	ScanRealtime ScanFrequency = "realtime"
	ScanFrequent ScanFrequency = "frequent"
	ScanHourly   ScanFrequency = "hourly"
	ScanDaily    ScanFrequency = "daily"
)

// Interval maps a frequency to a tick duration. Unknown values fall back
// to hourly rather than failing, so a stale stored setting never stops
// the radar.
func (f ScanFrequency) Interval() time.Duration {
	switch f {
	case ScanRealtime:
		return time.Minute
	case ScanFrequent:
		return 15 * time.Minute
	case ScanHourly:
		return time.Hour
	case ScanDaily:
		return 24 * time.Hour
	default:
		return time.Hour
	}
}

// AlertSettings is the user-editable criteria bundle consumed by the
// alert radar. The radar snapshots it at tick start; edits become visible
// on the next scan.
type AlertSettings struct {
	MinAmount          float64       `json:"min_amount"`
	MaxAmount          float64       `json:"max_amount"`
	Categories         []Category    `json:"categories"` // empty = all
	Urgencies          []Urgency     `json:"urgencies"`  // empty = all
	PushNotifications  bool          `json:"push_notifications"`
	EmailNotifications bool          `json:"email_notifications"`
	ScanFrequency      ScanFrequency `json:"scan_frequency"`
}

// DefaultAlertSettings matches a fresh install: everything on, hourly scans.
func DefaultAlertSettings() AlertSettings {
	return AlertSettings{
		MaxAmount:         50000,
		PushNotifications: true,
		ScanFrequency:     ScanHourly,
	}
}

// Alert is a derived record surfaced by a radar scan. Never mutated after
// creation except the Read flag.
type Alert struct {
	ID            uuid.UUID  `json:"id"`
	OpportunityID uuid.UUID  `json:"opportunity_id"`
	Name          string     `json:"name"`
	Amount        *float64   `json:"amount"`
	Description   string     `json:"description"`
	Deadline      *time.Time `json:"deadline"`
	MatchPercent  int        `json:"match_percent"`
	Urgency       Urgency    `json:"urgency"`
	IsUrgent      bool       `json:"is_urgent"`
	Read          bool       `json:"read"`
	CreatedAt     time.Time  `json:"created_at"`
}
