package models

import (
	"time"

	"github.com/google/uuid"
)

// UserProfile holds the matching-relevant facts about a user. It is a
// read-only input to scoring; nothing in the engine mutates it.
type UserProfile struct {
	UserID       uuid.UUID `json:"user_id"`
	Name         string    `json:"name"`
	FieldOfStudy string    `json:"field_of_study"`
	GradeLevel   string    `json:"grade_level"`
	GPA          *float64  `json:"gpa"`
	Country      string    `json:"country"`
	Gender       string    `json:"gender"`
	Avatar       string    `json:"avatar"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SavedSet is the set of opportunity IDs a user has saved. Its cardinality
// drives the progression ladder. Under normal use it only grows; Clear is
// the one operation that empties it.
type SavedSet map[uuid.UUID]struct{}

func NewSavedSet(ids ...uuid.UUID) SavedSet {
	s := make(SavedSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s SavedSet) Add(id uuid.UUID)      { s[id] = struct{}{} }
func (s SavedSet) Remove(id uuid.UUID)   { delete(s, id) }
func (s SavedSet) Has(id uuid.UUID) bool { _, ok := s[id]; return ok }
func (s SavedSet) Count() int            { return len(s) }

func (s SavedSet) Clear() {
	for id := range s {
		delete(s, id)
	}
}
