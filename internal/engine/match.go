package engine

import (
	"strings"
	"time"

	"github.com/scholarseek/engine/internal/models"
)

// MatchTier is the qualitative band shown to the user for a percentage.
type MatchTier string

const (
	TierExcellent MatchTier = "excellent" // >= 90
	TierGood      MatchTier = "good"      // 70..89
	TierFair      MatchTier = "fair"      // < 70
)

// Deadline windows for urgency classification.
const (
	urgencyHighWindow   = 4 * 24 * time.Hour
	urgencyMediumWindow = 14 * 24 * time.Hour
)

// Match percentage component weights. Missing amount or deadline simply
// forfeits that component; scoring never fails on incomplete records.
const (
	weightCategory     = 40
	weightFieldOfStudy = 25
	weightAmountFit    = 20
	weightUrgency      = 15
)

// MatchPercent scores an (opportunity, profile, settings) triple on a
// 0-100 scale: category fit against the alert settings, field-of-study
// overlap with the profile, amount fit against the settings range, and
// deadline urgency.
func MatchPercent(opp models.Opportunity, profile models.UserProfile, settings models.AlertSettings, now time.Time) int {
	score := 0

	if matchesCategory(opp, settings.Categories) {
		score += weightCategory
	}

	score += fieldOfStudyPoints(opp, profile.FieldOfStudy)

	if opp.Amount != nil && matchesAmountRange(opp, settings.MinAmount, settings.MaxAmount) {
		score += weightAmountFit
	}

	switch UrgencyFor(opp.Deadline, now) {
	case models.UrgencyHigh:
		score += weightUrgency
	case models.UrgencyMedium:
		score += weightUrgency * 2 / 3
	case models.UrgencyLow:
		if opp.Deadline != nil {
			score += weightUrgency / 3
		}
	}

	if score > 100 {
		score = 100
	}
	return score
}

// fieldOfStudyPoints gives full credit when the profile's field appears
// in the opportunity text, and partial credit for general-category
// opportunities, which are open to any field.
func fieldOfStudyPoints(opp models.Opportunity, field string) int {
	field = strings.ToLower(strings.TrimSpace(field))
	if field == "" {
		return 0
	}

	haystack := strings.ToLower(opp.Title + " " + opp.Description + " " + strings.Join(opp.Requirements, " "))
	if strings.Contains(haystack, field) {
		return weightFieldOfStudy
	}
	if opp.Category == models.CategoryGeneral {
		return weightFieldOfStudy / 2
	}
	return 0
}

// TierFor maps a percentage to its qualitative band.
func TierFor(percent int) MatchTier {
	switch {
	case percent >= 90:
		return TierExcellent
	case percent >= 70:
		return TierGood
	default:
		return TierFair
	}
}

// TierDescription is the user-facing blurb for a tier.
func TierDescription(tier MatchTier) string {
	switch tier {
	case TierExcellent:
		return "perfectly fits your profile"
	case TierGood:
		return "a strong match worth a close look"
	default:
		return "a possible match"
	}
}

// UrgencyFor classifies time-to-deadline. A missing deadline is low
// urgency; an already-passed deadline counts as high (the window has
// effectively collapsed to nothing).
func UrgencyFor(deadline *time.Time, now time.Time) models.Urgency {
	if deadline == nil {
		return models.UrgencyLow
	}
	remaining := deadline.Sub(now)
	switch {
	case remaining <= urgencyHighWindow:
		return models.UrgencyHigh
	case remaining <= urgencyMediumWindow:
		return models.UrgencyMedium
	default:
		return models.UrgencyLow
	}
}

// IsUrgent reports whether a deadline falls in the high-urgency window.
func IsUrgent(deadline *time.Time, now time.Time) bool {
	return UrgencyFor(deadline, now) == models.UrgencyHigh
}

// IsPerfectMatch reports whether the displayed opportunity is the
// top-ranked element of the already-sorted matched list. Highlighting is
// defined by this first-element rule, not a percentage threshold.
func IsPerfectMatch(displayed models.Opportunity, matched []models.Opportunity) bool {
	return len(matched) > 0 && matched[0].ID == displayed.ID
}
