package engine

import (
	"sort"
	"strings"
	"time"

	"github.com/scholarseek/engine/internal/models"
)

// SortKey selects the ordering applied after filtering.
type SortKey string

const (
	SortDeadline   SortKey = "deadline"    // soonest first, missing deadlines last
	SortAmountDesc SortKey = "amount_desc" // largest award first
	SortAmountAsc  SortKey = "amount_asc"
	SortEffort     SortKey = "effort" // easiest application first
	SortName       SortKey = "name"   // case-insensitive A-Z
)

// HighAmountThreshold is the award floor for the "high amount" quick toggle.
const HighAmountThreshold = 5000

// Criteria bundles every filter the discovery screens can activate at
// once. Zero values mean "not active"; an empty criteria set matches the
// whole catalog.
type Criteria struct {
	SearchText        string
	Categories        []models.Category
	MinAmount         float64
	MaxAmount         float64
	GPABucket         string
	Country           string
	EducationLevel    string
	DeadlineThisMonth bool
	NoEssay           bool
	HighAmount        bool
	SortBy            SortKey
}

// gpaBucketTokens maps a GPA bucket to the numeric tokens searched for in
// requirement text. Opportunities have no structured GPA field, so this
// is a deliberately loose free-text heuristic carried over from the
// product; see DESIGN.md before "fixing" it.
var gpaBucketTokens = map[string][]string{
	"2.5": {"2.5", "2.50"},
	"3.0": {"3.0", "3.00"},
	"3.5": {"3.5", "3.50"},
	"4.0": {"4.0", "4.00"},
}

// countryKeywords maps a country choice to requirement-text hints. Same
// free-text heuristic as GPA buckets.
var countryKeywords = map[string][]string{
	"usa":    {"us citizen", "u.s. citizen", "united states", "usa"},
	"uk":     {"uk resident", "united kingdom", "british"},
	"canada": {"canada", "canadian"},
}

var educationKeywords = map[string][]string{
	"high_school":   {"high school", "secondary school"},
	"undergraduate": {"undergraduate", "bachelor", "college student"},
	"graduate":      {"graduate student", "master", "phd", "doctoral"},
}

// Filter applies the logical AND of every active criterion to the
// catalog, then sorts. The result is always a (possibly empty) subset of
// the input; predicates are independent, so only the sort pass is
// order-sensitive. The input slice is never mutated.
func Filter(catalog []models.Opportunity, c Criteria, now time.Time) []models.Opportunity {
	out := make([]models.Opportunity, 0, len(catalog))
	for _, opp := range catalog {
		if matchesAll(opp, c, now) {
			out = append(out, opp)
		}
	}

	sortOpportunities(out, c.SortBy)
	return out
}

func matchesAll(opp models.Opportunity, c Criteria, now time.Time) bool {
	if !matchesSearch(opp, c.SearchText) {
		return false
	}
	if !matchesCategory(opp, c.Categories) {
		return false
	}
	if !matchesAmountRange(opp, c.MinAmount, c.MaxAmount) {
		return false
	}
	if c.DeadlineThisMonth && !deadlineThisMonth(opp, now) {
		return false
	}
	if c.NoEssay && requiresEssay(opp) {
		return false
	}
	if c.HighAmount && (opp.Amount == nil || *opp.Amount < HighAmountThreshold) {
		return false
	}
	if !matchesTokenSet(opp, gpaBucketTokens, c.GPABucket) {
		return false
	}
	if !matchesTokenSet(opp, countryKeywords, c.Country) {
		return false
	}
	if !matchesTokenSet(opp, educationKeywords, c.EducationLevel) {
		return false
	}
	return true
}

// matchesSearch is a case-insensitive substring match against title,
// description and every requirement entry. Empty search matches all.
func matchesSearch(opp models.Opportunity, search string) bool {
	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return true
	}
	if strings.Contains(strings.ToLower(opp.Title), search) {
		return true
	}
	if strings.Contains(strings.ToLower(opp.Description), search) {
		return true
	}
	for _, req := range opp.Requirements {
		if strings.Contains(strings.ToLower(req), search) {
			return true
		}
	}
	return false
}

// matchesCategory treats an empty selection as "all categories".
func matchesCategory(opp models.Opportunity, selected []models.Category) bool {
	if len(selected) == 0 {
		return true
	}
	for _, cat := range selected {
		if opp.Category == cat {
			return true
		}
	}
	return false
}

// matchesAmountRange is inclusive on both ends. Opportunities without an
// amount are excluded whenever an amount filter is active.
func matchesAmountRange(opp models.Opportunity, min, max float64) bool {
	if min <= 0 && max <= 0 {
		return true
	}
	if opp.Amount == nil {
		return false
	}
	if min > 0 && *opp.Amount < min {
		return false
	}
	if max > 0 && *opp.Amount > max {
		return false
	}
	return true
}

// deadlineThisMonth: now < deadline <= end of the current calendar month.
func deadlineThisMonth(opp models.Opportunity, now time.Time) bool {
	if opp.Deadline == nil {
		return false
	}
	endOfMonth := time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, now.Location())
	return opp.Deadline.After(now) && opp.Deadline.Before(endOfMonth)
}

func requiresEssay(opp models.Opportunity) bool {
	for _, req := range opp.Requirements {
		lower := strings.ToLower(req)
		if strings.Contains(lower, "essay") || strings.Contains(lower, "writing") {
			return true
		}
	}
	return false
}

// matchesTokenSet checks whether any of the chosen bucket's tokens appear
// inside a requirement string. An empty or unknown choice is a no-op.
func matchesTokenSet(opp models.Opportunity, table map[string][]string, choice string) bool {
	choice = strings.ToLower(strings.TrimSpace(choice))
	if choice == "" {
		return true
	}
	tokens, ok := table[choice]
	if !ok {
		return true
	}
	for _, req := range opp.Requirements {
		lower := strings.ToLower(req)
		for _, token := range tokens {
			if strings.Contains(lower, token) {
				return true
			}
		}
	}
	return false
}

// sortOpportunities runs a stable sort so that equal-key items keep their
// catalog order under every mode.
func sortOpportunities(opps []models.Opportunity, key SortKey) {
	switch key {
	case SortDeadline:
		sort.SliceStable(opps, func(i, j int) bool {
			a, b := opps[i].Deadline, opps[j].Deadline
			if a == nil {
				return false
			}
			if b == nil {
				return true
			}
			return a.Before(*b)
		})
	case SortAmountDesc:
		sort.SliceStable(opps, func(i, j int) bool {
			return amountOrZero(opps[i]) > amountOrZero(opps[j])
		})
	case SortAmountAsc:
		sort.SliceStable(opps, func(i, j int) bool {
			return amountOrZero(opps[i]) < amountOrZero(opps[j])
		})
	case SortEffort:
		type scored struct {
			opp    models.Opportunity
			effort int
		}
		keyed := make([]scored, len(opps))
		for i, opp := range opps {
			keyed[i] = scored{opp: opp, effort: RankingEffortScore(opp.Requirements)}
		}
		sort.SliceStable(keyed, func(i, j int) bool {
			return keyed[i].effort < keyed[j].effort
		})
		for i := range keyed {
			opps[i] = keyed[i].opp
		}
	case SortName:
		sort.SliceStable(opps, func(i, j int) bool {
			return strings.ToLower(opps[i].Title) < strings.ToLower(opps[j].Title)
		})
	}
}

func amountOrZero(opp models.Opportunity) float64 {
	if opp.Amount == nil {
		return 0
	}
	return *opp.Amount
}
