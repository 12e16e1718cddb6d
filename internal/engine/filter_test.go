package engine

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/scholarseek/engine/internal/models"
)

func amount(v float64) *float64 { return &v }

func timePtr(t time.Time) *time.Time { return &t }

func opp(title string, mutate func(*models.Opportunity)) models.Opportunity {
	o := models.Opportunity{
		ID:       uuid.New(),
		Title:    title,
		Category: models.CategoryGeneral,
		Type:     models.TypeScholarship,
	}
	if mutate != nil {
		mutate(&o)
	}
	return o
}

var filterNow = time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)

func TestFilter_MinAmountSortedDesc(t *testing.T) {
	catalog := []models.Opportunity{
		opp("Small", func(o *models.Opportunity) { o.Amount = amount(1000) }),
		opp("Medium", func(o *models.Opportunity) { o.Amount = amount(6000) }),
		opp("Large", func(o *models.Opportunity) { o.Amount = amount(9000) }),
	}

	got := Filter(catalog, Criteria{MinAmount: 5000, SortBy: SortAmountDesc}, filterNow)
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if *got[0].Amount != 9000 || *got[1].Amount != 6000 {
		t.Fatalf("expected [9000 6000], got [%v %v]", *got[0].Amount, *got[1].Amount)
	}
}

func TestFilter_ResultIsSubsetAndDeterministic(t *testing.T) {
	catalog := []models.Opportunity{
		opp("A", func(o *models.Opportunity) { o.Amount = amount(2000); o.Category = models.CategorySTEM }),
		opp("B", func(o *models.Opportunity) { o.Amount = amount(8000) }),
		opp("C", nil),
	}
	criteria := Criteria{Categories: []models.Category{models.CategorySTEM}}

	first := Filter(catalog, criteria, filterNow)
	second := Filter(catalog, criteria, filterNow)

	if len(first) != len(second) {
		t.Fatalf("filtering is not deterministic: %d vs %d", len(first), len(second))
	}

	inCatalog := make(map[uuid.UUID]bool, len(catalog))
	for _, o := range catalog {
		inCatalog[o.ID] = true
	}
	for i, o := range first {
		if !inCatalog[o.ID] {
			t.Fatalf("result %d not in catalog", i)
		}
		if o.ID != second[i].ID {
			t.Fatalf("ordering differs between identical runs at %d", i)
		}
	}
}

func TestFilter_EmptyCriteriaMatchesAll(t *testing.T) {
	catalog := []models.Opportunity{opp("A", nil), opp("B", nil)}
	got := Filter(catalog, Criteria{}, filterNow)
	if len(got) != len(catalog) {
		t.Fatalf("empty criteria should match all, got %d of %d", len(got), len(catalog))
	}
}

func TestFilter_TextSearchCoversRequirements(t *testing.T) {
	catalog := []models.Opportunity{
		opp("Robotics Grant", nil),
		opp("Art Award", func(o *models.Opportunity) {
			o.Requirements = []string{"Portfolio of ROBOTICS projects"}
		}),
		opp("Other", nil),
	}

	got := Filter(catalog, Criteria{SearchText: "robotics"}, filterNow)
	if len(got) != 2 {
		t.Fatalf("expected title + requirement hits, got %d", len(got))
	}
}

func TestFilter_NoAmountExcludedWhenRangeActive(t *testing.T) {
	catalog := []models.Opportunity{
		opp("Has amount", func(o *models.Opportunity) { o.Amount = amount(3000) }),
		opp("No amount", nil),
	}

	got := Filter(catalog, Criteria{MinAmount: 1000, MaxAmount: 5000}, filterNow)
	if len(got) != 1 || got[0].Title != "Has amount" {
		t.Fatalf("amount filter must drop nil amounts, got %v", got)
	}
}

func TestFilter_AmountRangeInclusive(t *testing.T) {
	catalog := []models.Opportunity{
		opp("Edge", func(o *models.Opportunity) { o.Amount = amount(5000) }),
	}
	if got := Filter(catalog, Criteria{MinAmount: 5000, MaxAmount: 5000}, filterNow); len(got) != 1 {
		t.Fatal("range bounds must be inclusive")
	}
}

func TestFilter_DeadlineThisMonthToggle(t *testing.T) {
	catalog := []models.Opportunity{
		opp("This month", func(o *models.Opportunity) {
			o.Deadline = timePtr(time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC))
		}),
		opp("Next month", func(o *models.Opportunity) {
			o.Deadline = timePtr(time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC))
		}),
		opp("Already passed", func(o *models.Opportunity) {
			o.Deadline = timePtr(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
		}),
		opp("No deadline", nil),
	}

	got := Filter(catalog, Criteria{DeadlineThisMonth: true}, filterNow)
	if len(got) != 1 || got[0].Title != "This month" {
		t.Fatalf("expected only the in-month future deadline, got %v", got)
	}
}

func TestFilter_NoEssayToggle(t *testing.T) {
	catalog := []models.Opportunity{
		opp("Essay", func(o *models.Opportunity) { o.Requirements = []string{"An essay about you"} }),
		opp("Writing", func(o *models.Opportunity) { o.Requirements = []string{"Creative writing sample"} }),
		opp("Clean", func(o *models.Opportunity) { o.Requirements = []string{"Transcript"} }),
	}

	got := Filter(catalog, Criteria{NoEssay: true}, filterNow)
	if len(got) != 1 || got[0].Title != "Clean" {
		t.Fatalf("no-essay toggle must exclude essay and writing, got %v", got)
	}
}

func TestFilter_HighAmountToggle(t *testing.T) {
	catalog := []models.Opportunity{
		opp("Low", func(o *models.Opportunity) { o.Amount = amount(4999) }),
		opp("Edge", func(o *models.Opportunity) { o.Amount = amount(5000) }),
		opp("Nil", nil),
	}

	got := Filter(catalog, Criteria{HighAmount: true}, filterNow)
	if len(got) != 1 || got[0].Title != "Edge" {
		t.Fatalf("high-amount toggle is >= 5000, got %v", got)
	}
}

func TestFilter_GPABucketFreeTextHeuristic(t *testing.T) {
	catalog := []models.Opportunity{
		opp("GPA 3.5", func(o *models.Opportunity) { o.Requirements = []string{"Minimum GPA of 3.5"} }),
		opp("GPA 3.0", func(o *models.Opportunity) { o.Requirements = []string{"GPA 3.0 or above"} }),
		opp("Silent", func(o *models.Opportunity) { o.Requirements = []string{"Transcript"} }),
	}

	got := Filter(catalog, Criteria{GPABucket: "3.5"}, filterNow)
	if len(got) != 1 || got[0].Title != "GPA 3.5" {
		t.Fatalf("gpa bucket matches free-text tokens only, got %v", got)
	}
}

func TestFilter_CountryAndEducationKeywords(t *testing.T) {
	catalog := []models.Opportunity{
		opp("US only", func(o *models.Opportunity) { o.Requirements = []string{"Must be a US citizen"} }),
		opp("Open", func(o *models.Opportunity) { o.Requirements = []string{"Open worldwide"} }),
	}

	got := Filter(catalog, Criteria{Country: "usa"}, filterNow)
	if len(got) != 1 || got[0].Title != "US only" {
		t.Fatalf("country keyword filter failed, got %v", got)
	}

	catalog = []models.Opportunity{
		opp("Grad", func(o *models.Opportunity) { o.Requirements = []string{"Open to PhD candidates"} }),
		opp("Any", nil),
	}
	got = Filter(catalog, Criteria{EducationLevel: "graduate"}, filterNow)
	if len(got) != 1 || got[0].Title != "Grad" {
		t.Fatalf("education keyword filter failed, got %v", got)
	}
}

func TestFilter_SortDeadlineMissingLast(t *testing.T) {
	catalog := []models.Opportunity{
		opp("None", nil),
		opp("Late", func(o *models.Opportunity) {
			o.Deadline = timePtr(time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC))
		}),
		opp("Soon", func(o *models.Opportunity) {
			o.Deadline = timePtr(time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC))
		}),
	}

	got := Filter(catalog, Criteria{SortBy: SortDeadline}, filterNow)
	if got[0].Title != "Soon" || got[1].Title != "Late" || got[2].Title != "None" {
		t.Fatalf("deadline sort wrong: %s %s %s", got[0].Title, got[1].Title, got[2].Title)
	}
}

func TestFilter_SortIsStable(t *testing.T) {
	catalog := []models.Opportunity{
		opp("First", func(o *models.Opportunity) { o.Amount = amount(1000) }),
		opp("Second", func(o *models.Opportunity) { o.Amount = amount(1000) }),
		opp("Third", func(o *models.Opportunity) { o.Amount = amount(1000) }),
	}

	for _, key := range []SortKey{SortAmountDesc, SortAmountAsc, SortEffort, SortDeadline} {
		got := Filter(catalog, Criteria{SortBy: key}, filterNow)
		if got[0].Title != "First" || got[1].Title != "Second" || got[2].Title != "Third" {
			t.Fatalf("sort %q not stable: %s %s %s", key, got[0].Title, got[1].Title, got[2].Title)
		}
	}
}

func TestFilter_SortEffortEasiestFirst(t *testing.T) {
	catalog := []models.Opportunity{
		opp("Hard", func(o *models.Opportunity) {
			o.Requirements = []string{"Interview", "Portfolio"}
		}),
		opp("Easy", func(o *models.Opportunity) { o.Requirements = []string{"Transcript"} }),
	}

	got := Filter(catalog, Criteria{SortBy: SortEffort}, filterNow)
	if got[0].Title != "Easy" {
		t.Fatalf("expected easiest first, got %s", got[0].Title)
	}
}

func TestFilter_SortNameCaseInsensitive(t *testing.T) {
	catalog := []models.Opportunity{
		opp("beta", nil),
		opp("Alpha", nil),
	}

	got := Filter(catalog, Criteria{SortBy: SortName}, filterNow)
	if got[0].Title != "Alpha" {
		t.Fatalf("expected Alpha first, got %s", got[0].Title)
	}
}
