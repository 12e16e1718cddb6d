package catalog

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"github.com/scholarseek/engine/internal/models"
)

var htmlPolicy = bluemonday.UGCPolicy()

// SanitizeHTML strips unsafe tags and attributes from an opportunity
// description before it is stored or rendered.
func SanitizeHTML(html string) string {
	return htmlPolicy.Sanitize(html)
}

// HTMLToText converts HTML to plain text, collapsing whitespace. Used so
// free-text matching never trips over markup.
func HTMLToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	return normalizeSpace(doc.Text())
}

// normalizeSpace collapses runs of whitespace into single spaces and trims.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// cleanRequirements trims, de-duplicates (case-insensitive) and drops
// empty requirement entries while preserving order.
func cleanRequirements(reqs []string) []string {
	seen := make(map[string]struct{}, len(reqs))
	var out []string
	for _, raw := range reqs {
		req := normalizeSpace(raw)
		if req == "" {
			continue
		}
		key := strings.ToLower(req)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, req)
	}
	return out
}

var numberRegex = regexp.MustCompile(`[\d,]+(?:\.\d+)?`)

// parseAmount extracts a single award value from free text like
// "$5,000" or "up to 10,000 USD". Returns nil when no usable number is
// present.
func parseAmount(text string) *float64 {
	matches := numberRegex.FindAllString(text, -1)

	var best float64
	for _, m := range matches {
		clean := strings.ReplaceAll(m, ",", "")
		if val, err := strconv.ParseFloat(clean, 64); err == nil && val > best {
			best = val
		}
	}

	if best <= 0 {
		return nil
	}
	return &best
}

var deadlineFormats = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"January 2, 2006",
	"Jan 2, 2006",
	"02/01/2006",
}

// parseDeadline tries the known date layouts in order. Returns nil when
// nothing parses; a missing deadline is a valid state.
func parseDeadline(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, format := range deadlineFormats {
		if t, err := time.Parse(format, raw); err == nil {
			utc := t.UTC()
			return &utc
		}
	}
	return nil
}

func normalizeCategory(raw string) models.Category {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "stem", "science", "technology", "engineering", "math":
		return models.CategorySTEM
	case "arts", "art", "music", "design":
		return models.CategoryArts
	case "humanities", "history", "literature":
		return models.CategoryHumanities
	case "business", "finance", "entrepreneurship":
		return models.CategoryBusiness
	default:
		return models.CategoryGeneral
	}
}

func normalizeType(raw string) models.OpportunityType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "scholarship", "grant", "fellowship":
		return models.TypeScholarship
	case "job":
		return models.TypeJob
	case "internship":
		return models.TypeInternship
	default:
		return models.TypeOther
	}
}
