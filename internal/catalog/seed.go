package catalog

import (
	"context"
	"fmt"
	"time"
)

// seedRecords is a small starter catalog for fresh databases and demos.
var seedRecords = []RawRecord{
	{
		Title:        "National STEM Excellence Scholarship",
		Organization: "Future Scientists Foundation",
		Description:  "<p>Awarded to students pursuing degrees in science, technology, engineering or mathematics with a strong academic record.</p>",
		Category:     "stem",
		Type:         "scholarship",
		Amount:       "$10,000",
		Deadline:     "2026-12-01",
		Requirements: []string{"Personal essay", "Academic transcript", "GPA 3.5 or higher"},
		Website:      "https://example.org/stem-excellence",
	},
	{
		Title:        "Emerging Artists Grant",
		Organization: "Arts Council",
		Description:  "<p>Supports undergraduate students in visual arts, music or design who submit a portfolio of original work.</p>",
		Category:     "arts",
		Type:         "scholarship",
		Amount:       "$5,000",
		Deadline:     "2026-11-15",
		Requirements: []string{"Portfolio", "Recommendation letter"},
		Website:      "https://example.org/emerging-artists",
	},
	{
		Title:        "Business Leaders of Tomorrow Award",
		Organization: "Commerce Trust",
		Description:  "<p>For students in business, finance or entrepreneurship programs. Finalists complete a short interview.</p>",
		Category:     "business",
		Type:         "scholarship",
		Amount:       "up to $7,500",
		Deadline:     "2027-01-31",
		Requirements: []string{"Essay", "Interview", "Resume"},
		Website:      "https://example.org/business-leaders",
	},
	{
		Title:        "Humanities Research Fellowship",
		Organization: "Open Inquiry Institute",
		Description:  "<p>Funds an independent summer research project in history, literature or philosophy.</p>",
		Category:     "humanities",
		Type:         "scholarship",
		Amount:       "$4,000",
		Deadline:     "2026-10-30",
		Requirements: []string{"Research proposal essay", "Transcript"},
		Website:      "https://example.org/humanities-fellowship",
	},
	{
		Title:        "Community Impact Scholarship",
		Organization: "Local Futures Fund",
		Description:  "<p>Open to high school seniors in the USA with a record of community service. No essay required.</p>",
		Category:     "general",
		Type:         "scholarship",
		Amount:       "$2,500",
		Deadline:     "2026-11-01",
		Requirements: []string{"Proof of community service"},
		Website:      "https://example.org/community-impact",
	},
	{
		Title:        "Software Engineering Summer Internship",
		Organization: "Northbridge Labs",
		Description:  "<p>Paid internship for undergraduate computer science students. Includes a take-home project and a video introduction.</p>",
		Category:     "stem",
		Type:         "internship",
		Stipend:      "$6,000",
		Deadline:     "2027-02-15",
		Requirements: []string{"Resume", "Video introduction", "Coding project"},
		Website:      "https://example.org/swe-internship",
	},
}

// Seed upserts the starter catalog. Safe to call more than once; titles
// repeat but IDs differ, so callers should seed empty databases only.
func Seed(ctx context.Context, saver Saver) (int, error) {
	now := time.Now().UTC()
	count := 0
	for _, raw := range seedRecords {
		opp, err := FromRaw(raw, now)
		if err != nil {
			return count, fmt.Errorf("seed record %q: %w", raw.Title, err)
		}
		if err := saver.UpsertOpportunity(ctx, opp); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}
