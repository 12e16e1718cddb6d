package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/scholarseek/engine/internal/models"
)

// Saver persists imported opportunities. Satisfied by *db.Store.
type Saver interface {
	UpsertOpportunity(ctx context.Context, opp models.Opportunity) error
}

// RawRecord is one entry of a catalog file. Amount and deadline are
// free text because catalog exports are rarely clean.
type RawRecord struct {
	Title        string   `json:"title"`
	Organization string   `json:"organization"`
	Description  string   `json:"description"`
	Category     string   `json:"category"`
	Type         string   `json:"type"`
	Amount       string   `json:"amount"`
	Stipend      string   `json:"stipend"`
	Deadline     string   `json:"deadline"`
	Requirements []string `json:"requirements"`
	Website      string   `json:"website"`
}

// FromRaw normalizes a raw record into a storable opportunity. The
// description is stored as plain text: sanitized first so script and
// style content is gone, then stripped of markup, so downstream
// substring matching never trips over tags.
func FromRaw(raw RawRecord, now time.Time) (models.Opportunity, error) {
	title := normalizeSpace(raw.Title)
	if title == "" {
		return models.Opportunity{}, fmt.Errorf("record has no title")
	}

	return models.Opportunity{
		ID:           uuid.New(),
		Title:        title,
		Organization: normalizeSpace(raw.Organization),
		Description:  HTMLToText(SanitizeHTML(raw.Description)),
		Category:     normalizeCategory(raw.Category),
		Type:         normalizeType(raw.Type),
		Amount:       parseAmount(raw.Amount),
		Stipend:      parseAmount(raw.Stipend),
		Deadline:     parseDeadline(raw.Deadline),
		Requirements: cleanRequirements(raw.Requirements),
		Website:      normalizeSpace(raw.Website),
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// ImportStats summarizes one import run.
type ImportStats struct {
	Imported int
	Skipped  int
}

// Import reads a JSON array of raw records and upserts each valid one.
// Invalid records are skipped and counted, not fatal.
func Import(ctx context.Context, saver Saver, r io.Reader) (ImportStats, error) {
	var raws []RawRecord
	if err := json.NewDecoder(r).Decode(&raws); err != nil {
		return ImportStats{}, fmt.Errorf("decoding catalog: %w", err)
	}

	var stats ImportStats
	now := time.Now().UTC()
	for _, raw := range raws {
		opp, err := FromRaw(raw, now)
		if err != nil {
			stats.Skipped++
			continue
		}
		if err := saver.UpsertOpportunity(ctx, opp); err != nil {
			return stats, fmt.Errorf("saving %q: %w", opp.Title, err)
		}
		stats.Imported++
	}
	return stats, nil
}

// ImportFile imports a catalog file from disk.
func ImportFile(ctx context.Context, saver Saver, path string) (ImportStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImportStats{}, fmt.Errorf("opening catalog file: %w", err)
	}
	defer f.Close()
	return Import(ctx, saver, f)
}
