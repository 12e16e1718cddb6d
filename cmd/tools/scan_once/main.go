package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/scholarseek/engine/internal/db"
	"github.com/scholarseek/engine/internal/logger"
	"github.com/scholarseek/engine/internal/models"
	"github.com/scholarseek/engine/internal/radar"
)

// Runs a single radar scan against the stored catalog with default
// alert settings and prints the produced alerts.
func main() {
	ctx := context.Background()
	pool, err := db.Connect(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	zl, err := logger.New(false, os.Getenv("LOG_DEBUG") == "true")
	if err != nil {
		log.Fatal(err)
	}
	defer zl.Sync()

	store := db.NewStore(pool)
	r := radar.New(radar.CatalogProviderFunc(store.ActiveOpportunities), &radar.LogSink{Logger: zl}, zl)
	r.UpdateSettings(models.DefaultAlertSettings())

	result, err := r.ScanOnce(ctx)
	if err != nil {
		log.Fatalf("Scan failed: %v", err)
	}
	if result.FetchFailed {
		log.Fatal("Catalog fetch failed; nothing scanned")
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Opportunity", "Match", "Urgency", "Amount", "Deadline"})

	for _, alert := range r.Alerts() {
		amount := "-"
		if alert.Amount != nil {
			amount = fmt.Sprintf("$%.0f", *alert.Amount)
		}
		deadline := "rolling"
		if alert.Deadline != nil {
			deadline = alert.Deadline.Format("2006-01-02")
		}
		t.AppendRow(table.Row{alert.Name, fmt.Sprintf("%d%%", alert.MatchPercent), alert.Urgency, amount, deadline})
	}
	t.Render()

	log.Printf("Scanned %d opportunities, %d new alerts", result.Scanned, len(result.NewAlerts))
}
