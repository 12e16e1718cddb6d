package main

import (
	"context"
	"log"
	"os"

	"github.com/scholarseek/engine/internal/catalog"
	"github.com/scholarseek/engine/internal/db"
)

// Imports a JSON catalog file, or seeds the starter catalog when run
// with --seed.
func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: import_catalog <file.json> | --seed")
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	store := db.NewStore(pool)

	if os.Args[1] == "--seed" {
		count, err := catalog.Seed(ctx, store)
		if err != nil {
			log.Fatalf("Seed failed: %v", err)
		}
		log.Printf("Seeded %d opportunities", count)
		return
	}

	stats, err := catalog.ImportFile(ctx, store, os.Args[1])
	if err != nil {
		log.Fatalf("Import failed: %v", err)
	}
	log.Printf("Imported %d opportunities (%d skipped)", stats.Imported, stats.Skipped)
}
