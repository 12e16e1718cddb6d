package main

import (
	"context"
	"log"
	"os"

	"github.com/scholarseek/engine/internal/api"
	"github.com/scholarseek/engine/internal/db"
	"github.com/scholarseek/engine/internal/logger"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	zl, err := logger.New(os.Getenv("LOG_JSON") == "true", os.Getenv("LOG_DEBUG") == "true")
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zl.Sync()

	srv := api.NewServer(pool, zl)
	log.Printf("Server starting on port %s...", port)
	if err := srv.Start(port); err != nil {
		log.Fatal(err)
	}
}
