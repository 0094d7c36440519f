package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"

	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/migrate"
)

func main() {
	down := flag.Bool("down", false, "Revert the most recent migration instead of applying")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "[migrate] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Fatalf("connect db: %v", err)
	}
	defer pool.Close()

	if *down {
		if err := migrate.Rollback(ctx, pool); err != nil {
			logger.Fatalf("rollback migration: %v", err)
		}
	} else if err := migrate.Apply(ctx, pool); err != nil {
		logger.Fatalf("apply migrations: %v", err)
	}

	version, dirty, err := migrate.Version(ctx, pool)
	if err != nil {
		logger.Fatalf("read schema version: %v", err)
	}
	logger.Printf("schema at version %d (dirty=%t)", version, dirty)
}
