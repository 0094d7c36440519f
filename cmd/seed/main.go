package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"

	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/seed"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "[seed] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString, db.WithMaxConns(2))
	if err != nil {
		logger.Fatalf("connect db: %v", err)
	}
	defer pool.Close()

	if err := seed.Apply(ctx, pool); err != nil {
		logger.Fatalf("seed catalog and demo customer: %v", err)
	}

	logger.Printf("seeded catalog; demo customer %s / %s", seed.DemoEmail, seed.DemoPassword)
}
