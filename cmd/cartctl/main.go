package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"storefront/internal/cartctl"
	"storefront/internal/config"
	"storefront/internal/guestcart"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	var (
		dbPath string
		key    string
	)
	flag.StringVar(&dbPath, "db", defaultDBPath(), "Path to the local cart database")
	flag.StringVar(&key, "cart", cartctl.DefaultKey, "Name of the local cart")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: cartctl [-db path] [-cart name] <add|remove|set|clear|show|export|destroy> [args]\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	logger := log.New(os.Stderr, "[cartctl] ", 0)
	policy, err := guestcart.ParseZeroQuantityPolicy(cfg.GuestZeroQuantity)
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		logger.Fatalf("create db dir: %v", err)
	}
	storage, err := guestcart.OpenSQLite(ctx, dbPath)
	if err != nil {
		logger.Fatalf("open cart db: %v", err)
	}
	defer storage.Close()

	r := &cartctl.Runner{
		Storage:  storage,
		Key:      key,
		Currency: cfg.Currency,
		Options:  []guestcart.Option{guestcart.WithZeroQuantityPolicy(policy)},
		Out:      os.Stdout,
	}
	if err := r.Run(ctx, flag.Args()); err != nil {
		storage.Close()
		logger.Fatalf("%v", err)
	}
}

func defaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "storefront-cart.db"
	}
	return filepath.Join(dir, "storefront", "cart.db")
}
