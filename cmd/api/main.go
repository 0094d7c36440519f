package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/guestcart"
	"storefront/internal/httpserver"
	"storefront/internal/payment"
	addressrepo "storefront/internal/repository/address"
	cartrepo "storefront/internal/repository/cart"
	customerrepo "storefront/internal/repository/customer"
	orderrepo "storefront/internal/repository/order"
	productrepo "storefront/internal/repository/product"
	tokenrepo "storefront/internal/repository/token"
	addresssvc "storefront/internal/service/address"
	anonymoussvc "storefront/internal/service/anonymous"
	cartsvc "storefront/internal/service/cart"
	customersvc "storefront/internal/service/customer"
	mergesvc "storefront/internal/service/merge"
	ordersvc "storefront/internal/service/order"
	productsvc "storefront/internal/service/product"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	zeroPolicy, err := guestcart.ParseZeroQuantityPolicy(cfg.GuestZeroQuantity)
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	dbpool, err := db.Connect(ctx, cfg.DBConnString, db.WithMaxConns(cfg.DBMaxConns))
	if err != nil {
		logger.Fatalf("connect to db: %v", err)
	}
	defer dbpool.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	pingCtx, cancelPing := context.WithTimeout(ctx, 3*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Fatalf("connect to redis: %v", err)
	}
	cancelPing()

	var notifier payment.Notifier = payment.NopNotifier{}
	if len(cfg.KafkaBrokers) > 0 {
		kn := payment.NewKafkaNotifier(cfg.KafkaBrokers, cfg.OrderTopic, cfg.Currency, logger)
		defer kn.Close()
		notifier = kn
	} else {
		logger.Printf("KAFKA_BROKERS not set, order notifications disabled")
	}

	productRepo := productrepo.NewPostgres(dbpool, logger)
	cartRepo := cartrepo.NewPostgres(dbpool, logger)
	addressRepo := addressrepo.NewPostgres(dbpool, logger)
	orderRepo := orderrepo.NewPostgres(dbpool, logger)
	customerRepo := customerrepo.NewPostgres(dbpool, logger)
	tokenRepo := tokenrepo.NewPostgres(dbpool, logger)

	guests := guestcart.NewRedisStorage(rdb, cfg.GuestCartTTL)
	customerService := customersvc.New(customerRepo, tokenRepo)

	srv, err := httpserver.New(cfg.HTTPAddr, logger, dbpool, httpserver.Deps{
		CustomerSvc:  customerService,
		AnonymousSvc: anonymoussvc.New(cfg.AnonTokenSecret, cfg.AnonTokenTTL),
		ProductSvc:   productsvc.New(productRepo),
		CartSvc:      cartsvc.New(cartRepo, productRepo, guests, logger, guestcart.WithZeroQuantityPolicy(zeroPolicy)),
		MergeSvc:     mergesvc.New(cartRepo, productRepo, logger),
		AddressSvc:   addresssvc.New(addressRepo, cartRepo, logger),
		OrderSvc:     ordersvc.New(orderRepo, notifier, logger),
		Currency:     cfg.Currency,
		CORSOrigins:  cfg.CORSOrigins,
		Readiness: []httpserver.ReadinessCheck{
			{Name: "redis", Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
		},
	})
	if err != nil {
		logger.Fatalf("init server: %v", err)
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go sweepTokens(sweepCtx, customerService, logger)

	serverErr := make(chan error, 1)
	go func() {
		logger.Printf("starting http server on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Printf("received signal %s, shutting down", sig)
	case err := <-serverErr:
		logger.Printf("server error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	} else {
		logger.Printf("server stopped")
	}
}

// sweepTokens drops expired customer tokens once an hour.
func sweepTokens(ctx context.Context, svc *customersvc.Service, logger *log.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.PurgeExpiredTokens(ctx)
			if err != nil {
				logger.Printf("token sweep failed: %v", err)
				continue
			}
			if n > 0 {
				logger.Printf("token sweep removed %d expired tokens", n)
			}
		}
	}
}
