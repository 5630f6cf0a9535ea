package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lesageromain2-creator/cafe-stockholm-commerce/internal/booking"
	"github.com/lesageromain2-creator/cafe-stockholm-commerce/internal/cart"
	"github.com/lesageromain2-creator/cafe-stockholm-commerce/internal/checkout"
	"github.com/lesageromain2-creator/cafe-stockholm-commerce/internal/commerce"
	"github.com/lesageromain2-creator/cafe-stockholm-commerce/internal/config"
	"github.com/lesageromain2-creator/cafe-stockholm-commerce/internal/db"
	"github.com/lesageromain2-creator/cafe-stockholm-commerce/internal/httpapi"
	"github.com/lesageromain2-creator/cafe-stockholm-commerce/internal/notify"
	"github.com/lesageromain2-creator/cafe-stockholm-commerce/internal/order"
	"github.com/lesageromain2-creator/cafe-stockholm-commerce/internal/payment"
	"github.com/lesageromain2-creator/cafe-stockholm-commerce/internal/poller"
)

func main() {
	cfg := config.Load()

	logger := log.New(os.Stdout, "[storefront] ", log.LstdFlags|log.Lshortfile)

	if err := db.RunMigrations(cfg.DatabaseDSN, logger); err != nil {
		logger.Fatalf("run migrations: %v", err)
	}

	database := db.MustOpen(cfg.DatabaseDSN)
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		logger.Fatalf("open order journal pool: %v", err)
	}
	defer pool.Close()
	journal := order.NewPostgresRepository(pool)

	// Notifications go to RabbitMQ when a broker is configured, to the
	// log otherwise.
	var sink notify.Sink = notify.NewLogSink(logger)
	if cfg.RabbitURL != "" {
		rabbitConn := notify.MustDialRabbit(cfg.RabbitURL)
		defer rabbitConn.Close()

		rabbitSink, err := notify.NewRabbitSink(rabbitConn, logger)
		if err != nil {
			logger.Fatalf("create notification sink: %v", err)
		}
		defer rabbitSink.Close()
		sink = rabbitSink
	}

	httpClient := &http.Client{Timeout: cfg.UpstreamTimeout}
	commerceClient := commerce.NewClient(cfg.CommerceAPIURL, httpClient)
	paymentClient := payment.NewClient(cfg.PaymentAPIURL, httpClient)

	carts := cart.NewManager(commerce.NewCartRemote(commerceClient), cart.Options{
		Snapshots: cart.NewPostgresSnapshotStore(database),
		Sink:      sink,
		Logger:    logger,
	})
	defer carts.Close()

	calc := booking.NewCalculator(commerce.NewAvailabilitySource(commerceClient))

	watcher := poller.New(poller.Config{
		Fetcher:  commerceClient,
		Journal:  journal,
		Sink:     sink,
		Logger:   logger,
		Interval: cfg.PollInterval,
		MaxWait:  cfg.PollMaxWait,
	})

	handler := httpapi.NewHandler(httpapi.Deps{
		Carts:      carts,
		Calculator: calc,
		Journal:    journal,
		Poller:     watcher,
		Logger:     logger,
		NewCheckout: func(sessionID string, c *cart.Store) *checkout.Orchestrator {
			return checkout.NewOrchestrator(checkout.Config{
				SessionID:  sessionID,
				Cart:       c,
				Calculator: calc,
				Orders:     commerceClient,
				Payments:   paymentClient,
				Journal:    journal,
				Sink:       sink,
				Logger:     logger,
				SuccessURL: cfg.SuccessURL,
				CancelURL:  cfg.CancelURL,
				TaxRate:    cfg.TaxRate,
			})
		},
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      httpapi.NewRouter(handler),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("storefront listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Printf("shutdown signal received")
	case err := <-errCh:
		logger.Fatalf("server error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown error: %v", err)
	}
}
