package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/config"
	"github.com/fjod/go_cart/storefront/internal/events"
	h "github.com/fjod/go_cart/storefront/internal/http"
	"github.com/fjod/go_cart/storefront/internal/inventory"
	"github.com/fjod/go_cart/storefront/internal/orders"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/fjod/go_cart/storefront/internal/storage"
	"github.com/fjod/go_cart/storefront/internal/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		Endpoint:       cfg.Telemetry.OTLPEndpoint,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
	})
	if err != nil {
		return err
	}

	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				log.Warn("close failed", zap.Error(err))
			}
		}
	}()

	kv, kvCloser, err := storage.Open(ctx, cfg.Storage.Options())
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	closers = append(closers, kvCloser)
	log.Info("storage ready", zap.String("backend", cfg.Storage.Backend))

	inv, err := openInventory(cfg.Inventory, log)
	if err != nil {
		return err
	}

	repo, err := openOrders(ctx, cfg.Orders, log)
	if err != nil {
		return err
	}
	if c, ok := repo.(io.Closer); ok {
		closers = append(closers, c)
	}

	publisher, err := openPublisher(cfg.Events, log)
	if err != nil {
		return err
	}
	closers = append(closers, publisher)

	policy, err := cfg.Pricing.Policy()
	if err != nil {
		return err
	}

	orch, err := checkout.NewOrchestrator(inv, repo, publisher, checkout.Config{
		Policy:            policy,
		Currency:          cfg.Pricing.Currency,
		LookupConcurrency: cfg.Checkout.LookupConcurrency,
	}, log)
	if err != nil {
		return err
	}

	sessions := session.NewManager(kv, inventory.NewCachedLookup(inv), log,
		session.WithMaxSessions(cfg.Session.MaxSessions),
		session.WithIdleTTL(cfg.Session.IdleTTL))

	srv := &http.Server{
		Addr: ":" + strconv.Itoa(cfg.HTTP.Port),
		Handler: h.NewRouter(h.RouterConfig{
			Sessions:       sessions,
			Checkout:       orch,
			Orders:         repo,
			Pricing:        policy,
			Logger:         log,
			RequestTimeout: cfg.HTTP.RequestTimeout,
			MaxBodyBytes:   cfg.HTTP.MaxBodyBytes,
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.HTTP.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("storefront listening", zap.Int("port", cfg.HTTP.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		log.Warn("telemetry shutdown failed", zap.Error(err))
	}
	log.Info("server exited")
	return nil
}

func openInventory(cfg config.InventoryConfig, log *zap.Logger) (inventory.Service, error) {
	switch cfg.Backend {
	case "http":
		log.Info("inventory backend", zap.String("base_url", cfg.BaseURL))
		return inventory.NewClient(cfg.BaseURL, cfg.Timeout, log), nil
	default:
		if cfg.SeedFile == "" {
			log.Warn("in-memory inventory without seed file, catalogue is empty")
			return inventory.NewMemoryStore(), nil
		}
		store, err := inventory.LoadSeedFile(cfg.SeedFile)
		if err != nil {
			return nil, err
		}
		log.Info("inventory seeded", zap.String("file", cfg.SeedFile), zap.Int("products", len(store.Products())))
		return store, nil
	}
}

func openOrders(ctx context.Context, cfg config.OrdersConfig, log *zap.Logger) (orders.Repository, error) {
	switch cfg.Backend {
	case "http":
		return orders.NewClient(cfg.BaseURL, cfg.Timeout, log), nil
	case "postgres":
		creds := cfg.Postgres.Credentials()
		repo, err := orders.NewPostgresRepository(ctx, creds)
		if err != nil {
			return nil, err
		}
		if err := repo.RunMigrations(creds); err != nil {
			repo.Close()
			return nil, err
		}
		log.Info("orders database ready", zap.String("host", creds.Host), zap.String("db", creds.DBName))
		return repo, nil
	default:
		return orders.NewMemoryRepository(), nil
	}
}

func openPublisher(cfg config.EventsConfig, log *zap.Logger) (events.Publisher, error) {
	switch cfg.Backend {
	case "kafka":
		log.Info("publishing order events to kafka", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
		return events.NewKafkaPublisher(cfg.KafkaTopic, log, cfg.KafkaBrokers...), nil
	case "rabbitmq":
		p, err := events.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQQueue, log)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return events.NopPublisher{}, nil
	}
}
