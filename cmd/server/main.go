package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/share-commute/internal/carpool"
	"github.com/example/share-commute/internal/config"
	"github.com/example/share-commute/internal/dispatch"
	"github.com/example/share-commute/internal/events"
	httpapi "github.com/example/share-commute/internal/http"
	"github.com/example/share-commute/internal/logging"
	"github.com/example/share-commute/internal/session"
	"github.com/example/share-commute/internal/storage"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("dotenv", "error", err)
		os.Exit(1)
	}
	cfg, err := config.LoadServerConfig()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFile)
	slog.SetDefault(logger)
	// ride times given as timestamps are read in the configured zone
	time.Local = cfg.Location

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.ServerConfig, logger *slog.Logger) error {
	seed, err := storage.LoadSeed(cfg.SeedFile)
	if err != nil {
		return err
	}
	policy, err := carpool.PolicyFor(cfg.EligibilityPolicy, cfg.EligibilityWindow)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	hub := dispatch.NewWSHub(logger)
	publishers := events.Fanout{hub}
	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		publishers = append(publishers, kp)
		logger.Info("publishing ride events", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	}

	loc := cfg.Location
	reg := session.NewRegistry(session.Options{
		Seed:   seed,
		Store:  store,
		Events: publishers,
		Policy: policy,
		Now:    func() time.Time { return time.Now().In(loc) },
		Logger: logger,
	})
	go reg.Run(ctx, cfg.SessionSweepInterval, cfg.SessionTTL)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewServer(reg, hub, logger),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("share-commute listening", "addr", cfg.HTTPAddr, "store", cfg.SessionStore, "policy", cfg.EligibilityPolicy, "seed_rides", len(seed))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openStore builds the session persister named by SESSION_STORE.
func openStore(ctx context.Context, cfg config.ServerConfig, logger *slog.Logger) (storage.Persister, func(), error) {
	switch cfg.SessionStore {
	case config.StoreRedis:
		rc, err := storage.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return nil, nil, err
		}
		return storage.NewRedisPersister(rc, cfg.SessionTTL), func() { _ = rc.Close() }, nil
	case config.StorePostgres:
		pg, err := storage.NewPostgresPersister(ctx, cfg.PGDSN)
		if err != nil {
			return nil, nil, err
		}
		if cfg.RunMigrations {
			applied, err := pg.Migrate(ctx, cfg.MigrationsDir)
			if err != nil {
				_ = pg.Close()
				return nil, nil, err
			}
			logger.Info("migrations applied", "files", applied)
		}
		return pg, func() { _ = pg.Close() }, nil
	default:
		return storage.NewMemoryPersister(), func() {}, nil
	}
}
