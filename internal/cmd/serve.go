package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gartstein/onboard/internal/onboarding/config"
	"github.com/gartstein/onboard/internal/onboarding/controller"
	"github.com/gartstein/onboard/internal/onboarding/db"
	"github.com/gartstein/onboard/internal/onboarding/events"
	"github.com/gartstein/onboard/internal/onboarding/handlers"
	"github.com/gartstein/onboard/internal/onboarding/metrics"
	"github.com/gartstein/onboard/internal/onboarding/storage"
	"github.com/gartstein/onboard/internal/onboarding/validation"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateOnStart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the gRPC health endpoint",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&migrateOnStart, "migrate", false, "apply migrations before serving")
}

// producer is the event sink the service publishes to.
type producer interface {
	controller.EventProducer
	Close()
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer syncLogger(logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	repo, err := connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Error("failed to close database", zap.Error(err))
		}
	}()
	if migrateOnStart {
		if err := repo.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
	}

	prod := newProducer(cfg, logger)
	defer prod.Close()

	// A nil *Uploader must not end up inside the interface.
	var photos controller.PhotoStore
	uploader, err := storage.NewS3Uploader(ctx, cfg.Storage(), logger)
	if err != nil {
		logger.Warn("object storage unavailable, vendors will be created without photos", zap.Error(err))
	} else {
		photos = uploader
	}

	m := metrics.New()
	roles := controller.NewRoleService(repo, cfg.FallbackRole(), m, logger)
	api := handlers.NewAPI(handlers.Services{
		Vendors: controller.NewVendorService(repo, photos, validation.New(cfg.MaxPhotoBytes), prod, logger,
			controller.WithRecorder(m),
			controller.WithStrictTransitions(cfg.StrictTransitions),
		),
		Roles:      roles,
		Earnings:   controller.NewEarningsService(repo, m, logger),
		Sessions:   controller.NewSessionService(roles, repo, logger),
		Categories: controller.NewCategoryService(repo, logger),
	}, cfg.MaxPhotoBytes, logger)

	httpHandler, err := handlers.NewHTTPHandler(api, handlers.HTTPConfig{
		JWTSecret: cfg.JWTSecret,
		Revoked:   repo,
		Metrics:   m,
		Pinger:    repo,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to build HTTP handler: %w", err)
	}

	server := handlers.NewServer(cfg.GRPCPort, cfg.HTTPPort, logger)
	server.RegisterHTTPHandler(httpHandler)
	go server.WatchHealth(ctx, repo, 15*time.Second)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	return waitForShutdown(server, errCh, logger)
}

// connect opens the database, retrying while it comes up.
func connect(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*db.Repository, error) {
	var repo *db.Repository
	op := func() error {
		var err error
		repo, err = db.NewRepository(cfg.Database())
		if err != nil {
			logger.Warn("database not ready", zap.Error(err))
		}
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return repo, nil
}

// newProducer publishes to Kafka when brokers are configured.
func newProducer(cfg *config.Config, logger *zap.Logger) producer {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Info("no Kafka brokers configured, lifecycle events are disabled")
		return events.Nop{}
	}
	if err := events.EnsureTopic(cfg.KafkaBrokers, cfg.Topic, logger); err != nil {
		logger.Warn("failed to ensure Kafka topic", zap.String("topic", cfg.Topic), zap.Error(err))
	}
	return events.NewProducer(cfg.KafkaBrokers, cfg.Topic, logger)
}

// waitForShutdown blocks until an interrupt or SIGTERM is received, or the
// servers fail, then shuts down servers.
func waitForShutdown(server *handlers.Server, errCh <-chan error, logger *zap.Logger) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	var err error
	select {
	case <-stop:
	case err = <-errCh:
		logger.Error("server failed", zap.Error(err))
	}

	server.Stop()
	logger.Info("Servers stopped properly")
	return err
}
