package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/msomdec/trackitnow/internal/cloud"
	"github.com/msomdec/trackitnow/internal/config"
	"github.com/msomdec/trackitnow/internal/domain"
	"github.com/msomdec/trackitnow/internal/handler"
	"github.com/msomdec/trackitnow/internal/metrics"
	"github.com/msomdec/trackitnow/internal/notify"
	"github.com/msomdec/trackitnow/internal/repository/dynamo"
	"github.com/msomdec/trackitnow/internal/repository/pebble"
	"github.com/msomdec/trackitnow/internal/repository/sqlite"
	"github.com/msomdec/trackitnow/internal/service"
)

func main() {
	level := new(slog.LevelVar)
	logOpts := &slog.HandlerOptions{Level: level}
	logger := slog.New(slog.NewMultiHandler(
		slog.NewTextHandler(os.Stdout, logOpts),
		slog.NewJSONHandler(os.Stderr, logOpts),
	))
	slog.SetDefault(logger)

	cfg, err := config.Load(".env")
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	level.Set(cfg.LogLevel)

	ctx := context.Background()

	var awsCfg aws.Config
	if cfg.StoreBackend == config.BackendDynamoDB || cfg.NotifyBackend == config.NotifyAWS {
		awsCfg, err = cloud.LoadAWSConfig(ctx, cfg.AWSRegion, cfg.AWSEndpointURL)
		if err != nil {
			slog.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
	}

	db, ledgerRepo, err := openStore(cfg, awsCfg)
	if err != nil {
		slog.Error("failed to open store", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	migrateCtx, cancelMigrate := context.WithTimeout(ctx, 3*time.Minute)
	err = db.Migrate(migrateCtx)
	cancelMigrate()
	if err != nil {
		slog.Error("failed to prepare store", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	slog.Info("store ready", "backend", cfg.StoreBackend)

	var (
		gateway    domain.NotificationGateway
		dispatcher domain.ConfirmationDispatcher
	)
	switch cfg.NotifyBackend {
	case config.NotifyAWS:
		gateway = notify.NewSNSGatewayFromConfig(awsCfg)
		dispatcher = notify.NewLambdaDispatcherFromConfig(awsCfg)
	default:
		gateway = notify.NewLogGateway(logger)
		dispatcher = notify.NewLogDispatcher(logger)
	}

	authService := service.NewAuthService(ledgerRepo, cfg.JWTSecret, cfg.BcryptCost)
	ledgerService := service.NewLedgerService(ledgerRepo, cfg.StoreTimeout)
	notificationService := service.NewNotificationService(gateway, dispatcher, cfg.ConfirmationFunction, cfg.StoreTimeout)
	loginLimiter := service.PerMinute(cfg.LoginRatePerMinute)
	defer loginLimiter.Close()

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, authService, ledgerService, notificationService, loginLimiter, cfg.CookieSecure)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.SecurityHeaders(handler.RequestID(handler.LogRequests(metrics.InstrumentHandler(mux)))),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("server starting", "addr", srv.Addr, "notify", cfg.NotifyBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// openStore returns the selected backend's lifecycle and its ledger
// repository.
func openStore(cfg *config.Config, awsCfg aws.Config) (domain.Database, domain.LedgerRepository, error) {
	switch cfg.StoreBackend {
	case config.BackendSQLite:
		db, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Ledger(), nil
	case config.BackendPebble:
		s, err := pebble.Open(cfg.PebbleDir)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case config.BackendDynamoDB:
		s := dynamo.NewFromConfig(awsCfg, cfg.DynamoDBTable)
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
