// Command portal runs the Hello University account server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/hellouniversity/portal/internal/account"
	"github.com/hellouniversity/portal/internal/config"
	"github.com/hellouniversity/portal/internal/dispatch"
	"github.com/hellouniversity/portal/internal/quota"
	"github.com/hellouniversity/portal/internal/web"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.GetConfig()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := quota.SystemClock{}
	limits := quota.Limits{
		Daily:             cfg.DailyLimits(),
		DefaultDaily:      cfg.DefaultDailyLimit,
		MaxFailedAttempts: cfg.MaxFailedAttempts,
	}

	var (
		ledger    dispatch.Ledger
		reporter  web.QuotaReporter
		directory account.Directory
	)
	if cfg.MongoURI == "" {
		logger.Warn("MONGO_URI not set, using in-memory storage")
		memLedger := quota.NewMemoryLedger(limits, clock)
		ledger, reporter = memLedger, memLedger
		directory = account.NewMemoryDirectory()
	} else {
		client, err := connectMongo(ctx, cfg.MongoURI)
		if err != nil {
			return err
		}
		defer func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(disconnectCtx); err != nil {
				logger.Warn("mongo disconnect", "error", err)
			}
		}()

		db := client.Database(cfg.MongoDatabase)
		mongoLedger := quota.NewMongoLedger(db, limits, clock)
		ledger, reporter = mongoLedger, mongoLedger
		directory = account.NewMongoDirectory(db)
		logger.Info("connected to mongodb", "database", cfg.MongoDatabase)
	}

	governor, err := dispatch.New(dispatch.Config{
		AppBaseURL:         cfg.AppBaseURL,
		Sender:             dispatch.Address{Name: cfg.SenderName, Email: cfg.SenderEmail},
		RotationIdentities: cfg.SenderIdentities,
		Providers:          providerSpecs(cfg),
		SendTimeout:        cfg.ProviderTimeout,
	}, ledger, dispatch.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("build dispatcher: %w", err)
	}

	accounts := account.NewService(directory, governor, clock, logger)
	server := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      web.NewServer(accounts, reporter, cfg.SessionSecret, cfg.IsProd(), logger).Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.ProviderTimeout + 10*time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: cfg.MetricsAddress, Handler: metricsMux}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("portal server listening", "address", cfg.ServerAddress)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		logger.Info("metrics server listening", "address", cfg.MetricsAddress)
		if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", "error", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics server shutdown", "error", err)
	}
	return nil
}

func connectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	return client, nil
}

// providerSpecs maps the flat environment configuration onto the ordered
// provider list the dispatcher consumes.
func providerSpecs(cfg *config.Config) []dispatch.ProviderSpec {
	specs := make([]dispatch.ProviderSpec, 0, len(cfg.ProviderOrder))
	for _, name := range cfg.ProviderOrder {
		providerType := dispatch.ProviderType(strings.TrimSpace(name))
		settings := dispatch.Settings{}
		switch providerType {
		case dispatch.ProviderMailerSend:
			settings.Set("api_key", cfg.MailerSendAPIKey)
		case dispatch.ProviderResend:
			settings.Set("api_key", cfg.ResendAPIKey)
		case dispatch.ProviderSendGrid:
			settings.Set("api_key", cfg.SendGridAPIKey)
		case dispatch.ProviderAWSSES:
			settings.Set("region", cfg.AWSRegion)
		case dispatch.ProviderSMTP:
			settings.Set("host", cfg.SMTPHost)
			settings.Set("port", strconv.Itoa(cfg.SMTPPort))
		}
		specs = append(specs, dispatch.ProviderSpec{Type: providerType, Settings: settings})
	}
	return specs
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
