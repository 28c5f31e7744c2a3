package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/careops/careops/internal/config"
	"github.com/careops/careops/internal/domain/identity"
	"github.com/careops/careops/internal/events"
	"github.com/careops/careops/internal/notification"
	"github.com/careops/careops/internal/platform/db"
	"github.com/careops/careops/internal/platform/middleware"
	"github.com/careops/careops/internal/platform/sms"
	"github.com/careops/careops/internal/platform/workerpool"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "careops-server",
		Short: "CareOps healthcare operations API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server and event consumers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the server version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Root context: canceled on SIGINT/SIGTERM, bounds all in-flight work.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Worker pools. The registry owns them for the process lifetime; the
	// gateway and dispatcher only borrow handles.
	poolCfg := workerpool.DefaultRegistryConfig()
	poolCfg.Notification.Core = cfg.NotificationPoolCore
	poolCfg.Notification.Max = cfg.NotificationPoolMax
	poolCfg.Notification.QueueCapacity = cfg.NotificationPoolQueue
	poolCfg.GatewaySend.Core = cfg.GatewayPoolSize
	poolCfg.GatewaySend.Max = cfg.GatewayPoolSize
	poolCfg.Database.Core = cfg.DatabasePoolCore
	poolCfg.Database.Max = cfg.DatabasePoolMax
	poolCfg.Database.QueueCapacity = cfg.DatabasePoolQueue
	poolCfg.ShutdownGrace = cfg.PoolShutdownGrace()

	registry, err := workerpool.NewRegistry(poolCfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start worker pools")
	}

	// SMS delivery
	sender := sms.NewTwilioSender(sms.TwilioConfig{
		AccountSID:          cfg.TwilioAccountSID,
		AuthToken:           cfg.TwilioAuthToken,
		FromNumber:          cfg.TwilioPhoneNumber,
		MessagingServiceSID: cfg.TwilioMessagingServiceSID,
	}, logger)
	gateway := sms.NewGateway(sender, registry.MustPool(workerpool.PoolGatewaySend), sms.GatewayConfig{
		DefaultCountryCode: cfg.DefaultCountryCode,
		SendTimeout:        cfg.SMSSendTimeout(),
	}, logger)

	// Notification dispatcher
	directory := identity.NewDirectoryPG(pool)
	dispatcher := notification.NewDispatcher(ctx, gateway, directory,
		registry.MustPool(workerpool.PoolNotification), logger)

	// Kafka event consumers
	consumer, err := events.NewConsumer(events.ConsumerConfig{
		Brokers:          cfg.KafkaBrokers,
		GroupID:          cfg.KafkaGroupID,
		AppointmentTopic: cfg.AppointmentTopic,
		OrderTopic:       cfg.OrderTopic,
	}, dispatcher, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to join kafka consumer group")
	}
	go func() {
		if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("event consumer stopped")
		}
	}()

	// Periodic connection-pool sampling on the database pool so a stalled
	// database shows up in the logs even when no lookups are running.
	go sampleDBStats(ctx, registry.MustPool(workerpool.PoolDatabase), pool, logger)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	apiV1 := e.Group("/api/v1")
	notification.NewHandler(dispatcher).RegisterRoutes(apiV1)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("server listening")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.PoolShutdownGrace())
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown failed")
	}
	if err := consumer.Close(); err != nil {
		logger.Error().Err(err).Msg("consumer close failed")
	}
	if err := registry.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("worker pools did not drain within grace period")
	}
	logger.Info().Msg("shutdown complete")
	return nil
}

// sampleDBStats submits a pool-stats snapshot task to the database worker
// pool once a minute. The task itself is trivial; routing it through the
// pool means a saturated database pool shows up as delayed samples.
func sampleDBStats(ctx context.Context, dbPool *workerpool.Pool, pgPool *pgxpool.Pool, logger zerolog.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := dbPool.Submit(func() {
				stats := db.Stats(pgPool)
				logger.Info().
					Int32("total_conns", stats.TotalConns).
					Int32("idle_conns", stats.IdleConns).
					Int32("acquired_conns", stats.AcquiredConns).
					Msg("database pool stats")
			}); err != nil {
				logger.Warn().Err(err).Msg("stats sample skipped")
			}
		}
	}
}
