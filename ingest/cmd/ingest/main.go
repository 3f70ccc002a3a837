package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/workwhile/automation/common/logging"
	"github.com/workwhile/automation/common/middleware"
	"github.com/workwhile/automation/ingest/internal/config"
	"github.com/workwhile/automation/ingest/internal/dlq"
	"github.com/workwhile/automation/ingest/internal/eventstats"
	"github.com/workwhile/automation/ingest/internal/handlers"
	"github.com/workwhile/automation/ingest/internal/openphone"
	"github.com/workwhile/automation/ingest/internal/ratelimit"
	"github.com/workwhile/automation/ingest/internal/server"
	"github.com/workwhile/automation/ingest/internal/sink"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize structured logging
	logger := logging.New(logging.Options{
		Level:   logging.ParseLevel(cfg.Logging.Level),
		Format:  cfg.Logging.Format,
		Service: "ingest",
	})
	logging.SetDefault(logger)

	slog.Info("Starting OpenPhone webhook service",
		slog.Int("port", cfg.Server.Port),
		slog.String("environment", cfg.Server.Environment),
		slog.String("log_level", cfg.Logging.Level),
		slog.String("webhook_path", cfg.Webhooks.Path),
		slog.Bool("verify_signature", cfg.Webhooks.VerifySignature),
	)
	if *configPath != "" {
		slog.Info("Loaded configuration", slog.String("config_path", *configPath))
	}

	// Delivery backends
	initCtx, initCancel := context.WithTimeout(context.Background(), 60*time.Second)
	sinks, err := sink.Build(initCtx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize sinks: %v", err)
	}
	defer sinks.Close()

	checks := make(map[string]handlers.Checker, len(sinks.Checks)+2)
	for name, check := range sinks.Checks {
		checks[name] = handlers.Checker(check)
	}

	// Dead letter queue for failed deliveries
	var delivery openphone.Sink = sinks
	var dlqHandler *handlers.DLQHandler
	deadLetters, err := dlq.Open(initCtx, cfg, logger)
	initCancel()
	if err != nil {
		log.Fatalf("Failed to initialize dead letter queue: %v", err)
	}
	if deadLetters != nil {
		delivery = sink.WithDeadLetter(sinks, deadLetters, logger)
		dlqHandler = handlers.NewDLQHandler(deadLetters, cfg.DLQ.AdminToken, logger)
		if p, ok := deadLetters.(openphone.Pinger); ok {
			checks["dlq"] = p.Ping
		}
		if c, ok := deadLetters.(io.Closer); ok {
			defer c.Close()
		}
	}

	// Initialize rate limiter
	var limiter ratelimit.RateLimiter
	if cfg.RateLimit.Enabled {
		redisLimiter, err := ratelimit.NewRedisRateLimiter(cfg.Redis.URL, cfg.RateLimit.Requests, cfg.RateLimit.Window)
		if err != nil {
			slog.Warn("Failed to initialize Redis rate limiter, continuing without rate limiting",
				logging.Error(err))
			limiter = &ratelimit.NoOpRateLimiter{}
		} else {
			limiter = redisLimiter
			checks["redis"] = redisLimiter.Ping
			slog.Info("Rate limiting enabled",
				slog.Int("requests", cfg.RateLimit.Requests),
				slog.Duration("window", cfg.RateLimit.Window))
		}
		defer limiter.Close()
	} else {
		slog.Info("Rate limiting disabled in configuration")
	}

	dispatcher := openphone.NewDispatcher(openphone.DispatcherConfig{
		Sink:   delivery,
		Logger: logger,
	})

	webhook, err := handlers.NewWebhookHandler(dispatcher, cfg.Webhooks, logger)
	if err != nil {
		log.Fatalf("Failed to initialize webhook handler: %v", err)
	}

	// Traffic statistics
	var statsHandler *handlers.StatsHandler
	if cfg.Stats.Enabled {
		instanceID := cfg.Stats.InstanceID
		if instanceID == "" {
			instanceID, _ = os.Hostname()
		}
		statsClient, err := eventstats.NewClient(cfg.Redis.URL, instanceID)
		if err != nil {
			slog.Warn("Failed to connect to Redis for webhook stats, continuing without stats",
				logging.Error(err))
		} else {
			defer statsClient.Close()
			collector := eventstats.NewCollector(statsClient, cfg.Stats.FlushInterval, logger)
			defer collector.Stop()

			webhook.SetStats(collector)
			statsHandler = handlers.NewStatsHandler(statsClient, logger)
			checks["stats"] = statsClient.Ping
			slog.Info("Webhook stats enabled", slog.String("instance_id", instanceID))
		}
	}

	cors := middleware.DefaultCORSConfig(cfg.CORS.Origins...)
	cors.AllowCredentials = cfg.CORS.Credentials
	cors.MaxAge = cfg.CORS.MaxAge

	security := middleware.DefaultSecurityConfig()
	if !cfg.IsProduction() {
		security.HSTSMaxAge = 0
	}

	router := server.NewRouter(server.Handlers{
		Webhook: webhook,
		Health:  handlers.NewHealthHandler(cfg.Server.Environment, checks, logger),
		API:     handlers.NewAPIHandler(cfg, checks, logger),
		DLQ:     dlqHandler,
		Stats:   statsHandler,
	}, server.Options{
		WebhookPath: cfg.Webhooks.Path,
		Limiter:     limiter,
		RateWindow:  cfg.RateLimit.Window,
		CORS:        cors,
		Security:    security,
		SlowRequest: cfg.Server.SlowRequest,
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		slog.Info("Webhook service listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("Shutting down server", slog.String("signal", sig.String()))
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", logging.Error(err))
	}

	slog.Info("Server stopped")
}
