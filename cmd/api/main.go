package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/travel-otp-api/internal/application/otp"
	"github.com/travel-otp-api/internal/config"
	"github.com/travel-otp-api/internal/cron"
	"github.com/travel-otp-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/travel-otp-api/internal/infrastructure/jwt"
	"github.com/travel-otp-api/internal/infrastructure/memory"
	redisinfra "github.com/travel-otp-api/internal/infrastructure/redis"
	"github.com/travel-otp-api/internal/infrastructure/smtp"
	transporthttp "github.com/travel-otp-api/internal/transport/http"
	"github.com/travel-otp-api/internal/transport/http/handler"
)

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	logger := newLogger(cfg)
	slog.SetDefault(logger)
	if envErr != nil {
		logger.Info("no .env file found, reading from environment")
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("startup failed", "err", err)
		os.Exit(1)
	}
}

// run wires the service and blocks until a shutdown signal. Deferred cleanups
// run on every return path.
func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, cleanup, err := newStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("otp store %q: %w", cfg.StoreBackend, err)
	}
	defer cleanup()

	mailer := smtp.NewMailer(cfg)
	if !mailer.Configured() {
		logger.Warn("SMTP_HOST, SMTP_PORT or SMTP_FROM missing; /v1/otp/send will report CONFIGURATION_ERROR")
	}

	// JWT provider (optional, graceful fallback if keys are missing).
	var jwtProvider *jwtinfra.Provider
	if p, err := jwtinfra.NewProvider(cfg); err == nil {
		jwtProvider = p
	} else {
		logger.Warn("verification tokens disabled", "err", err)
	}

	svc := otp.NewService(otp.ServiceDeps{
		Store:  store,
		Mailer: mailer,
		Policy: otp.Policy{
			CodeLength:     cfg.OTP.Length,
			Expiry:         cfg.OTP.Expiry,
			ResendCooldown: cfg.OTP.ResendCooldown,
			MaxAttempts:    cfg.OTP.MaxAttempts,
			SendTimeout:    cfg.MailSendTimeout,
			ProductName:    cfg.ProductName,
		},
		Logger: logger,
	})

	if mem, ok := store.(*memory.Store); ok {
		scheduler, err := cron.NewScheduler(ctx, logger)
		if err != nil {
			return fmt.Errorf("cron scheduler: %w", err)
		}
		defer func() {
			if err := scheduler.Shutdown(); err != nil {
				logger.Warn("cron shutdown", "err", err)
			}
		}()
		if _, err := cron.RegisterSweep(scheduler, mem, cfg.OTP.ResendCooldown, logger); err != nil {
			return fmt.Errorf("register sweep job: %w", err)
		}
	}

	deps := &transporthttp.Deps{
		OTPService:  svc,
		JWTProvider: jwtProvider,
		MailReady:   mailer.Configured,
	}
	if p, ok := store.(handler.Pinger); ok {
		deps.StorePinger = p
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      transporthttp.NewRouter(ctx, cfg, deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.MailSendTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv, "store", cfg.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", "err", err)
	}
	logger.Info("server stopped")
	return nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.AppEnv, "development") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// newStore opens the backend named by cfg.StoreBackend. The returned func releases it.
func newStore(ctx context.Context, cfg *config.Config) (otp.Store, func(), error) {
	switch cfg.StoreBackend {
	case config.StoreMemory:
		return memory.NewStore(), func() {}, nil

	case config.StoreRedis:
		client, err := redisinfra.NewClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return redisinfra.NewStore(client, cfg.OTP.ResendCooldown), func() { _ = client.Close() }, nil

	case config.StoreDynamo:
		client, err := dynamo.NewClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		// Bootstrap the OTP table (creates it if it doesn't exist).
		dynamo.Bootstrap(ctx, client, cfg.DynamoTableOTP)
		return dynamo.NewOTPStore(client, cfg.DynamoTableOTP, cfg.OTP.ResendCooldown), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
}
