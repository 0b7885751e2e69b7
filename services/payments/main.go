package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/diagnosis/expertbook/pkg/config"
	"github.com/diagnosis/expertbook/pkg/logger"
	mw "github.com/diagnosis/expertbook/pkg/middleware"
	"github.com/diagnosis/expertbook/pkg/tracing"
	"github.com/diagnosis/expertbook/services/payments/internal/app"
	"github.com/diagnosis/expertbook/services/payments/internal/handlers"
)

func main() {
	if err := run(config.Load()); err != nil {
		logger.Error("Payments service error", "error", err)
		os.Exit(1)
	}
}

// run owns every resource it opens so deferred cleanup happens on all
// exit paths.
func run(cfg *config.Config) error {
	if cfg.Stripe.WebhookSecret == "" {
		return errors.New("STRIPE_WEBHOOK_SECRET is required")
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, "payments")
	if err != nil {
		return fmt.Errorf("initialize tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Warn("Failed to flush traces", "error", err)
		}
	}()

	a, err := app.Build(ctx, cfg, "payments")
	if err != nil {
		return fmt.Errorf("start payments service: %w", err)
	}
	defer a.Close()

	go a.Janitor.Run(ctx)

	h := handlers.New(a.Reconciler, a.Verifier, a.Dedupe, cfg.Auth.JWTSecret)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("payments"))
	r.Use(mw.Logging)
	r.Use(mw.Recover)
	r.Use(mw.Health)

	r.Mount("/", h.Routes(cfg.Server.AllowedOrigins))

	// Start server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down payments service...")
		stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Payments service shutdown error", "error", err)
		}
	}()

	logger.Info("Starting payments service", "port", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
