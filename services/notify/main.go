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
	"github.com/diagnosis/expertbook/pkg/events"
	"github.com/diagnosis/expertbook/pkg/logger"
	"github.com/diagnosis/expertbook/pkg/mailer"
	mw "github.com/diagnosis/expertbook/pkg/middleware"
	"github.com/diagnosis/expertbook/services/notify/internal/consumer"
)

func main() {
	if err := run(config.Load()); err != nil {
		logger.Error("Notify service error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	// Connect to event bus
	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL, "notify")
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer eventBus.Close()

	c := consumer.New(mailer.New(cfg.Email))
	if err := c.Subscribe(eventBus, "notify"); err != nil {
		return fmt.Errorf("subscribe to notifications: %w", err)
	}

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("notify"))
	r.Use(mw.Logging)
	r.Use(mw.Recover)
	r.Use(mw.Health)

	srv := &http.Server{
		Addr:         ":" + getPort(),
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

		logger.Info("Shutting down notify service...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Notify service shutdown error", "error", err)
		}
	}()

	logger.Info("Starting notify service", "port", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// PORT is shared with the payments service in config; notify listens on
// its own port so both can run on one host.
func getPort() string {
	if p := os.Getenv("NOTIFY_PORT"); p != "" {
		return p
	}
	return "8086"
}
