package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"mentor-insights-go/internal/app"
	"mentor-insights-go/internal/config"
	"mentor-insights-go/internal/logger"
)

const shutdownGrace = 30 * time.Second

func main() {
	log := logger.New()
	log.WithField("service", "mentor-insights-go").Info("starting service")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	a, err := app.New(cfg, log.Entry)
	if err != nil {
		log.WithError(err).Fatal("failed to start")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, _, err := a.Recover(ctx); err != nil {
		log.WithError(err).Error("recovery of previous jobs failed")
	}

	srv := &http.Server{
		Addr: fmt.Sprintf(":%s", cfg.Port),
		Handler: (&server{
			jobs:      a.Store,
			ingest:    a.Ingestor,
			log:       log,
			maxUpload: cfg.MaxUploadBytes,
		}).routes(),
		ReadTimeout:  15 * time.Minute,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown requested")
	case err := <-errCh:
		if err != nil {
			log.WithError(err).Error("server terminated")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	if err := a.Close(shutdownCtx); err != nil {
		log.WithError(err).Warn("worker shutdown")
	}
	log.Info("stopped")
}
