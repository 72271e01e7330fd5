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

	"github.com/Brownie44l1/birdid/internal/handlers"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 3 * time.Second

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the upload form and prediction API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}

	flags := cmd.Flags()
	flags.String("host", "", "Address to listen on")
	flags.Int("port", 8080, "Port to listen on")
	a.v.BindPFlag("server.host", flags.Lookup("host"))
	a.v.BindPFlag("server.port", flags.Lookup("port"))

	return cmd
}

func (a *app) serve(ctx context.Context) error {
	loader := a.loader()
	defer loader.Close()

	a.log.Info("loading model",
		zap.String("bundle", loader.BundlePath()),
		zap.String("legacy", loader.LegacyPath()))

	// A missing or broken model is reported by every page and endpoint; the
	// server still starts so the guidance can be shown.
	p, loadErr := predictor(loader)
	if loadErr != nil {
		a.log.Warn("serving without a model", zap.Error(loadErr))
	}

	limits := handlers.Limits{
		MaxBytes:  a.cfg.Server.MaxUploadBytes,
		MaxPixels: a.cfg.Server.MaxUploadPixels,
	}
	h := handlers.NewHandler(p, loadErr, a.cfg.Confidence, limits, a.log)
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port),
		Handler: handlers.NewRouter(h, a.cfg.Environment),
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.Error("shutdown failed", zap.Error(err))
		}
	}()

	a.log.Info("server starting",
		zap.String("addr", srv.Addr),
		zap.Strings("endpoints", []string{
			"GET / - Upload form",
			"GET /health - Health check",
			"POST /predict - Raw array prediction",
			"POST /predict/image - Predict from image upload",
		}))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
