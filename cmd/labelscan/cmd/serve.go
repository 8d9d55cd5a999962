package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/MeKo-Tech/labelscan/internal/server"
	"github.com/MeKo-Tech/labelscan/internal/version"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP server for the label scan API",
		Long: `Start an HTTP server that provides REST and WebSocket endpoints for label scanning.

The server provides the following endpoints:
  POST /v1/scan     - Scan an uploaded label image (multipart form)
  POST /v1/analyze  - Analyze already recognized text (JSON)
  GET  /v1/lexicon  - List canonical allergen and diet terms
  GET  /ws/scan     - Scan with streamed progress over WebSocket
  GET  /health      - Health check endpoint
  GET  /metrics     - Prometheus metrics

Examples:
  labelscan serve
  labelscan serve --port 8080
  labelscan serve --host 0.0.0.0 --port 3000`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runServe(cmd)
		},
	}

	cmd.Flags().StringP("host", "H", "localhost", "server host")
	cmd.Flags().IntP("port", "p", 8080, "server port")
	cmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	cmd.Flags().Int("max-upload-size", 20, "maximum upload size in MB")
	cmd.Flags().Int("timeout", 60, "scan timeout in seconds")
	cmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")

	a.bind(cmd.Flags().Lookup("host"), "server.host")
	a.bind(cmd.Flags().Lookup("port"), "server.port")
	a.bind(cmd.Flags().Lookup("cors-origin"), "server.cors_origin")
	a.bind(cmd.Flags().Lookup("max-upload-size"), "server.max_upload_mb")
	a.bind(cmd.Flags().Lookup("timeout"), "server.timeout_sec")
	a.bind(cmd.Flags().Lookup("shutdown-timeout"), "server.shutdown_timeout")
	return cmd
}

func (a *app) runServe(cmd *cobra.Command) error {
	sc := a.cfg.Server

	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	rt, err := newRuntime(ctx, a.cfg)
	if err != nil {
		return err
	}

	srv := server.NewServer(rt.service, server.Config{
		CORSOrigin:  sc.CORSOrigin,
		MaxUploadMB: int64(sc.MaxUploadMB),
		TimeoutSec:  sc.TimeoutSec,
		Options:     a.cfg.Options(),
		Languages:   a.cfg.Languages(),
		Version:     version.Version,
		Logger:      slog.Default(),
	})

	// Write timeout is left open: WebSocket scans outlive a single request.
	httpServer := &http.Server{
		Addr:              net.JoinHostPort(sc.Host, strconv.Itoa(sc.Port)),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(sc.TimeoutSec) * time.Second,
	}

	go func() {
		slog.Info("Starting label scan server", "host", sc.Host, "port", sc.Port,
			"cache", a.cfg.Cache.Backend, "languages", a.cfg.Languages())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		slog.Info("Context cancelled, initiating shutdown")
	}

	slog.Info("Starting graceful shutdown", "timeout", fmt.Sprintf("%ds", sc.ShutdownTimeout))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		time.Duration(sc.ShutdownTimeout)*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server shutdown completed")
	}

	if err := rt.Close(); err != nil {
		slog.Error("Recognition cleanup error", "error", err)
	}

	slog.Info("Graceful shutdown completed")
	return nil
}
