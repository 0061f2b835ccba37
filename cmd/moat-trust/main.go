// Command moat-trust runs the Moat trust engine (spec §4.6, §6): the HTTP
// surface for POST /events, GET /capabilities/{id}/stats, GET /capabilities.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jeremylongshore/moat/pkg/moat/config"
	"github.com/jeremylongshore/moat/pkg/moat/observability"
	"github.com/jeremylongshore/moat/pkg/moat/trust"
	"github.com/jeremylongshore/moat/pkg/moat/trustapi"
)

func main() {
	os.Exit(run())
}

func run() int {
	logger := slog.Default()
	cfg := config.Load()
	ctx := context.Background()

	obs, err := observability.New(ctx, &observability.Config{
		ServiceName:  "moat-trust",
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SampleRate:   1.0,
		BatchTimeout: 5 * time.Second,
		Enabled:      cfg.OTLPEndpoint != "",
		Insecure:     cfg.Environment != "prod",
	})
	if err != nil {
		logger.Error("observability init failed", "error", err)
		return 1
	}
	defer func() { _ = obs.Shutdown(ctx) }()

	server := &trustapi.Server{
		Engine: trust.New(trust.Thresholds{
			MinSuccessRate7d: cfg.MinSuccessRate7d,
			MaxP95LatencyMS:  cfg.MaxP95LatencyMS,
		}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/events", server.HandleEvents)
	mux.HandleFunc("/capabilities", server.HandleCapabilities)
	mux.HandleFunc("/capabilities/", server.HandleCapabilityStats)
	mux.HandleFunc("/healthz", server.HandleHealthz)

	srv := &http.Server{
		Addr:              cfg.Host + ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("moat-trust listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("trust server error", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("moat-trust shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		return 1
	}
	return 0
}
