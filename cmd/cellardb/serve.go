package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cellardb/cellardb/pkg/log"
	"github.com/cellardb/cellardb/pkg/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the LSM maintenance manager as a long-lived process",
	Long: `serve opens the chunk store at --data-dir, starts the maintenance
worker pool, and serves Prometheus metrics and health endpoints until
interrupted.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("metrics-addr", "", "Address to serve /metrics and health endpoints on (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	stack, err := openEngineStack(cmd)
	if err != nil {
		return err
	}
	defer stack.close()

	metricsAddr := stack.cfg.MetricsAddr
	if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
		metricsAddr = addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := stack.manager.Start(ctx); err != nil {
		return err
	}
	log.Info("lsm manager started")

	metrics.SetVersion(Version)
	metrics.SetStoreOpen(true, "open")
	metrics.SetManager(stack.manager)

	collector := metrics.NewCollector(stack.manager)
	collector.Start(time.Second)
	defer collector.Stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/live", metrics.LivenessHandler())

	srv := &http.Server{Addr: metricsAddr, Handler: mux}
	srvErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			srvErr <- err
		}
	}()
	log.Logger.Info().Str("addr", metricsAddr).Msg("metrics server listening")

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case err := <-srvErr:
			log.Errorf("metrics server error", err)
			break loop
		case <-ticker.C:
			stats := stack.manager.Stats()
			log.Logger.Info().
				Int("workers", stats.Workers).
				Int("switch_depth", stats.SwitchQueueDepth).
				Int("app_depth", stats.AppQueueDepth).
				Int("manager_depth", stats.ManagerQueueDepth).
				Msg("manager stats")
		}
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("error shutting down metrics server", err)
	}
	if err := stack.manager.Shutdown(10 * time.Second); err != nil {
		return err
	}
	return nil
}
