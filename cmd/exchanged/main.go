package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tradingfloor/exchange-core/internal/config"
	"github.com/tradingfloor/exchange-core/internal/coordinator"
	"github.com/tradingfloor/exchange-core/internal/fanout"
	"github.com/tradingfloor/exchange-core/internal/obsv"
	"github.com/tradingfloor/exchange-core/internal/pipeline"
	"github.com/tradingfloor/exchange-core/internal/telemetry"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "exchanged",
	Short: "exchanged runs the trading-game exchange core as an HTTP/WebSocket service",
	RunE:  run,
}

func main() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the exchange config file")
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := telemetry.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	ex, err := buildVenue(cfg, logger)
	if err != nil {
		return fmt.Errorf("build venue: %w", err)
	}

	metrics := obsv.New()
	hub := fanout.NewHub(cfg.Fanout.SubscriberBufferSize)
	coord := coordinator.New(cfg.Coordinator.MaxPendingRequests, cfg.Coordinator.DefaultTimeout())
	coord.StartCleanup(cfg.Coordinator.CleanupInterval(), cfg.Coordinator.CleanupTTL())
	defer coord.Stop()

	pipelineCfg := pipeline.Config{
		QueueDepth:         cfg.Exchange.QueueDepth,
		PhaseCheckInterval: cfg.Exchange.PhaseCheckInterval(),
	}
	pl := pipeline.New(pipelineCfg, ex, ex.Validator, coord, hub, metrics, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pl.Start(ctx)
	defer pl.Stop()

	api := NewAPI(ex, pl, coord, hub, metrics, logger)
	router := mux.NewRouter()
	api.RegisterRoutes(router)

	httpServer := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("exchanged listening", zap.String("addr", cfg.Server.ListenAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	case <-sigCh:
		logger.Info("received shutdown signal")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", zap.Error(err))
	}

	cancel()
	logger.Info("exchanged stopped")
	return nil
}
