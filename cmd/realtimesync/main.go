package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/goran-ethernal/ChainIndexor/internal/common"
	"github.com/goran-ethernal/ChainIndexor/internal/db"
	"github.com/goran-ethernal/ChainIndexor/internal/eventstore"
	"github.com/goran-ethernal/ChainIndexor/internal/logger"
	"github.com/goran-ethernal/ChainIndexor/internal/metrics"
	"github.com/goran-ethernal/ChainIndexor/internal/queue"
	"github.com/goran-ethernal/ChainIndexor/internal/realtime"
	"github.com/goran-ethernal/ChainIndexor/internal/rpc"
	pkgconfig "github.com/goran-ethernal/ChainIndexor/pkg/config"
	pkgrealtime "github.com/goran-ethernal/ChainIndexor/pkg/realtime"
	"github.com/spf13/cobra"
)

const (
	version = "1.0.0"
	banner  = `
╔═══════════════════════════════════════════╗
║         ChainIndexor v%s               ║
║       Realtime Sync Core                  ║
╚═══════════════════════════════════════════╝
`
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "realtimesync",
	Short: "ChainIndexor realtime sync core",
	Long: `realtimesync tracks the unfinalized head of an EVM chain, pre-screens
blocks against configured log filters with a Bloom Pre-Filter, writes
matching logs through to the event store, advances finality, and detects
and reconciles chain reorgs.`,
	Version: version,
	RunE:    run,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to configuration file")
}

func run(cmd *cobra.Command, args []string) error {
	fmt.Printf(banner, version)

	cfg, err := pkgconfig.LoadFromFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\n\nShutting down gracefully...")
		cancel()
	}()

	var loggingCfg logger.LoggingConfig
	if cfg.Logging != nil {
		loggingCfg = cfg.Logging
	}
	log := logger.NewComponentLoggerFromConfig(common.ComponentRealtimeSync, loggingCfg)

	var metricsServer *metrics.Server
	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics, log)
		if err := metricsServer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		defer func() {
			if err := metricsServer.Stop(ctx); err != nil {
				log.Warnf("Failed to stop metrics server: %v", err)
			}
		}()
		log.Infof("Metrics server started on %s%s", cfg.Metrics.ListenAddress, cfg.Metrics.Path)
	}

	log.Info("Connecting to RPC endpoint...")
	ethClient, err := rpc.NewClient(ctx, cfg.Network.RPCURL, cfg.Network.ChainID, cfg.Network.Retry)
	if err != nil {
		return fmt.Errorf("failed to create RPC client: %w", err)
	}
	log.Infof("Connected to RPC endpoint: %s", cfg.Network.RPCURL)

	log.Info("Running event store migrations...")
	if err := eventstore.RunMigrations(cfg.DB.Path); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	sqlDB, err := db.NewSQLiteDBFromConfig(cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to open event store database: %w", err)
	}
	defer sqlDB.Close()

	store := eventstore.NewSQLiteStore(sqlDB, logger.NewComponentLoggerFromConfig(common.ComponentEventStore, loggingCfg))

	maintenance := db.NewMaintenanceCoordinator(cfg.DB.Path, sqlDB, cfg.DB.Maintenance,
		logger.NewComponentLoggerFromConfig(common.ComponentEventStore, loggingCfg))
	if err := maintenance.Start(ctx); err != nil {
		return fmt.Errorf("failed to start event store maintenance: %w", err)
	}
	defer maintenance.Stop()

	taskQueue := queue.New(logger.NewComponentLoggerFromConfig(common.ComponentTaskQueue, loggingCfg))

	bus := pkgrealtime.NewEventBus()
	wireEventLogging(bus, log)

	svc, err := realtime.New(
		ethClient,
		store,
		taskQueue,
		bus,
		logger.NewComponentLoggerFromConfig(common.ComponentRealtimeSync, loggingCfg),
		cfg.Network,
		cfg.LogFilters,
	)
	if err != nil {
		return fmt.Errorf("failed to create realtime sync service: %w", err)
	}

	log.Info("Resolving starting point...")
	setup, err := svc.Setup(ctx)
	if err != nil {
		return fmt.Errorf("failed to set up realtime sync service: %w", err)
	}
	log.Infow("Starting realtime sync", "latestBlockNumber", setup.LatestBlockNumber, "finalizedBlockNumber", setup.FinalizedBlockNumber)

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start realtime sync service: %w", err)
	}
	defer svc.Kill()

	<-ctx.Done()
	log.Info("realtimesync stopped")
	return nil
}

// wireEventLogging subscribes structured log lines to every event the
// realtime sync service emits, giving operators visibility without
// requiring a metrics scrape.
func wireEventLogging(bus *pkgrealtime.EventBus, log *logger.Logger) {
	bus.OnRealtimeCheckpoint(func(e pkgrealtime.RealtimeCheckpoint) {
		log.Debugw("realtimeCheckpoint", "timestamp", e.Timestamp)
	})
	bus.OnFinalityCheckpoint(func(e pkgrealtime.FinalityCheckpoint) {
		log.Infow("finalityCheckpoint", "timestamp", e.Timestamp)
	})
	bus.OnShallowReorg(func(e pkgrealtime.ShallowReorg) {
		log.Warnw("shallowReorg", "commonAncestorTimestamp", e.CommonAncestorTimestamp)
	})
	bus.OnDeepReorg(func(e pkgrealtime.DeepReorg) {
		log.Errorw("deepReorg", "detectedAtBlockNumber", e.DetectedAtBlockNumber, "minimumDepth", e.MinimumDepth)
	})
	bus.OnError(func(e pkgrealtime.ErrorEvent) {
		log.Errorw("realtime sync error", "error", e.Err)
	})
}
