package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/scurry-works/poll-bot/pkg/config"
	"github.com/scurry-works/poll-bot/pkg/gateway"
	"github.com/scurry-works/poll-bot/pkg/poll"
	"github.com/scurry-works/poll-bot/pkg/store"
	"github.com/scurry-works/poll-bot/pkg/sweep"
	"github.com/scurry-works/poll-bot/pkg/utils"
)

var (
	configFile = flag.String("config", "config.yaml", "Path to configuration file")
	debug      = flag.Bool("debug", false, "Enable debug mode")
)

// App bundles the poll engine's services. The gateway connection that
// feeds events into Router and sends render instructions back is wired
// by the hosting bot process.
type App struct {
	Registry *poll.Registry
	Router   *gateway.Router
	Bridge   *store.Bridge
	Store    store.Store
	Sweeper  *sweep.Sweeper
	logger   *zap.Logger
}

func main() {
	flag.Parse()

	logger, err := initLogger(*debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Fatal("Failed to load configuration",
			zap.String("path", *configFile),
			zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := initializeApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize application", zap.Error(err))
	}

	setupGracefulShutdown(cancel, logger)

	<-ctx.Done()
	app.shutdown()
}

func initializeApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	st, err := newStore(initCtx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}

	bridge := store.NewBridge(st, &cfg.Persist, logger)
	bridge.Start()

	registry := poll.NewRegistry(&cfg.Poll, bridge, logger)

	// Crash recovery: reload whatever the store still holds.
	recs, err := st.List(initCtx)
	if err != nil {
		logger.Warn("Could not list persisted polls, starting empty", zap.Error(err))
	} else {
		registry.Restore(recs)
	}

	router := gateway.NewRouter(registry, logger)

	sweeper := sweep.NewSweeper(registry, &cfg.Sweep, logger)
	if err := sweeper.Start(); err != nil {
		return nil, fmt.Errorf("starting sweeper: %w", err)
	}

	logger.Info("Poll engine ready",
		zap.String("backend", cfg.Store.Backend),
		zap.Int("restoredPolls", registry.Len()))

	return &App{
		Registry: registry,
		Router:   router,
		Bridge:   bridge,
		Store:    st,
		Sweeper:  sweeper,
		logger:   logger,
	}, nil
}

func newStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Store, error) {
	switch cfg.Store.Backend {
	case "redis":
		return store.NewRedisStore(ctx, &cfg.Store.Redis, logger)
	case "postgres":
		return store.NewPostgresStore(ctx, &cfg.Store.Postgres, logger)
	case "memory":
		logger.Warn("Using in-memory store, polls will not survive a restart")
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func (a *App) shutdown() {
	a.logger.Info("Shutting down")

	a.Sweeper.Stop()
	// Drain pending persistence writes before closing the store.
	a.Bridge.Close()
	if err := a.Store.Close(); err != nil {
		a.logger.Warn("Closing store", zap.Error(err))
	}

	a.logger.Info("Shutdown complete")
}

func initLogger(debug bool) (*zap.Logger, error) {
	logCfg := utils.DefaultLogConfig()
	if debug {
		logCfg.Level = "debug"
		logCfg.Debug = true
	}
	return utils.NewLogger(logCfg)
}

func setupGracefulShutdown(cancel context.CancelFunc, logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()
}
