// Package main implements the entry point for the playerlist service: it
// watches one game server, enriches the connected player list with profile
// metadata and curated nicknames, and serves the aggregate over HTTP.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/c360/playerlist/config"
	"github.com/c360/playerlist/errors"
	"github.com/c360/playerlist/gateway"
	"github.com/c360/playerlist/health"
	"github.com/c360/playerlist/metric"
	"github.com/c360/playerlist/nickname"
	"github.com/c360/playerlist/output"
	"github.com/c360/playerlist/pkg/cache"
	"github.com/c360/playerlist/playerlist"
	"github.com/c360/playerlist/upstream"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "playerlist"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cliCfg := parseFlags()

	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil
	}
	if cliCfg.ShowVersion {
		fmt.Printf("%s %s (build %s)\n", appName, Version, BuildTime)
		return nil
	}
	if err := validateFlags(cliCfg); err != nil {
		return err
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	cfg, err := loadConfiguration(cliCfg)
	if err != nil {
		return err
	}
	if cliCfg.Validate {
		logger.Info("Configuration is valid")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return runService(ctx, cfg, cliCfg, logger)
}

// loadConfiguration merges the config file, CLI flags and environment into
// a validated configuration.
func loadConfiguration(cliCfg *CLIConfig) (*config.Config, error) {
	cfg := config.Default()
	if cliCfg.ConfigPath != "" {
		loaded, err := config.LoadFile(cliCfg.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	// CLI flags override the file.
	if cliCfg.ServerAddress != "" {
		cfg.Server.Address = cliCfg.ServerAddress
	}
	if cliCfg.Port > 0 {
		cfg.HTTP.Port = cliCfg.Port
	}
	if cliCfg.NicknamesPath != "" {
		cfg.Nicknames.Path = cliCfg.NicknamesPath
	}

	if err := cfg.Validate(); err != nil {
		if errors.IsFatal(err) {
			return nil, fmt.Errorf("%w (set --server or PLAYERLIST_SERVER)", err)
		}
		return nil, err
	}
	return cfg, nil
}

func runService(ctx context.Context, cfg *config.Config, cliCfg *CLIConfig, logger *slog.Logger) error {
	registry := metric.NewRegistry()
	monitor := health.NewMonitor()

	profileCache, err := cache.NewTTL[upstream.Profile](cfg.Cache.TTL.Std(),
		cache.WithMetrics[upstream.Profile](registry, "profiles"))
	if err != nil {
		return err
	}

	statusClient := upstream.NewStatusClient(cfg.Upstream.StatusBaseURL, cfg.Server.Address, cfg.Upstream.Timeout.Std())
	profileClient := upstream.NewProfileClient(cfg.Upstream.ProfileBaseURL, cfg.Upstream.Timeout.Std(),
		cfg.Upstream.LookupRate, cfg.Upstream.LookupBurst)

	nickStore := nickname.NewStore(cfg.Nicknames.Path, cfg.Nicknames.RefreshInterval.Std(), logger)

	service := playerlist.NewService(
		statusClient,
		profileClient,
		profileCache,
		playerlist.NewAvatarURLBuilder(cfg.Avatar.BaseURL, cfg.Avatar.Size),
		playerlist.WithNicknames(nickStore),
		playerlist.WithLogger(logger),
		playerlist.WithMetrics(registry.Core),
	)

	hub := gateway.NewHub(logger)
	publishers := []playerlist.Publisher{hub}

	if cfg.NATS.Enabled {
		natsPub, err := output.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.Subject, logger)
		if err != nil {
			logger.Error("NATS publisher unavailable, continuing without it", "error", err)
		} else {
			defer natsPub.Close()
			publishers = append(publishers, natsPub)
		}
	}

	refresher := playerlist.NewRefresher(service, cfg.Cache.TTL.Std(), cfg.Refresh.Workers,
		playerlist.WithRefresherLogger(logger),
		playerlist.WithRefresherMetrics(registry.Core),
		playerlist.WithWorkerMetrics(registry),
		playerlist.WithHealthMonitor(monitor),
		playerlist.WithPublishers(publishers...),
	)

	serverOpts := []gateway.ServerOption{
		gateway.WithHub(hub),
		gateway.WithHealthMonitor(monitor),
		gateway.WithServerLogger(logger),
		gateway.WithShutdownTimeout(cliCfg.ShutdownTimeout),
	}
	if cfg.Metrics.Enabled {
		serverOpts = append(serverOpts, gateway.WithMetrics(registry))
	}
	if cfg.HTTP.TLS.Enabled() {
		serverOpts = append(serverOpts, gateway.WithTLS(gateway.TLSOptions{
			Port:     cfg.HTTP.TLS.Port,
			CertFile: cfg.HTTP.TLS.CertFile,
			KeyFile:  cfg.HTTP.TLS.KeyFile,
		}))
	}
	server := gateway.NewServer(cfg.HTTP.Port, service, serverOpts...)

	logger.Info("starting",
		"server", cfg.Server.Address,
		"port", cfg.HTTP.Port,
		"cache_ttl", cfg.Cache.TTL.Std(),
		"nicknames", cfg.Nicknames.Path,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(gctx) })
	g.Go(func() error { return refresher.Run(gctx) })
	g.Go(func() error {
		nickStore.Run(gctx)
		return nil
	})

	err = g.Wait()
	if err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
