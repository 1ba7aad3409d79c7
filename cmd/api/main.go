package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/melih/lighthouse-dash/internal/adapters/builder"
	"github.com/melih/lighthouse-dash/internal/adapters/docker"
	"github.com/melih/lighthouse-dash/internal/adapters/host"
	"github.com/melih/lighthouse-dash/internal/adapters/http"
	"github.com/melih/lighthouse-dash/internal/adapters/memory"
	"github.com/melih/lighthouse-dash/internal/adapters/redis"
	"github.com/melih/lighthouse-dash/internal/config"
	"github.com/melih/lighthouse-dash/internal/core/ports"
	"github.com/melih/lighthouse-dash/internal/core/services/events"
	"github.com/melih/lighthouse-dash/internal/core/services/lifecycle"
	"github.com/melih/lighthouse-dash/internal/core/services/snapshot"
	"github.com/melih/lighthouse-dash/internal/core/services/system"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	config.SetDefaults(v)

	cmd := &cobra.Command{
		Use:           "lighthouse-dash",
		Short:         "Web dashboard for the local Docker daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(v, file)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return err
			}
			log := cfg.Logger()
			slog.SetDefault(log)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := run(ctx, cfg, log); err != nil {
				log.Error("server stopped", "err", err)
				return err
			}
			return nil
		},
	}
	if err := config.RegisterFlags(cmd.Flags(), v); err != nil {
		panic(err)
	}
	return cmd
}

func newBus(ctx context.Context, cfg *config.Config) (ports.Bus, error) {
	if cfg.Bus.Driver == config.BusMemory {
		return memory.NewBus(memory.DefaultBuffer), nil
	}
	return redis.NewBus(ctx, redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Adapters
	dockerAdapter, err := docker.NewAdapter(log.With("component", "docker"), docker.WithStopTimeout(cfg.Docker.StopTimeout))
	if err != nil {
		return err
	}
	defer dockerAdapter.Close()
	if err := dockerAdapter.Ping(ctx); err != nil {
		log.Warn("docker daemon not reachable yet", "err", err)
	}

	bus, err := newBus(ctx, cfg)
	if err != nil {
		return err
	}
	defer bus.Close()
	log.Info("event bus ready", "driver", cfg.Bus.Driver)

	// Core services
	publisher := events.NewPublisher(bus, cfg.Events.Channel, log.With("component", "events"))
	execOpts := []lifecycle.ExecutorOption{lifecycle.WithRestartFailuresAreNoOps(cfg.Batch.RestartFailuresAreNoOps)}
	if cfg.Batch.EnableBuilds {
		execOpts = append(execOpts, lifecycle.WithBuilder(builder.NewBuilderAdapter(dockerAdapter.Client(), log.With("component", "builder"))))
	}
	executor := lifecycle.NewExecutor(dockerAdapter, log.With("component", "executor"), execOpts...)
	dispatcher := lifecycle.NewDispatcher(executor, publisher, log.With("component", "dispatcher"),
		lifecycle.WithMaxConcurrency(cfg.Batch.MaxConcurrency))
	pruner := system.NewPruner(dockerAdapter, publisher, log.With("component", "system"))
	relay := events.NewRelay(bus, cfg.Stream.IdleTimeout, log.With("component", "relay"))

	// HTTP
	handlers := http.Handlers{
		Containers: http.NewContainerHandler(dockerAdapter, dispatcher, log),
		Images:     http.NewImageHandler(dockerAdapter, dispatcher, log),
		System:     http.NewSystemHandler(pruner),
		Streams:    http.NewStreamHandler(ctx, relay, log.With("component", "stream")),
	}
	if cfg.Proxy.Domain != "" {
		handlers.Proxy = http.NewProxyHandler(dockerAdapter, cfg.Proxy.Domain, log.With("component", "proxy"))
	}
	app := http.NewRouter(handlers, http.RouterConfig{AccessLog: cfg.HTTP.AccessLog, Log: log})

	// Snapshots
	var wg conc.WaitGroup
	if cfg.Snapshot.Enabled {
		snapshots := snapshot.NewPublisher(dockerAdapter, bus, log.With("component", "snapshot"),
			snapshot.WithInterval(cfg.Snapshot.Interval),
			snapshot.WithHostSampler(host.NewSampler()))
		wg.Go(func() { snapshots.Run(ctx) })
	}

	listenErr := make(chan error, 1)
	go func() {
		log.Info("server starting", "addr", cfg.HTTP.Addr)
		listenErr <- app.Listen(cfg.HTTP.Addr)
	}()

	select {
	case err = <-listenErr:
		if err != nil {
			err = fmt.Errorf("server failed to start: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if serr := app.ShutdownWithContext(shutdownCtx); serr != nil && !errors.Is(serr, context.DeadlineExceeded) {
			err = fmt.Errorf("failed to shut down: %w", serr)
		}
	}
	cancel()
	wg.Wait()
	return err
}
