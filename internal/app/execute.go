package app

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cybnity/internal/config"
)

// Role is a long running process part, stopped through its context.
type Role interface {
	Run(ctx context.Context) error
}

// Execute loads the configuration, applies override, wires a runtime and runs
// the role built from it next to the metrics server until SIGINT or SIGTERM.
func Execute(ctx context.Context, override func(*config.Config), build func(*Runtime) (Role, error)) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if override != nil {
		override(&cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	rt, err := New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to wire runtime: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rt.Close(shutdownCtx); err != nil {
			logger.Error("failed to close runtime", zap.Error(err))
		}
	}()

	role, err := build(rt)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting",
		zap.String("service", cfg.ServiceName),
		zap.String("transport", cfg.Transport),
		zap.String("announces", cfg.AnnouncesChannel),
		zap.Strings("notifications", cfg.NotificationChannels),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return rt.Serve(gctx)
	})
	g.Go(func() error {
		return role.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("stopped with error", zap.Error(err))
		return err
	}

	logger.Info("stopped")

	return nil
}
