// Package main is the gpudetect command: it activates the available GPU
// backends, runs one detection pass, and prints the resulting offer as
// JSON to stdout.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/nodeoffer/gpudetect/internal/config"
	"github.com/nodeoffer/gpudetect/internal/hardware/gpu"
	"github.com/nodeoffer/gpudetect/internal/hardware/host"
	"github.com/nodeoffer/gpudetect/pkg/logger"
)

// report is the printed document: the GPU offer, optionally wrapped
// together with a host machine snapshot.
type report struct {
	Host *host.Info `json:"host,omitempty"`
	GPU  *gpu.Offer `json:"gpu"`
}

func main() {
	flags := pflag.NewFlagSet("gpudetect", pflag.ExitOnError)
	flags.StringSlice("force", nil, "backends that must activate (cuda, amd)")
	flags.Bool("unstable", false, "report best-effort properties such as estimated memory bandwidth")
	flags.Bool("with-host", false, "include a host machine snapshot in the output")
	flags.Bool("dev", false, "human-readable console logging")
	flags.String("log-level", "", "minimum log level (debug, info, warn, error)")
	flags.Duration("timeout", 0, "detection timeout")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.DevMode, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("Detection failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	builder := gpu.NewBuilder(log)
	for _, name := range cfg.ForceBackends {
		builder.Force(name)
	}
	if cfg.UnstableProps {
		builder.UnstableProps()
	}

	detection, err := builder.Init()
	if err != nil {
		var cfgErr *gpu.ConfigError
		if errors.As(err, &cfgErr) {
			log.Error("Forced backends unavailable",
				zap.Strings("missing", cfgErr.Missing),
			)
		}
		return err
	}
	defer func() {
		if err := detection.Close(); err != nil {
			log.Warn("Failed to close backends", zap.Error(err))
		}
	}()

	log.Info("Backends activated",
		zap.Strings("backends", detection.Backends()),
		zap.Bool("unstable_props", cfg.UnstableProps),
	)

	ctx, cancel := context.WithTimeout(ctx, cfg.DetectTimeout)
	defer cancel()

	start := time.Now()
	offer, err := detection.Detect(ctx)
	if err != nil {
		return err
	}
	log.Info("Detection complete",
		zap.Int("device_groups", len(offer.Devices)),
		zap.Duration("took", time.Since(start)),
	)

	out := report{GPU: offer}
	if cfg.WithHost {
		if out.Host, err = host.Collect(ctx); err != nil {
			return fmt.Errorf("collecting host snapshot: %w", err)
		}
	}

	enc, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	fmt.Println(string(enc))
	return nil
}
