package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/seedtray/delaytail"
)

func newRootCommand() *cobra.Command {
	cfg := delaytail.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "delaytail <source-path> <destination-path> <delay-seconds>",
		Short: "Copy lines appended to a file into another file after a fixed delay",
		Long: `delaytail follows source-path from its current end and appends every new
line to destination-path once delay-seconds have passed since it was read.

The source is opened without following symlinks. Only that open is
protected: a file swapped in after startup is not detected.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			delay, err := delaytail.ParseDelay(args[2])
			if err != nil {
				return err
			}
			cfg.Source, cfg.Destination, cfg.Delay = args[0], args[1], delay
			if err := cfg.Validate(); err != nil {
				return err
			}
			log, err := newLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			// Arguments are fine; later failures are logged, not usage errors.
			cmd.SilenceUsage = true
			cmd.SilenceErrors = true
			return run(cmd.Context(), cfg, log)
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfg.PolicyName, "policy", cfg.PolicyName, "Admission policy when the buffer is full: reject-new|evict-old")
	f.IntVar(&cfg.MaxBytes, "max-bytes", cfg.MaxBytes, "Buffered bytes bound for --policy=reject-new")
	f.IntVar(&cfg.MaxEntries, "max-entries", cfg.MaxEntries, "Buffered lines bound for --policy=evict-old")
	f.IntVar(&cfg.MaxLineBytes, "max-line-bytes", cfg.MaxLineBytes, "Longest line relayed; longer lines are dropped")
	f.IntVar(&cfg.QueueSize, "queue-size", cfg.QueueSize, "Capacity of the notification queue")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug|info|warn|error")
	f.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Serve Prometheus metrics on this address (disabled when empty)")
	return cmd
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrapf(delaytail.ErrInvalidConfig, "log level %q", level)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.Sampling = nil
	return zc.Build()
}

func run(ctx context.Context, cfg delaytail.Config, log *zap.Logger) error {
	defer log.Sync() //nolint:errcheck

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	stats := &delaytail.Stats{}
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		if err := delaytail.RegisterMetrics(reg, stats); err != nil {
			return err
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server failed", zap.Error(err))
			}
		}()
		defer srv.Close()
	}

	relay, err := delaytail.Open(cfg, stats, log)
	if err != nil {
		log.Error("could not start relay", zap.Error(err))
		return err
	}
	defer relay.Close()

	err = relay.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	log.Error("relay failed", zap.Error(err))
	return err
}
