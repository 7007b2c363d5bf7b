package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vixbridge/internal/config"
	"github.com/kailas-cloud/vixbridge/internal/logger"
	"github.com/kailas-cloud/vixbridge/internal/metrics"
	"github.com/kailas-cloud/vixbridge/internal/provider"
	"github.com/kailas-cloud/vixbridge/internal/stream"
	"github.com/kailas-cloud/vixbridge/internal/usecase/bridge"
	"github.com/kailas-cloud/vixbridge/internal/version"
)

// errRunFailed marks a failure that runBridge has already logged.
var errRunFailed = errors.New("bridge run failed")

var (
	envFlag      string
	configFlag   string
	logLevelFlag string
)

var rootCmd = &cobra.Command{
	Use:   "vixbridge <provider>",
	Short: "Stream virtual index search results from a backend provider",
	Long: `vixbridge reads one search request line from stdin, runs it against the
named provider and writes the results to stdout as chunked frames.

Run "vixbridge providers" to list the available providers.`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runBridge,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFlag, "env", config.GetEnv(), "environment: local, dev, docker or prod")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "config file (default: config/<env>.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "log level override: debug, info, warn, error")
}

func loadConfig() (config.Config, error) {
	if configFlag != "" {
		return config.LoadFile(configFlag)
	}
	return config.Load(envFlag)
}

func runBridge(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		closeStream(cmd.OutOrStdout(), "")
		return err
	}

	level := logLevelFlag
	if level == "" {
		level = cfg.Logging.Level
	}
	log, err := logger.NewLogger(envFlag, level)
	if err != nil {
		closeStream(cmd.OutOrStdout(), cfg.Host)
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	name := args[0]
	runID := uuid.NewString()
	log = log.With(zap.String("run_id", runID), zap.String("provider", name))

	log.Info("Starting vixbridge",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", envFlag),
	)

	defaults, err := cfg.Providers.Defaults(name)
	if err != nil {
		log.Error("Invalid provider defaults", zap.Error(err))
		closeStream(cmd.OutOrStdout(), cfg.Host)
		return errRunFailed
	}

	m := metrics.New()
	svc := bridge.New(builtinRegistry(), log,
		bridge.WithHost(cfg.Host),
		bridge.WithSinkWrapper(func(s stream.ChunkSink) stream.ChunkSink {
			return metrics.NewInstrumentedSink(s, m)
		}),
		bridge.WithProviderWrapper(func(n string, p provider.Provider) provider.Provider {
			return metrics.NewInstrumentedProvider(p, n, m, log)
		}),
	)

	ctx := logger.ContextWithLogger(cmd.Context(), log)
	start := time.Now()
	runErr := svc.Execute(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), name, provider.Deps{
		Logger:   log,
		Defaults: defaults,
	})
	pushMetrics(ctx, cfg.Metrics, m, runID, name)

	if runErr != nil {
		log.Error("Bridge run failed", zap.Error(runErr), zap.Duration("duration", time.Since(start)))
		return errRunFailed
	}
	log.Info("Bridge run completed", zap.Duration("duration", time.Since(start)))
	return nil
}

// closeStream leaves a closed, framed stream on out when a run fails before
// the bridge service owns the output.
func closeStream(out io.Writer, host string) {
	_ = bridge.New(bridge.NewRegistry(), nil, bridge.WithHost(host)).NewStream(out).Close()
}

// pushMetrics exports the run's registry. Failures never change the exit status.
func pushMetrics(ctx context.Context, cfg config.MetricsConfig, m *metrics.Metrics, runID, name string) {
	if cfg.PushgatewayURL == "" {
		return
	}
	log := logger.FromContext(ctx)
	pushCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.PushTimeoutSec)*time.Second)
	defer cancel()
	err := m.Push(pushCtx, cfg.PushgatewayURL, cfg.Job, map[string]string{
		"run_id":   runID,
		"provider": name,
	})
	if err != nil {
		log.Warn("Failed to push metrics", zap.String("url", cfg.PushgatewayURL), zap.Error(err))
	}
}
