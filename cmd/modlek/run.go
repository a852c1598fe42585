package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/maroof-I/modlek/internal/config"
	"github.com/maroof-I/modlek/internal/feature"
	"github.com/maroof-I/modlek/internal/observability"
	"github.com/maroof-I/modlek/internal/runlog"
	"github.com/maroof-I/modlek/internal/scheduler"
)

func newRunCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the classification and hardening scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return errors.New("config path is required")
			}
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return runScheduler(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	return cmd
}

func runScheduler(ctx context.Context, cfg *config.Config) error {
	logger, err := buildLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	signalCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	pg, err := openStore(signalCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = pg.Close() }()

	metrics, metricsSrv := startMetricsServer(cfg)
	defer func() {
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(context.Background())
		}
	}()

	classifier, err := buildClassifier(cfg, logger)
	if err != nil {
		return err
	}
	if cfg.Model.Watch {
		if err := classifier.Watch(signalCtx, feature.DefaultSchema()); err != nil {
			return err
		}
	}

	runner, err := buildRunner(cfg, pg, classifier, metrics, logger)
	if err != nil {
		return err
	}
	aggregator, engine, err := buildHardening(cfg, pg, logger)
	if err != nil {
		return err
	}
	notifier := buildNotifier(cfg, metrics, logger)

	var runLog *runlog.Logger
	if cfg.Logging.RunLog != "" {
		rl, closer, err := runlog.Open(cfg.ResolvePath(cfg.Logging.RunLog))
		if err != nil {
			return err
		}
		defer func() { _ = closer() }()
		runLog = rl
	}

	var bus *scheduler.Bus
	if cfg.Schedule.NATS.Enabled {
		bus, err = scheduler.NewBus(cfg.Schedule.NATS.URL, logger)
		if err != nil {
			return err
		}
		defer bus.Close()
	}

	orch := &scheduler.Orchestrator{
		ClassifyEvery: cfg.Schedule.ClassifyEvery,
		HardenEvery:   cfg.Schedule.HardenEvery,
		Classify: &scheduler.ClassifyJob{
			Runner:   runner,
			Notifier: notifier,
			Logger:   logger,
		},
		Harden: &scheduler.HardenJob{
			Aggregator:         aggregator,
			Engine:             engine,
			Notifier:           notifier,
			AttackPercentAlert: cfg.Hardening.AttackPercentAlert,
			Metrics:            metrics,
			Logger:             logger,
		},
		RunLog:  runLog,
		Bus:     bus,
		Metrics: metrics,
		Logger:  logger,
	}

	logger.Info("scheduler starting",
		zap.Duration("classify_every", cfg.Schedule.ClassifyEvery),
		zap.Duration("harden_every", cfg.Schedule.HardenEvery))

	if err := orch.Run(signalCtx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func startMetricsServer(cfg *config.Config) (*observability.Metrics, *http.Server) {
	if !cfg.Metrics.Enabled {
		return nil, nil
	}

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))

	srv := &http.Server{Addr: cfg.Metrics.Listen, Handler: mux}
	go func() {
		_ = srv.ListenAndServe()
	}()
	return metrics, srv
}
