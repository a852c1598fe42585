package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/maroof-I/modlek/internal/config"
	"github.com/maroof-I/modlek/internal/feature"
	"github.com/maroof-I/modlek/internal/hardening"
	"github.com/maroof-I/modlek/internal/logging"
	"github.com/maroof-I/modlek/internal/model"
	"github.com/maroof-I/modlek/internal/notify"
	"github.com/maroof-I/modlek/internal/observability"
	"github.com/maroof-I/modlek/internal/pipeline"
	"github.com/maroof-I/modlek/internal/store"
	"github.com/maroof-I/modlek/internal/trend"
)

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func buildLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.Logging.Level, cfg.Logging.Format)
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*store.Postgres, error) {
	pg, err := store.OpenPostgres(cfg.Store.DSN, cfg.Store.QueryTimeout, logger)
	if err != nil {
		return nil, err
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		_ = pg.Close()
		return nil, err
	}
	return pg, nil
}

func buildClassifier(cfg *config.Config, logger *zap.Logger) (*model.Classifier, error) {
	return model.NewClassifier(
		cfg.ResolvePath(cfg.Model.Artifact),
		feature.DefaultSchema(),
		cfg.Model.Threshold,
		logger,
	)
}

func buildRunner(cfg *config.Config, pg *store.Postgres, classifier *model.Classifier, metrics *observability.Metrics, logger *zap.Logger) (*pipeline.Runner, error) {
	writer, err := pipeline.NewWriter(pg, cfg.Pipeline.CacheSize, logger)
	if err != nil {
		return nil, err
	}

	return &pipeline.Runner{
		Fetcher:    pipeline.NewFetcher(pg, pg, cfg.Store.BatchSize, logger),
		Extractor:  feature.NewExtractor(),
		Classifier: classifier,
		Writer:     writer,
		Workers:    cfg.Pipeline.Workers,
		Backoff: pipeline.Backoff{
			Base:     cfg.Pipeline.RetryBase,
			Max:      cfg.Pipeline.RetryMax,
			Attempts: cfg.Pipeline.RetryAttempts,
		},
		Metrics: metrics,
		Logger:  logger,
	}, nil
}

func buildHardening(cfg *config.Config, pg *store.Postgres, logger *zap.Logger) (*trend.Aggregator, *hardening.Engine, error) {
	rulePaths := make([]string, 0, len(cfg.Hardening.RuleFiles))
	for _, p := range cfg.Hardening.RuleFiles {
		rulePaths = append(rulePaths, cfg.ResolvePath(p))
	}
	catalog, err := hardening.LoadCatalog(rulePaths)
	if err != nil {
		return nil, nil, err
	}

	engine, err := hardening.NewEngine(
		hardening.NewStateFile(cfg.ResolvePath(cfg.Hardening.StateFile)),
		catalog,
		hardening.NewConfWriter(cfg.ResolvePath(cfg.Hardening.RulesOut)),
		hardening.Thresholds{
			MinSamples:    cfg.Hardening.MinSamples,
			Promote:       cfg.Hardening.PromoteThreshold,
			Demote:        cfg.Hardening.DemoteThreshold,
			ConfirmCycles: cfg.Hardening.ConfirmCycles,
		},
		logger,
	)
	if err != nil {
		return nil, nil, err
	}

	return trend.NewAggregator(pg, cfg.Hardening.Lookback, logger), engine, nil
}

func buildNotifier(cfg *config.Config, metrics *observability.Metrics, logger *zap.Logger) notify.Notifier {
	sinks := []notify.Sink{&notify.LogSink{Logger: logger}}

	if cfg.Notify.SMTP.Enabled {
		sinks = append(sinks, &notify.SMTPSink{
			Host:     cfg.Notify.SMTP.Host,
			Port:     cfg.Notify.SMTP.Port,
			Username: cfg.Notify.SMTP.Username,
			Password: cfg.Notify.SMTP.Password,
			From:     cfg.Notify.SMTP.From,
			To:       cfg.Notify.SMTP.To,
			Timeout:  cfg.Notify.SMTP.Timeout,
		})
	}
	if cfg.Notify.Pushover.Enabled {
		sinks = append(sinks, notify.NewPushoverSink(cfg.Notify.Pushover.Token, cfg.Notify.Pushover.UserKey))
	}

	return notify.NewMulti(logger, cfg.Notify.Throttle, metrics, sinks...)
}
