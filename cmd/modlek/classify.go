package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newClassifyCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Run one classification pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return errors.New("config path is required")
			}
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			logger, err := buildLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx := cmd.Context()
			pg, err := openStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = pg.Close() }()

			classifier, err := buildClassifier(cfg, logger)
			if err != nil {
				return err
			}
			runner, err := buildRunner(cfg, pg, classifier, nil, logger)
			if err != nil {
				return err
			}

			stats, err := runner.Run(ctx)
			if err != nil {
				return fmt.Errorf("run %s: %w", stats.RunID, err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(),
				"run=%s fetched=%d classified=%d malicious=%d skipped=%d duration=%s\n",
				stats.RunID, stats.Fetched, stats.Classified, stats.Malicious, stats.Skipped,
				stats.Finished.Sub(stats.Started).Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	return cmd
}
