package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newHardenCmd() *cobra.Command {
	var configPath string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "harden",
		Short: "Run one hardening cycle and exit",
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

			aggregator, engine, err := buildHardening(cfg, pg, logger)
			if err != nil {
				return err
			}

			now := time.Now()
			stats, summary, err := aggregator.Aggregate(ctx, now)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(),
				"window: records=%d malicious=%d attack=%.1f%% rules=%d\n",
				summary.Records, summary.Malicious, summary.AttackPercent, len(stats))

			if dryRun {
				for _, stat := range stats {
					precision := "n/a"
					if stat.Precision != nil {
						precision = fmt.Sprintf("%.2f", *stat.Precision)
					}
					_, _ = fmt.Fprintf(cmd.OutOrStdout(),
						"rule=%s pl=%d triggers=%d malicious=%d precision=%s\n",
						stat.RuleID, stat.ParanoiaLevel, stat.TriggerCount, stat.MaliciousCount, precision)
				}
				return nil
			}

			transitions, err := engine.Cycle(ctx, stats)
			if err != nil {
				// Transitions returned with an error are committed; print
				// them before surfacing the failure.
				for _, tr := range transitions {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), tr.String())
				}
				return err
			}
			if len(transitions) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no transitions")
				return nil
			}
			for _, tr := range transitions {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), tr.String())
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print window statistics without changing rule state")

	return cmd
}
