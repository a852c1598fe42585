package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sort"
	"strings"
)

type ValidationError struct {
	Problems []string
}

func (v *ValidationError) Add(format string, args ...any) {
	v.Problems = append(v.Problems, fmt.Sprintf(format, args...))
}

func (v *ValidationError) Error() string {
	return fmt.Sprintf("%d validation error(s)", len(v.Problems))
}

func (c *Config) Validate() error {
	v := &ValidationError{}

	if c.ConfigVersion != 1 {
		v.Add("configVersion must be 1")
	}

	if strings.TrimSpace(c.Store.DSN) == "" {
		v.Add("store.dsn is required")
	}
	if c.Store.QueryTimeout <= 0 {
		v.Add("store.queryTimeout must be > 0")
	}
	if c.Store.BatchSize <= 0 {
		v.Add("store.batchSize must be > 0")
	}

	if c.Model.Artifact == "" {
		v.Add("model.artifact is required")
	} else if err := requireFile(c.resolvePath(c.Model.Artifact)); err != nil {
		v.Add("model.artifact invalid: %v", err)
	}
	if c.Model.Threshold <= 0 || c.Model.Threshold >= 1 {
		v.Add("model.threshold must be in (0, 1)")
	}

	if c.Pipeline.Workers <= 0 {
		v.Add("pipeline.workers must be > 0")
	}
	if c.Pipeline.RetryBase <= 0 {
		v.Add("pipeline.retryBase must be > 0")
	}
	if c.Pipeline.RetryMax < c.Pipeline.RetryBase {
		v.Add("pipeline.retryMax must be >= pipeline.retryBase")
	}
	if c.Pipeline.RetryAttempts <= 0 {
		v.Add("pipeline.retryAttempts must be > 0")
	}
	if c.Pipeline.CacheSize <= 0 {
		v.Add("pipeline.cacheSize must be > 0")
	}

	if len(c.Hardening.RuleFiles) == 0 {
		v.Add("hardening.ruleFiles must name at least one rules file")
	}
	for i, path := range c.Hardening.RuleFiles {
		if path == "" {
			v.Add("hardening.ruleFiles[%d] is empty", i)
		} else if err := requireFile(c.resolvePath(path)); err != nil {
			v.Add("hardening.ruleFiles[%d] invalid: %v", i, err)
		}
	}
	if c.Hardening.StateFile == "" {
		v.Add("hardening.stateFile is required")
	}
	if c.Hardening.RulesOut == "" {
		v.Add("hardening.rulesOut is required")
	}
	if c.Hardening.Lookback <= 0 {
		v.Add("hardening.lookback must be > 0")
	}
	if c.Hardening.MinSamples <= 0 {
		v.Add("hardening.minSamples must be > 0")
	}
	if c.Hardening.PromoteThreshold <= 0 || c.Hardening.PromoteThreshold > 1 {
		v.Add("hardening.promoteThreshold must be in (0, 1]")
	}
	if c.Hardening.DemoteThreshold <= 0 || c.Hardening.DemoteThreshold > 1 {
		v.Add("hardening.demoteThreshold must be in (0, 1]")
	}
	if c.Hardening.DemoteThreshold >= c.Hardening.PromoteThreshold {
		v.Add("hardening.demoteThreshold must be < hardening.promoteThreshold")
	}
	if c.Hardening.ConfirmCycles <= 0 {
		v.Add("hardening.confirmCycles must be > 0")
	}
	if c.Hardening.AttackPercentAlert < 0 || c.Hardening.AttackPercentAlert > 100 {
		v.Add("hardening.attackPercentAlert must be in [0, 100]")
	}

	if c.Notify.Throttle < 0 {
		v.Add("notify.throttle must be >= 0")
	}
	if c.Notify.SMTP.Enabled {
		if c.Notify.SMTP.Host == "" {
			v.Add("notify.smtp.host required when smtp.enabled is true")
		}
		if c.Notify.SMTP.Port <= 0 || c.Notify.SMTP.Port > 65535 {
			v.Add("notify.smtp.port must be in (0, 65535]")
		}
		if c.Notify.SMTP.From == "" {
			v.Add("notify.smtp.from required when smtp.enabled is true")
		}
		if len(c.Notify.SMTP.To) == 0 {
			v.Add("notify.smtp.to must name at least one recipient")
		}
	}
	if c.Notify.Pushover.Enabled {
		if c.Notify.Pushover.Token == "" {
			v.Add("notify.pushover.token required when pushover.enabled is true")
		}
		if c.Notify.Pushover.UserKey == "" {
			v.Add("notify.pushover.userKey required when pushover.enabled is true")
		}
	}

	if c.Schedule.ClassifyEvery <= 0 {
		v.Add("schedule.classifyEvery must be > 0")
	}
	if c.Schedule.HardenEvery <= 0 {
		v.Add("schedule.hardenEvery must be > 0")
	}
	if c.Schedule.NATS.Enabled && c.Schedule.NATS.URL == "" {
		v.Add("schedule.nats.url required when nats.enabled is true")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		v.Add("logging.level must be debug|info|warn|error")
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		v.Add("logging.format must be json|console")
	}

	if c.Metrics.Enabled {
		if err := validateListen(c.Metrics.Listen); err != nil {
			v.Add("metrics.listen invalid: %v", err)
		}
	}

	if len(v.Problems) > 0 {
		sort.Strings(v.Problems)
		return v
	}
	return nil
}

func validateListen(addr string) error {
	if strings.TrimSpace(addr) == "" {
		return errors.New("address is required")
	}
	if _, err := net.ResolveTCPAddr("tcp", addr); err != nil {
		return err
	}
	return nil
}

func requireFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}
