package trend

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/maroof-I/modlek/internal/store"
	"github.com/maroof-I/modlek/internal/waf"
)

// RuleStat is the aggregated evidence for one detection rule over a lookback
// window. Precision is nil when the rule never triggered: no data must not
// read as no risk.
type RuleStat struct {
	RuleID         string   `json:"rule_id"`
	ParanoiaLevel  int      `json:"paranoia_level"`
	TriggerCount   int      `json:"trigger_count"`
	MaliciousCount int      `json:"malicious_count"`
	BenignCount    int      `json:"benign_count"`
	TriggerRate    float64  `json:"trigger_rate"`
	Precision      *float64 `json:"precision,omitempty"`
}

// WindowSummary describes the classified window as a whole.
type WindowSummary struct {
	Records         int     `json:"records"`
	Malicious       int     `json:"malicious"`
	Benign          int     `json:"benign"`
	AttackPercent   float64 `json:"attack_percent"`
	AvgAnomalyScore float64 `json:"avg_anomaly_score"`
}

// Aggregator recomputes rule statistics from scratch each cycle. Nothing is
// persisted incrementally; stale partial aggregates cannot drift.
type Aggregator struct {
	classified store.ClassifiedStore
	lookback   time.Duration
	logger     *zap.Logger
}

func NewAggregator(classified store.ClassifiedStore, lookback time.Duration, logger *zap.Logger) *Aggregator {
	if lookback <= 0 {
		lookback = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{classified: classified, lookback: lookback, logger: logger}
}

// Aggregate scans the classified buckets in [now-lookback, now] and returns
// per-rule stats sorted by trigger count (descending, rule id as tiebreaker)
// plus the window summary.
func (a *Aggregator) Aggregate(ctx context.Context, now time.Time) ([]RuleStat, WindowSummary, error) {
	buckets := store.BucketsBetween(now.Add(-a.lookback), now)

	byRule := make(map[string]*RuleStat)
	var summary WindowSummary
	var anomalySum int

	err := a.classified.ScanClassified(ctx, buckets, func(rec waf.AuditRecord, cls waf.Classification) error {
		summary.Records++
		anomalySum += rec.TotalAnomalyScore
		malicious := cls.Malicious()
		if malicious {
			summary.Malicious++
		} else {
			summary.Benign++
		}

		// A rule that fires more than once on one record still counts one
		// trigger for that record.
		seen := make(map[string]bool, len(rec.TriggeredRules))
		for _, tr := range rec.TriggeredRules {
			if tr.ID == "" || seen[tr.ID] {
				continue
			}
			seen[tr.ID] = true

			stat, ok := byRule[tr.ID]
			if !ok {
				stat = &RuleStat{RuleID: tr.ID, ParanoiaLevel: tr.ParanoiaLevel}
				byRule[tr.ID] = stat
			}
			if tr.ParanoiaLevel > stat.ParanoiaLevel {
				stat.ParanoiaLevel = tr.ParanoiaLevel
			}
			stat.TriggerCount++
			if malicious {
				stat.MaliciousCount++
			} else {
				stat.BenignCount++
			}
		}
		return nil
	})
	if err != nil {
		return nil, WindowSummary{}, err
	}

	if summary.Records > 0 {
		summary.AttackPercent = 100 * float64(summary.Malicious) / float64(summary.Records)
		summary.AvgAnomalyScore = float64(anomalySum) / float64(summary.Records)
	}

	stats := make([]RuleStat, 0, len(byRule))
	for _, stat := range byRule {
		if summary.Records > 0 {
			stat.TriggerRate = float64(stat.TriggerCount) / float64(summary.Records)
		}
		if stat.TriggerCount > 0 {
			p := float64(stat.MaliciousCount) / float64(stat.TriggerCount)
			stat.Precision = &p
		}
		stats = append(stats, *stat)
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].TriggerCount != stats[j].TriggerCount {
			return stats[i].TriggerCount > stats[j].TriggerCount
		}
		return stats[i].RuleID < stats[j].RuleID
	})

	a.logger.Debug("aggregated window",
		zap.Int("buckets", len(buckets)),
		zap.Int("records", summary.Records),
		zap.Int("rules", len(stats)))
	return stats, summary, nil
}
