package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/maroof-I/modlek/internal/hardening"
	"github.com/maroof-I/modlek/internal/notify"
	"github.com/maroof-I/modlek/internal/observability"
	"github.com/maroof-I/modlek/internal/pipeline"
	"github.com/maroof-I/modlek/internal/runlog"
	"github.com/maroof-I/modlek/internal/trend"
)

// Job is one schedulable unit of work. Run must be safe to call repeatedly;
// the orchestrator guarantees at most one in-flight invocation per job.
type Job interface {
	Name() string
	Run(ctx context.Context, now time.Time) runlog.Record
}

// ClassifyJob wraps one classification run. Failures are recorded and
// reported but never stop the schedule; the cursor guarantees the next run
// resumes where the failed one left off.
type ClassifyJob struct {
	Runner   *pipeline.Runner
	Notifier notify.Notifier
	Logger   *zap.Logger
}

func (j *ClassifyJob) Name() string { return runlog.KindClassify }

func (j *ClassifyJob) Run(ctx context.Context, now time.Time) runlog.Record {
	stats, err := j.Runner.Run(ctx)

	rec := runlog.Record{
		RunID:      stats.RunID,
		Kind:       runlog.KindClassify,
		Status:     runlog.StatusOK,
		Started:    stats.Started,
		Finished:   stats.Finished,
		Fetched:    stats.Fetched,
		Classified: stats.Classified,
		Malicious:  stats.Malicious,
		Skipped:    stats.Skipped,
	}
	if err != nil {
		rec.Status = runlog.StatusAborted
		rec.Error = err.Error()
		j.Logger.Error("classification run aborted",
			zap.String("run_id", stats.RunID),
			zap.Error(err))
		j.Notifier.Notify(ctx, notify.Event{
			Kind:     notify.KindClassifierError,
			Severity: notify.SeverityCritical,
			Subject:  "classification run aborted",
			Body: fmt.Sprintf("run %s aborted after %d records: %v",
				stats.RunID, stats.Classified, err),
			At: now,
		})
	}
	return rec
}

// HardenJob recomputes trend statistics over the lookback window and applies
// one hardening cycle against the rule catalog.
type HardenJob struct {
	Aggregator *trend.Aggregator
	Engine     *hardening.Engine
	Notifier   notify.Notifier

	// AttackPercentAlert raises a notification when the share of malicious
	// records in the window reaches the given percentage. Zero disables it.
	AttackPercentAlert float64

	Metrics *observability.Metrics
	Clock   func() time.Time
	Logger  *zap.Logger
}

func (j *HardenJob) Name() string { return runlog.KindHarden }

func (j *HardenJob) Run(ctx context.Context, now time.Time) runlog.Record {
	clock := j.Clock
	if clock == nil {
		clock = time.Now
	}

	rec := runlog.Record{
		RunID:   uuid.NewString(),
		Kind:    runlog.KindHarden,
		Status:  runlog.StatusOK,
		Started: now,
	}

	stats, summary, err := j.Aggregator.Aggregate(ctx, now)
	if err != nil {
		rec.Finished = clock()
		rec.Status = runlog.StatusAborted
		rec.Error = err.Error()
		j.Logger.Error("trend aggregation failed", zap.Error(err))
		return rec
	}
	rec.Fetched = summary.Records
	rec.Malicious = summary.Malicious

	if j.AttackPercentAlert > 0 && summary.AttackPercent >= j.AttackPercentAlert {
		j.Notifier.Notify(ctx, notify.Event{
			Kind:     notify.KindSeverityThresholdExceeded,
			Severity: notify.SeverityWarning,
			Subject:  "attack traffic above threshold",
			Body: fmt.Sprintf("%.1f%% of %d records in the window were malicious (threshold %.1f%%)",
				summary.AttackPercent, summary.Records, j.AttackPercentAlert),
			At: now,
		})
	}

	// A non-empty transition list alongside an error means the state commit
	// landed and only the conf render failed. The ruleset still changed, so
	// the change notification below must go out either way.
	transitions, err := j.Engine.Cycle(ctx, stats)
	if err != nil {
		rec.Status = runlog.StatusAborted
		rec.Error = err.Error()
		j.Logger.Error("hardening cycle failed", zap.Error(err))
		if len(transitions) == 0 {
			rec.Finished = clock()
			return rec
		}
	}

	for _, tr := range transitions {
		rec.Transitions = append(rec.Transitions, tr.String())
		j.Metrics.ObserveTransition(string(tr.From), string(tr.To))
	}
	if len(transitions) > 0 {
		j.Notifier.Notify(ctx, notify.Event{
			Kind:     notify.KindRuleSetChanged,
			Severity: notify.SeverityInfo,
			Subject:  fmt.Sprintf("rule set changed: %d transition(s)", len(transitions)),
			Body:     strings.Join(rec.Transitions, "\n"),
			At:       now,
		})
	}

	rec.Finished = clock()
	return rec
}
