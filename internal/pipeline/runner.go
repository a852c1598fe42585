package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/maroof-I/modlek/internal/feature"
	"github.com/maroof-I/modlek/internal/model"
	"github.com/maroof-I/modlek/internal/observability"
	"github.com/maroof-I/modlek/internal/waf"
)

// RunStats is the bookkeeping for one classification run.
type RunStats struct {
	RunID      string
	Started    time.Time
	Finished   time.Time
	Fetched    int
	Classified int
	Malicious  int
	Skipped    int
}

// Runner drives one classification run: fetch, extract, classify, write,
// advance. Classification fans out across a bounded worker pool; writes and
// cursor advancement stay strictly ordered so a crash between any two records
// neither loses nor duplicates work.
type Runner struct {
	Fetcher    *Fetcher
	Extractor  *feature.Extractor
	Classifier *model.Classifier
	Writer     *Writer
	Workers    int
	Backoff    Backoff
	Metrics    *observability.Metrics
	Clock      func() time.Time
	Logger     *zap.Logger
}

type scored struct {
	cls waf.Classification
	err error
}

func (r *Runner) Run(ctx context.Context) (RunStats, error) {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := r.Clock
	if clock == nil {
		clock = time.Now
	}

	stats := RunStats{RunID: uuid.NewString(), Started: clock()}
	logger = logger.With(zap.String("run_id", stats.RunID))

	if err := r.Backoff.Retry(ctx, logger, "load cursor", func() error {
		return r.Fetcher.Init(ctx, clock())
	}); err != nil {
		stats.Finished = clock()
		return stats, err
	}

	for {
		if err := ctx.Err(); err != nil {
			stats.Finished = clock()
			return stats, err
		}

		var batch []waf.AuditRecord
		if err := r.Backoff.Retry(ctx, logger, "fetch", func() error {
			var ferr error
			batch, ferr = r.Fetcher.Next(ctx, clock())
			return ferr
		}); err != nil {
			stats.Finished = clock()
			return stats, err
		}
		if len(batch) == 0 {
			break
		}
		stats.Fetched += len(batch)

		results := r.classifyBatch(ctx, batch, clock)

		// Commit in record order: write, then advance. The cursor never
		// passes a record whose result is not durable.
		for i, rec := range batch {
			if err := ctx.Err(); err != nil {
				stats.Finished = clock()
				return stats, err
			}

			res := results[i]
			if res.err != nil {
				var mismatch *model.SchemaMismatchError
				if errors.As(res.err, &mismatch) {
					// Version drift poisons every record the same way.
					stats.Finished = clock()
					return stats, res.err
				}
				stats.Skipped++
				r.Metrics.ObserveSkip()
				logger.Warn("skipping record",
					zap.String("record_id", rec.ID),
					zap.Error(res.err))
			} else {
				if err := r.Backoff.Retry(ctx, logger, "write classified", func() error {
					return r.Writer.Write(ctx, rec, res.cls)
				}); err != nil {
					stats.Finished = clock()
					return stats, err
				}
				stats.Classified++
				if res.cls.Malicious() {
					stats.Malicious++
				}
				r.Metrics.ObserveClassification(string(res.cls.Label), res.cls.Confidence)
			}

			if err := r.Backoff.Retry(ctx, logger, "advance cursor", func() error {
				return r.Fetcher.Advance(ctx, rec)
			}); err != nil {
				stats.Finished = clock()
				return stats, err
			}
		}
	}

	stats.Finished = clock()
	logger.Info("classification run complete",
		zap.Int("fetched", stats.Fetched),
		zap.Int("classified", stats.Classified),
		zap.Int("malicious", stats.Malicious),
		zap.Int("skipped", stats.Skipped))
	return stats, nil
}

// classifyBatch scores a batch concurrently, one result slot per record.
// Extraction and classification are pure, so only slot i is touched by the
// worker handling record i.
func (r *Runner) classifyBatch(ctx context.Context, batch []waf.AuditRecord, clock func() time.Time) []scored {
	workers := r.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(batch) {
		workers = len(batch)
	}

	results := make([]scored, len(batch))
	indices := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				vec := r.Extractor.Extract(batch[i])
				label, confidence, err := r.Classifier.Classify(vec)
				if err != nil {
					results[i] = scored{err: err}
					continue
				}
				results[i] = scored{cls: waf.Classification{
					RecordID:     batch[i].ID,
					Label:        label,
					Confidence:   confidence,
					ModelVersion: r.Classifier.Version(),
					ClassifiedAt: clock().UTC(),
				}}
			}
		}()
	}

feed:
	for i := range batch {
		select {
		case <-ctx.Done():
			// Unfed slots stay zeroed; the commit loop sees the cancelled
			// context before it reaches them.
			break feed
		case indices <- i:
		}
	}
	close(indices)
	wg.Wait()

	return results
}
