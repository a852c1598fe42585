package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/maroof-I/modlek/internal/store"
	"github.com/maroof-I/modlek/internal/waf"
)

// Fetcher streams unclassified records bucket by bucket from the persisted
// cursor up to the current hour. It is the sole owner of the cursor: Advance
// must be called from a single goroutine, after the record's classification
// committed.
type Fetcher struct {
	source    store.AuditSource
	cursors   store.CursorStore
	batchSize int
	logger    *zap.Logger

	cur store.Cursor
}

func NewFetcher(source store.AuditSource, cursors store.CursorStore, batchSize int, logger *zap.Logger) *Fetcher {
	if batchSize <= 0 {
		batchSize = 500
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{source: source, cursors: cursors, batchSize: batchSize, logger: logger}
}

// Init loads the persisted cursor. A zero cursor starts at the current hour:
// history before first deployment belongs to training, not to the live
// pipeline.
func (f *Fetcher) Init(ctx context.Context, now time.Time) error {
	cur, err := f.cursors.LoadCursor(ctx)
	if err != nil {
		return err
	}
	if cur.Zero() {
		cur = store.Cursor{Bucket: store.BucketAt(now)}
		f.logger.Info("no cursor found, starting at current bucket", zap.String("bucket", string(cur.Bucket)))
	}
	f.cur = cur
	return nil
}

func (f *Fetcher) Cursor() store.Cursor {
	return f.cur
}

// Next returns the next batch after the cursor, moving to newer buckets as
// each drains. Returns nil when caught up to the current hour.
func (f *Fetcher) Next(ctx context.Context, now time.Time) ([]waf.AuditRecord, error) {
	nowBucket := store.BucketAt(now)

	for {
		recs, err := f.source.FetchBucket(ctx, f.cur.Bucket, f.cur.LastID, f.batchSize)
		if err != nil {
			return nil, err
		}
		if len(recs) > 0 {
			return recs, nil
		}

		// Bucket drained. Only leave it once it can no longer grow.
		if f.cur.Bucket == nowBucket {
			return nil, nil
		}
		next, err := f.cur.Bucket.Next()
		if err != nil {
			return nil, err
		}
		f.cur = store.Cursor{Bucket: next}
	}
}

// Advance persists the cursor just past rec. Never call before the record's
// classified write has committed.
func (f *Fetcher) Advance(ctx context.Context, rec waf.AuditRecord) error {
	cur := store.Cursor{Bucket: store.BucketAt(rec.Timestamp), LastID: rec.ID}
	if err := f.cursors.SaveCursor(ctx, cur); err != nil {
		return err
	}
	f.cur = cur
	return nil
}
