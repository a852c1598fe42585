package pipeline

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/maroof-I/modlek/internal/store"
	"github.com/maroof-I/modlek/internal/waf"
)

// Writer persists classification results. Writes are idempotent on
// (record id, model version): the store upserts, and a bounded LRU of recent
// keys short-circuits the common retry case without a round trip.
type Writer struct {
	classified store.ClassifiedStore
	seen       *lru.Cache[string, struct{}]
	logger     *zap.Logger
}

func NewWriter(classified store.ClassifiedStore, cacheSize int, logger *zap.Logger) (*Writer, error) {
	if cacheSize <= 0 {
		cacheSize = 100_000
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	seen, err := lru.New[string, struct{}](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Writer{classified: classified, seen: seen, logger: logger}, nil
}

// Write persists one result. Duplicate writes are no-ops.
func (w *Writer) Write(ctx context.Context, rec waf.AuditRecord, cls waf.Classification) error {
	key := rec.ID + "|" + cls.ModelVersion
	if _, ok := w.seen.Get(key); ok {
		return nil
	}

	inserted, err := w.classified.WriteClassified(ctx, rec, cls)
	if err != nil {
		return err
	}
	if !inserted {
		w.logger.Debug("duplicate classification skipped", zap.String("record_id", rec.ID))
	}

	w.seen.Add(key, struct{}{})
	return nil
}
