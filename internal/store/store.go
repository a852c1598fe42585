package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/maroof-I/modlek/internal/waf"
)

// TransientError marks store failures worth retrying: the data is intact, the
// store was just unreachable or timed out.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

func IsTransient(err error) bool {
	var terr *TransientError
	return errors.As(err, &terr)
}

// Cursor is the fetch high-water mark: everything up to and including LastID
// in Bucket has been durably classified. Advanced only after the matching
// classified write committed.
type Cursor struct {
	Bucket Bucket `json:"bucket"`
	LastID string `json:"last_id"`
}

func (c Cursor) Zero() bool {
	return c.Bucket == "" && c.LastID == ""
}

// AuditSource reads unclassified records out of time buckets.
type AuditSource interface {
	// FetchBucket returns up to limit records from bucket b with id > afterID,
	// ordered by id. A missing bucket table is an empty bucket, not an error.
	FetchBucket(ctx context.Context, b Bucket, afterID string, limit int) ([]waf.AuditRecord, error)
}

// ClassifiedStore persists and scans classification results alongside their
// source records.
type ClassifiedStore interface {
	// WriteClassified upserts one result. Returns false when the
	// (record id, model version) pair was already present; the second write is
	// a no-op either way.
	WriteClassified(ctx context.Context, rec waf.AuditRecord, cls waf.Classification) (bool, error)

	// ScanClassified streams every classified record in the given buckets.
	ScanClassified(ctx context.Context, buckets []Bucket, fn func(waf.AuditRecord, waf.Classification) error) error
}

// CursorStore persists the fetch cursor across restarts.
type CursorStore interface {
	LoadCursor(ctx context.Context) (Cursor, error)
	SaveCursor(ctx context.Context, c Cursor) error
}
