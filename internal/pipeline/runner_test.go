package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/maroof-I/modlek/internal/feature"
	"github.com/maroof-I/modlek/internal/model"
	"github.com/maroof-I/modlek/internal/store"
	"github.com/maroof-I/modlek/internal/waf"
)

var testNow = time.Date(2025, 6, 19, 4, 30, 0, 0, time.UTC)

func testClassifier(t *testing.T) *model.Classifier {
	t.Helper()
	schema := feature.DefaultSchema()

	var b strings.Builder
	b.WriteString("modelVersion: rf-test\n")
	b.WriteString("schemaVersion: " + schema.Version + "\n")
	b.WriteString("threshold: 0.5\n")
	b.WriteString("intercept: -2.0\n")
	b.WriteString("features:\n")
	for _, name := range schema.Names {
		b.WriteString("  - " + name + "\n")
	}
	b.WriteString("weights:\n")
	for _, name := range schema.Names {
		w := 0.0
		if name == "total_anomaly_score" {
			w = 1.0
		}
		b.WriteString("  - " + strconv.FormatFloat(w, 'f', -1, 64) + "\n")
	}

	path := filepath.Join(t.TempDir(), "model.yaml")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))

	c, err := model.NewClassifier(path, schema, 0, nil)
	require.NoError(t, err)
	return c
}

func testRunner(t *testing.T, mem *store.Memory) *Runner {
	t.Helper()
	w, err := NewWriter(mem, 16, nil)
	require.NoError(t, err)

	return &Runner{
		Fetcher:    NewFetcher(mem, mem, 2, nil),
		Extractor:  feature.NewExtractor(),
		Classifier: testClassifier(t),
		Writer:     w,
		Workers:    4,
		Backoff:    Backoff{Base: time.Millisecond, Attempts: 3},
		Clock:      func() time.Time { return testNow },
	}
}

func auditRecord(id string, score int, rules ...string) waf.AuditRecord {
	rec := waf.AuditRecord{
		ID:                id,
		Timestamp:         testNow.Add(-10 * time.Minute),
		Method:            "GET",
		Path:              "/",
		TotalAnomalyScore: score,
	}
	for _, r := range rules {
		rec.TriggeredRules = append(rec.TriggeredRules, waf.TriggeredRule{ID: r, ParanoiaLevel: 1, AnomalyScore: 5})
	}
	return rec
}

func TestRunClassifiesAndAdvances(t *testing.T) {
	mem := store.NewMemory()
	mem.Add(auditRecord("tx-001", 15, "942100", "930100"))
	mem.Add(auditRecord("tx-002", 0))
	mem.Add(auditRecord("tx-003", 20, "942480"))

	r := testRunner(t, mem)
	stats, err := r.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 3, stats.Fetched)
	require.Equal(t, 3, stats.Classified)
	require.Equal(t, 2, stats.Malicious)
	require.Equal(t, 0, stats.Skipped)

	cls, ok := mem.Classification("tx-001", "rf-test")
	require.True(t, ok)
	require.Equal(t, waf.LabelMalicious, cls.Label)
	require.Greater(t, cls.Confidence, 0.9)
	require.Equal(t, "rf-test", cls.ModelVersion)
	require.Equal(t, testNow, cls.ClassifiedAt, "timestamps come from the injected clock")

	cur, err := mem.LoadCursor(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tx-003", cur.LastID)
}

func TestRunIdempotentAcrossReprocessing(t *testing.T) {
	mem := store.NewMemory()
	mem.Add(auditRecord("tx-001", 15, "942100"))
	mem.Add(auditRecord("tx-002", 3))

	r := testRunner(t, mem)
	_, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, mem.ClassifiedCount())

	// Force a full reprocess of the bucket: same records, same model version.
	require.NoError(t, mem.SaveCursor(context.Background(), store.Cursor{Bucket: store.BucketAt(testNow)}))

	r2 := testRunner(t, mem)
	stats, err := r2.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, stats.Fetched)
	require.Equal(t, 2, mem.ClassifiedCount(), "reprocessing must not duplicate results")
}

func TestCursorCrashAfterWriteBeforeAdvance(t *testing.T) {
	mem := store.NewMemory()
	mem.Add(auditRecord("tx-001", 15, "942100"))
	mem.Add(auditRecord("tx-002", 3))

	r := testRunner(t, mem)
	r.Backoff = Backoff{Base: time.Millisecond, Attempts: 1}
	mem.FailCursor = 1 // crash point: write committed, cursor persist fails

	_, err := r.Run(context.Background())
	require.Error(t, err)

	// The write for tx-001 is durable, the cursor is not.
	require.Equal(t, 1, mem.ClassifiedCount())
	cur, cerr := mem.LoadCursor(context.Background())
	require.NoError(t, cerr)
	require.Equal(t, "", cur.LastID)

	// Restart: tx-001 is re-delivered, but the idempotent write keeps one
	// result, and tx-002 is not skipped.
	r2 := testRunner(t, mem)
	stats, err := r2.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, stats.Fetched)
	require.Equal(t, 2, mem.ClassifiedCount())

	cur, cerr = mem.LoadCursor(context.Background())
	require.NoError(t, cerr)
	require.Equal(t, "tx-002", cur.LastID)
}

func TestFetchFailureCeilingAbortsRun(t *testing.T) {
	mem := store.NewMemory()
	mem.Add(auditRecord("tx-001", 15, "942100"))
	mem.FailFetches = 3

	r := testRunner(t, mem)
	r.Backoff = Backoff{Base: time.Millisecond, Attempts: 3}

	_, err := r.Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "after 3 attempts")

	cur, cerr := mem.LoadCursor(context.Background())
	require.NoError(t, cerr)
	require.True(t, cur.Zero(), "cursor must be untouched after an aborted run")
	require.Equal(t, 0, mem.ClassifiedCount())
}

func TestFetchRecoversWithinCeiling(t *testing.T) {
	mem := store.NewMemory()
	mem.Add(auditRecord("tx-001", 15, "942100"))
	mem.FailFetches = 2

	r := testRunner(t, mem)
	stats, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, stats.Classified)
}

func TestRunCancelledBetweenRecords(t *testing.T) {
	mem := store.NewMemory()
	mem.Add(auditRecord("tx-001", 15, "942100"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := testRunner(t, mem)
	_, err := r.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 0, mem.ClassifiedCount())
}
