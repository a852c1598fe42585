package store

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/maroof-I/modlek/internal/waf"
)

// Memory implements all three store interfaces in process. It backs tests and
// local dry runs; failure counters let tests simulate outages and crash
// points between the classified write and the cursor save.
type Memory struct {
	mu         sync.Mutex
	buckets    map[Bucket][]waf.AuditRecord
	classified map[string]classifiedEntry
	cursor     Cursor

	FailFetches int
	FailWrites  int
	FailCursor  int
}

type classifiedEntry struct {
	rec waf.AuditRecord
	cls waf.Classification
}

func NewMemory() *Memory {
	return &Memory{
		buckets:    make(map[Bucket][]waf.AuditRecord),
		classified: make(map[string]classifiedEntry),
	}
}

func (m *Memory) Add(rec waf.AuditRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := BucketAt(rec.Timestamp)
	m.buckets[b] = append(m.buckets[b], rec)
	sort.Slice(m.buckets[b], func(i, j int) bool {
		return m.buckets[b][i].ID < m.buckets[b][j].ID
	})
}

func (m *Memory) FetchBucket(_ context.Context, b Bucket, afterID string, limit int) ([]waf.AuditRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailFetches > 0 {
		m.FailFetches--
		return nil, &TransientError{Op: "fetch " + string(b), Err: errors.New("injected fetch failure")}
	}

	var out []waf.AuditRecord
	for _, rec := range m.buckets[b] {
		if rec.ID <= afterID {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) WriteClassified(_ context.Context, rec waf.AuditRecord, cls waf.Classification) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWrites > 0 {
		m.FailWrites--
		return false, &TransientError{Op: "write classified", Err: errors.New("injected write failure")}
	}

	key := rec.ID + "|" + cls.ModelVersion
	if _, exists := m.classified[key]; exists {
		return false, nil
	}
	m.classified[key] = classifiedEntry{rec: rec, cls: cls}
	return true, nil
}

func (m *Memory) ScanClassified(_ context.Context, buckets []Bucket, fn func(waf.AuditRecord, waf.Classification) error) error {
	m.mu.Lock()
	want := make(map[Bucket]bool, len(buckets))
	for _, b := range buckets {
		want[b] = true
	}
	entries := make([]classifiedEntry, 0, len(m.classified))
	for _, e := range m.classified {
		if want[BucketAt(e.rec.Timestamp)] {
			entries = append(entries, e)
		}
	}
	m.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].rec.ID < entries[j].rec.ID })
	for _, e := range entries {
		if err := fn(e.rec, e.cls); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) LoadCursor(_ context.Context) (Cursor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursor, nil
}

func (m *Memory) SaveCursor(_ context.Context, c Cursor) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailCursor > 0 {
		m.FailCursor--
		return &TransientError{Op: "save cursor", Err: errors.New("injected cursor failure")}
	}
	m.cursor = c
	return nil
}

// ClassifiedCount reports how many distinct (record, model version) results
// are stored.
func (m *Memory) ClassifiedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.classified)
}

// Classification returns the stored result for a record id, if any.
func (m *Memory) Classification(recordID, modelVersion string) (waf.Classification, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.classified[recordID+"|"+modelVersion]
	if !ok {
		return waf.Classification{}, false
	}
	return e.cls, true
}
