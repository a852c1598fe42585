package runlog

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestWriteJSONL(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)

	started := time.Date(2025, 6, 19, 4, 0, 0, 0, time.UTC)
	err := l.Write(Record{
		RunID:      "run-1",
		Kind:       KindClassify,
		Status:     StatusOK,
		Started:    started,
		Finished:   started.Add(3 * time.Second),
		Fetched:    10,
		Classified: 9,
		Skipped:    1,
	})
	if err != nil {
		t.Fatal(err)
	}

	line := strings.TrimSpace(buf.String())
	var rec Record
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		t.Fatalf("not valid JSON: %v", err)
	}
	if rec.DurationMS != 3000 {
		t.Fatalf("duration = %d, want derived 3000", rec.DurationMS)
	}
	if rec.Kind != KindClassify || rec.Classified != 9 {
		t.Fatalf("round trip mismatch: %+v", rec)
	}
}

func TestWriteTwoLines(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)
	_ = l.Write(Record{RunID: "a", Kind: KindClassify, Status: StatusOK})
	_ = l.Write(Record{RunID: "b", Kind: KindHarden, Status: StatusAborted, Error: "conflict"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("want 2 lines, got %d", len(lines))
	}
}
