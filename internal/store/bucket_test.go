package store

import (
	"testing"
	"time"
)

func TestBucketAt(t *testing.T) {
	ts := time.Date(2025, 6, 19, 4, 59, 30, 0, time.UTC)
	if got := BucketAt(ts); got != Bucket("2025_06_19_04") {
		t.Fatalf("BucketAt = %q", got)
	}

	// Non-UTC inputs normalize to UTC buckets.
	loc := time.FixedZone("plus2", 2*3600)
	if got := BucketAt(time.Date(2025, 6, 19, 6, 0, 0, 0, loc)); got != Bucket("2025_06_19_04") {
		t.Fatalf("BucketAt tz = %q", got)
	}
}

func TestBucketNext(t *testing.T) {
	next, err := Bucket("2025_06_19_23").Next()
	if err != nil {
		t.Fatal(err)
	}
	if next != Bucket("2025_06_20_00") {
		t.Fatalf("Next = %q", next)
	}

	if _, err := Bucket("garbage").Next(); err == nil {
		t.Fatal("expected error for malformed bucket")
	}
}

func TestBucketsBetween(t *testing.T) {
	from := time.Date(2025, 6, 19, 3, 10, 0, 0, time.UTC)
	to := time.Date(2025, 6, 19, 5, 0, 0, 0, time.UTC)

	got := BucketsBetween(from, to)
	want := []Bucket{"2025_06_19_03", "2025_06_19_04", "2025_06_19_05"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("bucket %d = %q, want %q", i, got[i], want[i])
		}
	}

	if BucketsBetween(to, from) != nil {
		t.Fatal("reversed range must be empty")
	}
}

func TestBucketTableNames(t *testing.T) {
	b := Bucket("2025_06_19_04")
	if b.UnclassifiedTable() != "unclassified_2025_06_19_04" {
		t.Fatal(b.UnclassifiedTable())
	}
	if b.ClassifiedTable() != "classified_2025_06_19_04" {
		t.Fatal(b.ClassifiedTable())
	}
}
