package store

import (
	"fmt"
	"time"
)

// Bucket identifies one hourly partition, formatted 2006_01_02_15 in UTC.
// Collections are named unclassified_<bucket> and classified_<bucket>,
// mirroring the index pattern the inspection layer ships into.
type Bucket string

const bucketLayout = "2006_01_02_15"

func BucketAt(t time.Time) Bucket {
	return Bucket(t.UTC().Format(bucketLayout))
}

func (b Bucket) Time() (time.Time, error) {
	t, err := time.Parse(bucketLayout, string(b))
	if err != nil {
		return time.Time{}, fmt.Errorf("bad bucket %q: %w", string(b), err)
	}
	return t, nil
}

func (b Bucket) Next() (Bucket, error) {
	t, err := b.Time()
	if err != nil {
		return "", err
	}
	return BucketAt(t.Add(time.Hour)), nil
}

// BucketsBetween lists the buckets covering [from, to], inclusive on both
// ends, oldest first.
func BucketsBetween(from, to time.Time) []Bucket {
	if to.Before(from) {
		return nil
	}
	var out []Bucket
	cur := from.UTC().Truncate(time.Hour)
	end := to.UTC().Truncate(time.Hour)
	for !cur.After(end) {
		out = append(out, BucketAt(cur))
		cur = cur.Add(time.Hour)
	}
	return out
}

func (b Bucket) UnclassifiedTable() string {
	return "unclassified_" + string(b)
}

func (b Bucket) ClassifiedTable() string {
	return "classified_" + string(b)
}
