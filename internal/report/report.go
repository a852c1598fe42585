package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/maroof-I/modlek/internal/runlog"
)

type Summary struct {
	Runs            int         `json:"runs"`
	OK              int         `json:"ok"`
	Aborted         int         `json:"aborted"`
	HardeningCycles int         `json:"hardening_cycles"`
	Records         int         `json:"records"`
	Malicious       int         `json:"malicious"`
	Skipped         int         `json:"skipped"`
	Transitions     int         `json:"transitions"`
	AttackPercent   float64     `json:"attack_percent"`
	Start           time.Time   `json:"start"`
	End             time.Time   `json:"end"`
	TopErrors       []CountItem `json:"top_errors"`
}

type CountItem struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

type Reader struct {
	Since time.Time
}

func (r *Reader) Read(path string) ([]runlog.Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	var records []runlog.Record
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec runlog.Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, err
		}
		if !r.Since.IsZero() && rec.Started.Before(r.Since) {
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func Summarize(records []runlog.Record) Summary {
	var summary Summary
	if len(records) == 0 {
		return summary
	}

	summary.Start = records[0].Started
	summary.End = records[0].Finished
	errorCounts := map[string]int{}

	for _, rec := range records {
		summary.Runs++
		if rec.Started.Before(summary.Start) {
			summary.Start = rec.Started
		}
		if rec.Finished.After(summary.End) {
			summary.End = rec.Finished
		}

		switch rec.Status {
		case runlog.StatusOK:
			summary.OK++
		case runlog.StatusAborted:
			summary.Aborted++
		}
		if rec.Kind == runlog.KindHarden {
			summary.HardeningCycles++
		}

		summary.Records += rec.Classified
		summary.Malicious += rec.Malicious
		summary.Skipped += rec.Skipped
		summary.Transitions += len(rec.Transitions)

		if rec.Error != "" {
			errorCounts[rec.Error]++
		}
	}

	if summary.Records > 0 {
		summary.AttackPercent = 100 * float64(summary.Malicious) / float64(summary.Records)
	}
	summary.TopErrors = topCounts(errorCounts, 5)
	return summary
}

func topCounts(counts map[string]int, n int) []CountItem {
	items := make([]CountItem, 0, len(counts))
	for key, count := range counts {
		items = append(items, CountItem{Key: key, Count: count})
	}
	if len(items) == 0 {
		return nil
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Count == items[j].Count {
			return items[i].Key < items[j].Key
		}
		return items[i].Count > items[j].Count
	})

	if len(items) > n {
		items = items[:n]
	}
	return items
}

func RenderText(summary Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Runs: %d (ok %d, aborted %d, hardening %d)\n",
		summary.Runs, summary.OK, summary.Aborted, summary.HardeningCycles)
	fmt.Fprintf(&b, "Records classified: %d\n", summary.Records)
	fmt.Fprintf(&b, "Malicious: %d (%.2f%%)\n", summary.Malicious, summary.AttackPercent)
	fmt.Fprintf(&b, "Skipped: %d\n", summary.Skipped)
	fmt.Fprintf(&b, "Rule transitions: %d\n", summary.Transitions)

	writeCounts(&b, "Top errors", summary.TopErrors)
	return b.String()
}

func RenderMarkdown(summary Summary) string {
	var b strings.Builder
	b.WriteString("# Run report\n\n")
	fmt.Fprintf(&b, "- Runs: **%d** (ok %d, aborted %d, hardening %d)\n",
		summary.Runs, summary.OK, summary.Aborted, summary.HardeningCycles)
	fmt.Fprintf(&b, "- Records classified: **%d**\n", summary.Records)
	fmt.Fprintf(&b, "- Malicious: **%d** (%.2f%%)\n", summary.Malicious, summary.AttackPercent)
	fmt.Fprintf(&b, "- Skipped: %d\n", summary.Skipped)
	fmt.Fprintf(&b, "- Rule transitions: %d\n", summary.Transitions)

	if len(summary.TopErrors) > 0 {
		b.WriteString("\n## Top errors\n\n")
		for _, item := range summary.TopErrors {
			fmt.Fprintf(&b, "- %s: %d\n", item.Key, item.Count)
		}
	}
	return b.String()
}

func RenderJSON(summary Summary) ([]byte, error) {
	return json.MarshalIndent(summary, "", "  ")
}

func writeCounts(b *strings.Builder, title string, items []CountItem) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "  %s: %d\n", item.Key, item.Count)
	}
}

func WriteOutput(path string, data []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
