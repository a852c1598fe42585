package hardening

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ConfWriter renders the promoted rules into a configuration file consumed by
// the inspection layer on its own reload cadence. Promoted copies get a
// 999-prefixed id so they never collide with the stock rule set.
type ConfWriter struct {
	path string
}

func NewConfWriter(path string) *ConfWriter {
	return &ConfWriter{path: path}
}

func (w *ConfWriter) Render(catalog *Catalog, activeIDs []string) error {
	var b strings.Builder
	b.WriteString("# Managed by modlek. Do not edit: regenerated every hardening cycle.\n")
	b.WriteString(fmt.Sprintf("# Rendered at %s, %d active rule(s).\n\n", time.Now().UTC().Format(time.RFC3339), len(activeIDs)))

	for _, id := range activeIDs {
		rule, ok := catalog.Rule(id)
		if !ok {
			return fmt.Errorf("active rule %s missing from catalog", id)
		}
		b.WriteString(rewriteRuleID(rule.Raw, id))
		b.WriteString("\n\n")
	}

	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".rules-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(b.String()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, w.path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

// CustomRuleID maps a stock rule id onto the reserved custom range.
func CustomRuleID(id string) string {
	if strings.HasPrefix(id, "999") {
		return id
	}
	return "999" + id
}

func rewriteRuleID(raw, id string) string {
	return strings.Replace(raw, "id:"+id, "id:"+CustomRuleID(id), 1)
}
