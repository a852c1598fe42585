package hardening

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ConflictError reports a concurrent ruleset mutation: the state on disk is
// not the version the cycle started from.
type ConflictError struct {
	Expected int
	Found    int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("ruleset version conflict: cycle started at %d, disk has %d", e.Expected, e.Found)
}

// StateStore abstracts ruleset state persistence so the engine can be tested
// against injected persistence failures.
type StateStore interface {
	Load() (*RuleSetState, error)
	// Save persists next only when the durable version still equals
	// expectVersion, then bumps the version. Returns ConflictError otherwise.
	Save(next *RuleSetState, expectVersion int) error
}

// StateFile keeps RuleSetState in a YAML file, written atomically via a
// temp file and rename.
type StateFile struct {
	path string
}

func NewStateFile(path string) *StateFile {
	return &StateFile{path: path}
}

func (f *StateFile) Load() (*RuleSetState, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewRuleSetState(), nil
		}
		return nil, fmt.Errorf("read ruleset state: %w", err)
	}

	var s RuleSetState
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse ruleset state: %w", err)
	}
	if s.Rules == nil {
		s.Rules = make(map[string]*RuleStatus)
	}
	return &s, nil
}

func (f *StateFile) Save(next *RuleSetState, expectVersion int) error {
	current, err := f.Load()
	if err != nil {
		return err
	}
	if current.Version != expectVersion {
		return &ConflictError{Expected: expectVersion, Found: current.Version}
	}

	next.Version = expectVersion + 1
	next.UpdatedAt = time.Now().UTC()

	data, err := yaml.Marshal(next)
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".ruleset-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
