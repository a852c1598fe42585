package hardening

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStateFileLoadFresh(t *testing.T) {
	f := NewStateFile(filepath.Join(t.TempDir(), "ruleset.yaml"))

	s, err := f.Load()
	require.NoError(t, err)
	require.Equal(t, 0, s.Version)
	require.Empty(t, s.Rules)
}

func TestStateFileRoundTrip(t *testing.T) {
	f := NewStateFile(filepath.Join(t.TempDir(), "ruleset.yaml"))

	s := NewRuleSetState()
	s.Status("942480").State = StateActive
	s.Status("942490").State = StateCandidate
	s.Status("942490").Streak = 1

	require.NoError(t, f.Save(s, 0))

	loaded, err := f.Load()
	require.NoError(t, err)
	require.Equal(t, 1, loaded.Version)
	require.Equal(t, StateActive, loaded.Status("942480").State)
	require.Equal(t, 1, loaded.Status("942490").Streak)
	require.Equal(t, []string{"942480"}, loaded.ActiveIDs())
}

func TestStateFileVersionConflict(t *testing.T) {
	f := NewStateFile(filepath.Join(t.TempDir(), "ruleset.yaml"))

	require.NoError(t, f.Save(NewRuleSetState(), 0)) // disk now at version 1

	stale := NewRuleSetState()
	err := f.Save(stale, 0)

	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict), "want ConflictError, got %v", err)
	require.Equal(t, 0, conflict.Expected)
	require.Equal(t, 1, conflict.Found)
}

func TestCloneIsDeep(t *testing.T) {
	s := NewRuleSetState()
	s.Status("942480").State = StateCandidate

	c := s.Clone()
	c.Status("942480").State = StateActive

	require.Equal(t, StateCandidate, s.Status("942480").State)
}
