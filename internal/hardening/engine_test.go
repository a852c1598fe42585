package hardening

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maroof-I/modlek/internal/trend"
)

func testThresholds() Thresholds {
	return Thresholds{MinSamples: 20, Promote: 0.9, Demote: 0.8, ConfirmCycles: 2}
}

func stat(id string, pl, triggers, malicious int) trend.RuleStat {
	s := trend.RuleStat{
		RuleID:         id,
		ParanoiaLevel:  pl,
		TriggerCount:   triggers,
		MaliciousCount: malicious,
		BenignCount:    triggers - malicious,
	}
	if triggers > 0 {
		p := float64(malicious) / float64(triggers)
		s.Precision = &p
	}
	return s
}

func testEngine(t *testing.T, states StateStore) *Engine {
	t.Helper()
	cat, err := LoadCatalog([]string{writeConf(t)})
	require.NoError(t, err)

	conf := NewConfWriter(filepath.Join(t.TempDir(), "custom_rules.conf"))
	e, err := NewEngine(states, cat, conf, testThresholds(), nil)
	require.NoError(t, err)
	return e
}

func TestPromotionNeedsTwoConsecutiveWindows(t *testing.T) {
	states := NewStateFile(filepath.Join(t.TempDir(), "ruleset.yaml"))
	e := testEngine(t, states)

	// Scenario from the original deployment: rule 942110-like evidence with
	// 50 triggers, 48 malicious, precision 0.96.
	good := []trend.RuleStat{stat("942480", 3, 50, 48)}

	trs, err := e.Cycle(context.Background(), good)
	require.NoError(t, err)
	require.Len(t, trs, 1)
	require.Equal(t, StateInactive, trs[0].From)
	require.Equal(t, StateCandidate, trs[0].To)

	s, err := states.Load()
	require.NoError(t, err)
	require.Equal(t, StateCandidate, s.Status("942480").State)
	require.Empty(t, s.ActiveIDs(), "one good window must not activate a rule")

	trs, err = e.Cycle(context.Background(), good)
	require.NoError(t, err)
	require.Len(t, trs, 1)
	require.Equal(t, StateCandidate, trs[0].From)
	require.Equal(t, StateActive, trs[0].To)

	s, err = states.Load()
	require.NoError(t, err)
	require.Equal(t, []string{"942480"}, s.ActiveIDs())
}

func TestCandidateResetsOnNoisyWindow(t *testing.T) {
	states := NewStateFile(filepath.Join(t.TempDir(), "ruleset.yaml"))
	e := testEngine(t, states)

	good := []trend.RuleStat{stat("942480", 3, 50, 48)}
	noisy := []trend.RuleStat{stat("942480", 3, 50, 30)}

	_, err := e.Cycle(context.Background(), good)
	require.NoError(t, err)

	trs, err := e.Cycle(context.Background(), noisy)
	require.NoError(t, err)
	require.Len(t, trs, 1)
	require.Equal(t, StateInactive, trs[0].To)

	// A later good window starts the confirmation from scratch.
	trs, err = e.Cycle(context.Background(), good)
	require.NoError(t, err)
	require.Equal(t, StateCandidate, trs[0].To)
}

func TestDemotionHysteresis(t *testing.T) {
	states := NewStateFile(filepath.Join(t.TempDir(), "ruleset.yaml"))
	e := testEngine(t, states)

	good := []trend.RuleStat{stat("942480", 3, 50, 48)}
	middling := []trend.RuleStat{stat("942480", 3, 50, 42)} // 0.84: below promote, above demote
	bad := []trend.RuleStat{stat("942480", 3, 50, 35)}      // 0.70: below demote

	for i := 0; i < 2; i++ {
		_, err := e.Cycle(context.Background(), good)
		require.NoError(t, err)
	}

	// Hysteresis: active survives precision between the two thresholds.
	trs, err := e.Cycle(context.Background(), middling)
	require.NoError(t, err)
	require.Empty(t, trs)

	trs, err = e.Cycle(context.Background(), bad)
	require.NoError(t, err)
	require.Len(t, trs, 1)
	require.Equal(t, StateDemoted, trs[0].To)

	// Demoted needs two confirming windows before candidate again.
	trs, err = e.Cycle(context.Background(), good)
	require.NoError(t, err)
	require.Empty(t, trs)

	trs, err = e.Cycle(context.Background(), good)
	require.NoError(t, err)
	require.Len(t, trs, 1)
	require.Equal(t, StateCandidate, trs[0].To)
}

func TestConfirmationStreakSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ruleset.yaml")
	good := []trend.RuleStat{stat("942480", 3, 50, 48)}
	bad := []trend.RuleStat{stat("942480", 3, 50, 35)}

	e := testEngine(t, NewStateFile(path))
	for _, window := range [][]trend.RuleStat{good, good, bad} {
		_, err := e.Cycle(context.Background(), window)
		require.NoError(t, err)
	}

	// First confirming window after demotion changes only the streak. That
	// still has to reach disk, or a restart would forget the confirmation.
	_, err := e.Cycle(context.Background(), good)
	require.NoError(t, err)

	s, err := NewStateFile(path).Load()
	require.NoError(t, err)
	require.Equal(t, StateDemoted, s.Status("942480").State)
	require.Equal(t, 1, s.Status("942480").Streak)

	fresh := testEngine(t, NewStateFile(path))
	trs, err := fresh.Cycle(context.Background(), good)
	require.NoError(t, err)
	require.Len(t, trs, 1)
	require.Equal(t, StateCandidate, trs[0].To)
}

func TestAbsentWindowBreaksConfirmationStreak(t *testing.T) {
	states := NewStateFile(filepath.Join(t.TempDir(), "ruleset.yaml"))
	e := testEngine(t, states)

	good := []trend.RuleStat{stat("942480", 3, 50, 48)}

	_, err := e.Cycle(context.Background(), good)
	require.NoError(t, err)

	// The rule triggers nothing in the next window. Consecutive means
	// consecutive: the gap restarts the confirmation.
	trs, err := e.Cycle(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, trs)

	trs, err = e.Cycle(context.Background(), good)
	require.NoError(t, err)
	require.Empty(t, trs)

	trs, err = e.Cycle(context.Background(), good)
	require.NoError(t, err)
	require.Len(t, trs, 1)
	require.Equal(t, StateActive, trs[0].To)
}

func TestNoDataMeansNoChange(t *testing.T) {
	states := NewStateFile(filepath.Join(t.TempDir(), "ruleset.yaml"))
	e := testEngine(t, states)

	good := []trend.RuleStat{stat("942480", 3, 50, 48)}
	for i := 0; i < 2; i++ {
		_, err := e.Cycle(context.Background(), good)
		require.NoError(t, err)
	}

	// Zero triggers yields nil precision: never treated as precision zero.
	zero := stat("942480", 3, 0, 0)
	require.Nil(t, zero.Precision)
	trs, err := e.Cycle(context.Background(), []trend.RuleStat{zero})
	require.NoError(t, err)
	require.Empty(t, trs)
}

func TestLowParanoiaAndUnknownRulesIgnored(t *testing.T) {
	states := NewStateFile(filepath.Join(t.TempDir(), "ruleset.yaml"))
	e := testEngine(t, states)

	stats := []trend.RuleStat{
		stat("942100", 1, 500, 499), // PL1: already enforced
		stat("123456", 3, 500, 499), // not in catalog
	}
	trs, err := e.Cycle(context.Background(), stats)
	require.NoError(t, err)
	require.Empty(t, trs)
}

type flakyStates struct {
	inner    StateStore
	failSave bool
}

func (f *flakyStates) Load() (*RuleSetState, error) { return f.inner.Load() }

func (f *flakyStates) Save(next *RuleSetState, expect int) error {
	if f.failSave {
		return errors.New("disk full")
	}
	return f.inner.Save(next, expect)
}

func TestCycleAllOrNothingOnPersistFailure(t *testing.T) {
	file := NewStateFile(filepath.Join(t.TempDir(), "ruleset.yaml"))
	flaky := &flakyStates{inner: file, failSave: true}
	e := testEngine(t, flaky)

	stats := []trend.RuleStat{
		stat("942480", 3, 50, 48),
		stat("942490", 4, 40, 39),
	}

	trs, err := e.Cycle(context.Background(), stats)
	require.Error(t, err)
	require.Empty(t, trs)

	s, lerr := file.Load()
	require.NoError(t, lerr)
	for id, st := range s.Rules {
		require.Equal(t, StateInactive, st.State, "rule %s changed despite failed persist", id)
	}
	require.Equal(t, 0, s.Version)
}

func TestCycleAbortsOnVersionConflict(t *testing.T) {
	file := NewStateFile(filepath.Join(t.TempDir(), "ruleset.yaml"))
	e := testEngine(t, file)

	// Another writer bumps the state between load and save.
	conflicting := &racingStates{inner: file}
	e.states = conflicting

	trs, err := e.Cycle(context.Background(), []trend.RuleStat{stat("942480", 3, 50, 48)})
	require.Empty(t, trs)

	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict), "want ConflictError, got %v", err)
}

type racingStates struct {
	inner *StateFile
}

func (r *racingStates) Load() (*RuleSetState, error) { return r.inner.Load() }

func (r *racingStates) Save(next *RuleSetState, expect int) error {
	// Sneak in a concurrent mutation before the engine's save.
	current, err := r.inner.Load()
	if err != nil {
		return err
	}
	if err := r.inner.Save(current, current.Version); err != nil {
		return err
	}
	return r.inner.Save(next, expect)
}
