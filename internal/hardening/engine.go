package hardening

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/maroof-I/modlek/internal/trend"
)

// Thresholds are the promotion policy knobs. All externally supplied; the
// zero value is not usable.
type Thresholds struct {
	MinSamples    int
	Promote       float64
	Demote        float64
	ConfirmCycles int
}

func (t Thresholds) Validate() error {
	if t.MinSamples <= 0 {
		return fmt.Errorf("minSamples must be > 0")
	}
	if t.Promote <= 0 || t.Promote > 1 {
		return fmt.Errorf("promote threshold %v out of (0,1]", t.Promote)
	}
	if t.Demote <= 0 || t.Demote >= t.Promote {
		return fmt.Errorf("demote threshold %v must be in (0, promote)", t.Demote)
	}
	if t.ConfirmCycles < 1 {
		return fmt.Errorf("confirmCycles must be >= 1")
	}
	return nil
}

// Transition is one signed state change with the evidence that caused it.
type Transition struct {
	RuleID string         `json:"rule_id"`
	From   RuleState      `json:"from"`
	To     RuleState      `json:"to"`
	Stat   trend.RuleStat `json:"stat"`
	At     time.Time      `json:"at"`
}

func (t Transition) String() string {
	return fmt.Sprintf("%s: %s -> %s", t.RuleID, t.From, t.To)
}

// Engine applies the promotion policy over aggregated statistics and mutates
// RuleSetState through an atomic compare-and-write. A cycle is all-or-nothing:
// either every transition lands in the persisted state, or none do.
type Engine struct {
	states  StateStore
	catalog *Catalog
	conf    *ConfWriter
	th      Thresholds
	clock   func() time.Time
	logger  *zap.Logger
}

func NewEngine(states StateStore, catalog *Catalog, conf *ConfWriter, th Thresholds, logger *zap.Logger) (*Engine, error) {
	if err := th.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		states:  states,
		catalog: catalog,
		conf:    conf,
		th:      th,
		clock:   time.Now,
		logger:  logger,
	}, nil
}

// Cycle runs one hardening evaluation over the window's stats. Once the
// compare-and-write begins the cycle is not cancellable; ctx only gates the
// start.
func (e *Engine) Cycle(ctx context.Context, stats []trend.RuleStat) ([]Transition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	state, err := e.states.Load()
	if err != nil {
		return nil, err
	}
	baseVersion := state.Version

	next := state.Clone()
	transitions, dirty := e.evaluate(next, stats)
	if !dirty {
		e.logger.Debug("hardening cycle: no changes")
		return nil, nil
	}

	// Streak bumps without a state change still have to land, or a demoted
	// rule confirming over several windows would restart from zero each cycle.
	if err := e.states.Save(next, baseVersion); err != nil {
		// The clone is discarded; the durable state is untouched.
		return nil, fmt.Errorf("persist ruleset state: %w", err)
	}

	if len(transitions) == 0 {
		return nil, nil
	}

	if e.conf != nil {
		if err := e.conf.Render(e.catalog, next.ActiveIDs()); err != nil {
			// State is committed; the conf file lags until the next cycle
			// re-renders it. Surfaced as fatal so the cycle alerts.
			return transitions, fmt.Errorf("render rules conf: %w", err)
		}
	}

	for _, tr := range transitions {
		e.logger.Info("rule transition",
			zap.String("rule_id", tr.RuleID),
			zap.String("from", string(tr.From)),
			zap.String("to", string(tr.To)),
			zap.Int("trigger_count", tr.Stat.TriggerCount))
	}
	return transitions, nil
}

func (e *Engine) evaluate(state *RuleSetState, stats []trend.RuleStat) ([]Transition, bool) {
	now := e.clock().UTC()
	var transitions []Transition
	dirty := false

	move := func(id string, st *RuleStatus, to RuleState, stat trend.RuleStat) {
		transitions = append(transitions, Transition{
			RuleID: id, From: st.State, To: to, Stat: stat, At: now,
		})
		st.State = to
		st.UpdatedAt = now
		dirty = true
	}
	setStreak := func(st *RuleStatus, v int) {
		if st.Streak != v {
			st.Streak = v
			dirty = true
		}
	}

	seen := make(map[string]struct{}, len(stats))
	for _, stat := range stats {
		if stat.ParanoiaLevel < 3 || !e.catalog.Has(stat.RuleID) {
			continue
		}
		seen[stat.RuleID] = struct{}{}

		st := state.Status(stat.RuleID)
		promote := e.promotes(stat)
		demote := stat.Precision != nil && *stat.Precision < e.th.Demote

		switch st.State {
		case StateInactive:
			if promote {
				setStreak(st, 1)
				move(stat.RuleID, st, StateCandidate, stat)
			} else {
				setStreak(st, 0)
			}

		case StateCandidate:
			if promote {
				setStreak(st, st.Streak+1)
				if st.Streak >= e.th.ConfirmCycles {
					move(stat.RuleID, st, StateActive, stat)
				}
			} else {
				// One noisy window must not flip a rule; one failing window
				// does reset the confirmation.
				setStreak(st, 0)
				move(stat.RuleID, st, StateInactive, stat)
			}

		case StateActive:
			if demote {
				setStreak(st, 0)
				move(stat.RuleID, st, StateDemoted, stat)
			}

		case StateDemoted:
			if promote {
				setStreak(st, st.Streak+1)
				if st.Streak >= e.th.ConfirmCycles {
					setStreak(st, 1)
					move(stat.RuleID, st, StateCandidate, stat)
				}
			} else {
				setStreak(st, 0)
			}
		}
	}

	// Confirmation requires consecutive windows. A window with no qualifying
	// stat for a tracked rule breaks the streak rather than pausing it.
	for id, st := range state.Rules {
		if _, ok := seen[id]; ok {
			continue
		}
		if st.State == StateCandidate || st.State == StateDemoted {
			setStreak(st, 0)
		}
	}

	return transitions, dirty
}

func (e *Engine) promotes(stat trend.RuleStat) bool {
	return stat.TriggerCount >= e.th.MinSamples &&
		stat.Precision != nil &&
		*stat.Precision >= e.th.Promote
}
