package hardening

import (
	"sort"
	"time"
)

type RuleState string

const (
	StateInactive  RuleState = "inactive"
	StateCandidate RuleState = "candidate"
	StateActive    RuleState = "active"
	StateDemoted   RuleState = "demoted"
)

// RuleStatus is one rule's position in the promotion state machine. Streak
// counts consecutive evaluation cycles the current promotion condition has
// held, which drives the anti-flap confirmation.
type RuleStatus struct {
	State     RuleState `yaml:"state"`
	Streak    int       `yaml:"streak"`
	UpdatedAt time.Time `yaml:"updatedAt"`
}

// RuleSetState is the versioned aggregate of all paranoia-3/4 rule states.
// Version increments on every persisted mutation; the compare-and-write in
// StateFile.Save rejects concurrent mutation.
type RuleSetState struct {
	Version   int                    `yaml:"version"`
	UpdatedAt time.Time              `yaml:"updatedAt"`
	Rules     map[string]*RuleStatus `yaml:"rules"`
}

func NewRuleSetState() *RuleSetState {
	return &RuleSetState{Rules: make(map[string]*RuleStatus)}
}

// Status returns the tracked status for a rule, creating an inactive entry on
// first sight.
func (s *RuleSetState) Status(id string) *RuleStatus {
	if s.Rules == nil {
		s.Rules = make(map[string]*RuleStatus)
	}
	st, ok := s.Rules[id]
	if !ok {
		st = &RuleStatus{State: StateInactive}
		s.Rules[id] = st
	}
	return st
}

// ActiveIDs lists the rules currently promoted into enforcement, sorted.
func (s *RuleSetState) ActiveIDs() []string {
	var ids []string
	for id, st := range s.Rules {
		if st.State == StateActive {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (s *RuleSetState) Clone() *RuleSetState {
	out := &RuleSetState{
		Version:   s.Version,
		UpdatedAt: s.UpdatedAt,
		Rules:     make(map[string]*RuleStatus, len(s.Rules)),
	}
	for id, st := range s.Rules {
		copied := *st
		out.Rules[id] = &copied
	}
	return out
}
