package types

import (
	"fmt"
	"sort"
)

// State accumulates validated stage outputs over a run. It grows append-only:
// once a stage commits its output, it can never be replaced or removed. The
// orchestrator is the only writer; everything else reads.
type State struct {
	scenario Scenario
	outputs  map[string]any
	order    []string
}

// NewState creates a State for one run of the given scenario.
func NewState(scenario Scenario) *State {
	return &State{
		scenario: scenario,
		outputs:  make(map[string]any),
	}
}

// Scenario returns the immutable run input.
func (s *State) Scenario() Scenario { return s.scenario }

// Commit attaches a stage's validated output. Committing the same stage
// twice is a programming error and is rejected.
func (s *State) Commit(stage string, out any) error {
	if stage == "" {
		return fmt.Errorf("state: empty stage key")
	}
	if _, ok := s.outputs[stage]; ok {
		return fmt.Errorf("state: stage %q already committed", stage)
	}
	s.outputs[stage] = out
	s.order = append(s.order, stage)
	return nil
}

// Get returns the committed output for a stage.
func (s *State) Get(stage string) (any, bool) {
	out, ok := s.outputs[stage]
	return out, ok
}

// Has reports whether every named stage has committed output.
func (s *State) Has(stages ...string) bool {
	for _, st := range stages {
		if _, ok := s.outputs[st]; !ok {
			return false
		}
	}
	return true
}

// Stages returns the stage keys in commit order.
func (s *State) Stages() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Snapshot returns the committed outputs keyed by stage, plus the scenario
// under "scenario". The map is a copy; stage outputs themselves are treated
// as immutable by convention.
func (s *State) Snapshot() map[string]any {
	snap := make(map[string]any, len(s.outputs)+1)
	snap["scenario"] = s.scenario
	for k, v := range s.outputs {
		snap[k] = v
	}
	return snap
}

// Missing returns, sorted, the subset of stages with no committed output.
func (s *State) Missing(stages ...string) []string {
	var missing []string
	for _, st := range stages {
		if _, ok := s.outputs[st]; !ok {
			missing = append(missing, st)
		}
	}
	sort.Strings(missing)
	return missing
}
