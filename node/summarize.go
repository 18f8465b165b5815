package node

import (
	"github.com/jv92admin/alfred/registry"
)

// ExecutionSummary is the structured audit ledger Summarize produces for
// one turn.
type ExecutionSummary struct {
	StepsCompleted   int
	StepsTotal       int
	ToolsCalled      int
	EntitiesCreated  int
	EntitiesUpdated  int
	EntitiesDeleted  int
	ArtifactsGenerated int
	ArtifactsSaved   int
	Errors           []string
}

// Summarize is an audit writer, never a proposer: it only records what
// happened and prepares the registry/conversation for persistence. It never
// calls the interpreter — the ledger is built entirely from already-known
// turn-local state.
type Summarize struct {
	Reg *registry.SessionIdRegistry
}

// Build assembles the turn's ExecutionSummary from the recorded step
// results and registry actions accumulated during Act.
func (s *Summarize) Build(stepsTotal, stepsCompleted, toolsCalled int, errs []string) ExecutionSummary {
	summary := ExecutionSummary{
		StepsTotal:     stepsTotal,
		StepsCompleted: stepsCompleted,
		ToolsCalled:    toolsCalled,
		Errors:         errs,
	}
	for _, ref := range s.Reg.AllRefs() {
		action, ok := s.Reg.LastAction(ref)
		if !ok {
			continue
		}
		switch action {
		case registry.ActionCreated:
			summary.EntitiesCreated++
		case registry.ActionUpdated:
			summary.EntitiesUpdated++
		case registry.ActionDeleted:
			summary.EntitiesDeleted++
		case registry.ActionGenerated:
			summary.ArtifactsGenerated++
			if s.Reg.IsPromoted(ref) {
				summary.ArtifactsSaved++
			}
		}
	}
	return summary
}

// EvictPendingArtifacts drops gen_* entries that satisfy BOTH resolved
// open-question conditions: persisted-or-explicitly-dropped AND not
// referenced in the last turn. The two conditions are ANDed rather than
// blended, keeping curated drops authoritative over mere recency.
func (s *Summarize) EvictPendingArtifacts(currentTurn int) {
	for _, ref := range s.Reg.AllRefs() {
		if !registry.IsGenerated(ref) {
			continue
		}
		action, _ := s.Reg.LastAction(ref)
		persistedOrDropped := s.Reg.IsPromoted(ref) || action == registry.ActionDeleted
		lastTurn, hasTurn := s.Reg.LastTurn(ref)
		referencedLastTurn := hasTurn && lastTurn >= currentTurn-1
		if persistedOrDropped && !referencedLastTurn {
			s.Reg.EvictGenerated(ref)
		}
	}
}
