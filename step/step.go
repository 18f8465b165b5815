// Package step implements the plan's unit of work: typed steps, batch
// manifests for multi-item writes, and the per-step result store that later
// steps and prompts read from.
package step

import "github.com/jv92admin/alfred/registry"

// Type is the closed set of step behaviors.
type Type string

const (
	TypeRead    Type = "read"
	TypeWrite   Type = "write"
	TypeAnalyze Type = "analyze"
	TypeGenerate Type = "generate"
)

// Step is one unit of the plan Think produces.
type Step struct {
	ID          string
	Type        Type
	Subdomain   string
	Group       int
	Description string
	Batch       bool
	Inputs      []string
}

// ItemStatus is the lifecycle of one item inside a BatchManifest.
type ItemStatus string

const (
	ItemPending    ItemStatus = "pending"
	ItemInProgress ItemStatus = "in_progress"
	ItemComplete   ItemStatus = "complete"
	ItemFailed     ItemStatus = "failed"
)

// BatchItem is one row of a BatchManifest.
type BatchItem struct {
	Ref       registry.Ref
	Label     string
	Status    ItemStatus
	ResultRef registry.Ref
	Error     string
}

// BatchManifest binds a write-type step that touches multiple items. A step
// may not report step_complete while any item is Pending or InProgress.
type BatchManifest struct {
	StepID string
	Total  int
	Items  []BatchItem
}

// Done reports whether every item has reached a terminal status.
func (m *BatchManifest) Done() bool {
	for _, it := range m.Items {
		if it.Status == ItemPending || it.Status == ItemInProgress {
			return false
		}
	}
	return true
}

// MarkComplete sets an item's status to complete and records the identifier
// of the row it produced (the promoted sibling ref of a persisted gen_*, for
// write steps persisting generated artifacts).
func (m *BatchManifest) MarkComplete(ref registry.Ref, resultRef registry.Ref) {
	for i := range m.Items {
		if m.Items[i].Ref == ref {
			m.Items[i].Status = ItemComplete
			m.Items[i].ResultRef = resultRef
			return
		}
	}
}

// MarkFailed sets an item's status to failed and records why.
func (m *BatchManifest) MarkFailed(ref registry.Ref, reason string) {
	for i := range m.Items {
		if m.Items[i].Ref == ref {
			m.Items[i].Status = ItemFailed
			m.Items[i].Error = reason
			return
		}
	}
}

// Result is the structured, per-step record that later steps and prompt
// builders consult. Records is populated for read steps, Artifacts for
// generate steps. Summary is the only thing shown to steps/prompts that
// don't need the full payload; it is set for analyze steps (an item count)
// and for steps forcibly completed at the tool-call cap, and is empty for
// every other step.
type Result struct {
	StepID    string
	StepType  Type
	Records   []registry.Record
	Artifacts []registry.Record
	Summary   string
	IDs       []registry.Ref

	Blocked       bool
	BlockedReason string
	BlockedCode   string

	Manifest *BatchManifest
}

// Store indexes Results by step id and retains enough turn history for the
// Act prompt builder (the last two turns plus the current turn).
type Store struct {
	byTurn map[int]map[string]*Result
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{byTurn: make(map[int]map[string]*Result)}
}

// Put records a step's result for the given turn.
func (s *Store) Put(turnID int, r *Result) {
	if s.byTurn[turnID] == nil {
		s.byTurn[turnID] = make(map[string]*Result)
	}
	s.byTurn[turnID][r.StepID] = r
}

// Get retrieves a step's result for the given turn.
func (s *Store) Get(turnID int, stepID string) (*Result, bool) {
	m, ok := s.byTurn[turnID]
	if !ok {
		return nil, false
	}
	r, ok := m[stepID]
	return r, ok
}

// Recent returns every result from turns in [turnID-2, turnID], the window
// the Act prompt builder must see.
func (s *Store) Recent(turnID int) []*Result {
	var out []*Result
	for t := turnID - 2; t <= turnID; t++ {
		for _, r := range s.byTurn[t] {
			out = append(out, r)
		}
	}
	return out
}

// Prune discards everything before turnID-2, keeping the store bounded
// across a long session.
func (s *Store) Prune(turnID int) {
	for t := range s.byTurn {
		if t < turnID-2 {
			delete(s.byTurn, t)
		}
	}
}
