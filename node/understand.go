// Package node implements the five turn phases: Understand, Think, Act,
// Reply, Summarize. Each phase is a thin wrapper around one interpreter call
// (or, for Act, the step executor loop) plus the deterministic validation
// and fallback behavior the turn machine requires when the interpreter's
// structured output can't be trusted as-is.
package node

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jv92admin/alfred/interpreter"
	"github.com/jv92admin/alfred/registry"
)

// Confidence is the closed set of entity-resolution confidence levels.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Resolution describes how an entity mention was matched.
type Resolution string

const (
	ResolutionExact      Resolution = "exact"
	ResolutionFuzzy      Resolution = "fuzzy"
	ResolutionUnresolved Resolution = "unresolved"
)

// EntityMention is one linguistic reference to an entity, with its
// resolution state.
type EntityMention struct {
	RawText     string       `json:"raw_text"`
	EntityType  string       `json:"entity_type"`
	ResolvedRef registry.Ref `json:"resolved_ref,omitempty"`
	Candidates  []registry.Ref `json:"candidates,omitempty"`
	Confidence  Confidence   `json:"confidence"`
	Resolution  Resolution   `json:"resolution"`
}

// Constraint is one typed, accumulated planning constraint.
type Constraint struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// ConstraintSnapshot is Understand's per-turn view of constraint changes;
// Think merges this deterministically against session state.
type ConstraintSnapshot struct {
	NewConstraints      []Constraint `json:"new_constraints,omitempty"`
	OverrideConstraints []Constraint `json:"override_constraints,omitempty"`
	ResetGoal           bool         `json:"reset_goal"`
	GoalUpdate          string       `json:"goal_update,omitempty"`
	SourcePhrases       []string     `json:"source_phrases,omitempty"`
}

// RetainedRef is one ref Understand's curation wants kept alive with an
// explanation for why it remains relevant.
type RetainedRef struct {
	Ref    registry.Ref `json:"ref"`
	Reason string       `json:"reason"`
}

// EntityCuration drives the registry's cross-turn retention.
type EntityCuration struct {
	ClearAll  bool           `json:"clear_all,omitempty"`
	DropRefs  []registry.Ref `json:"drop_refs,omitempty"`
	RetainRefs []RetainedRef `json:"retain_refs,omitempty"`
}

// Output is Understand's full structured result.
type Output struct {
	ProcessedMessage      string             `json:"processed_message"`
	EntityMentions        []EntityMention    `json:"entity_mentions,omitempty"`
	NeedsDisambiguation    bool               `json:"needs_disambiguation"`
	DisambiguationOptions []string           `json:"disambiguation_options,omitempty"`
	ConstraintSnapshot    ConstraintSnapshot `json:"constraint_snapshot"`
	EntityCuration        EntityCuration     `json:"entity_curation"`
	QuickMode             bool               `json:"quick_mode"`
	QuickModeConfidence   Confidence         `json:"quick_mode_confidence,omitempty"`
}

var understandShape = interpreter.ResponseShape{
	Name: "understand_output",
	Schema: []byte(`{
		"type": "object",
		"required": ["processed_message", "constraint_snapshot", "entity_curation", "quick_mode"],
		"properties": {
			"processed_message": {"type": "string", "maxLength": 50}
		}
	}`),
}

// Understand runs Understand for one turn. On a malformed structured
// output, it falls back to processing the turn as planned mode with empty
// curation rather than failing the turn outright.
func Understand(ctx context.Context, interp interpreter.Client, system, user string, cfg interpreter.Config) (Output, error) {
	resp, err := interp.Call(ctx, interpreter.Request{System: system, User: user, Shape: understandShape, Config: cfg})
	if err != nil {
		return fallbackUnderstand(), fmt.Errorf("VALIDATION_ERROR: interpreter call failed: %w", err)
	}
	var out Output
	if err := json.Unmarshal([]byte(resp.JSON), &out); err != nil {
		return fallbackUnderstand(), fmt.Errorf("VALIDATION_ERROR: malformed understand output: %w", err)
	}
	if len(out.ProcessedMessage) > 50 {
		out.ProcessedMessage = out.ProcessedMessage[:50]
	}
	// Writes, multi-domain requests, and knowledge/reasoning questions are
	// never quick; a conservative classifier leaves quick_mode false by
	// default, so no extra enforcement is needed here beyond trusting the
	// interpreter's own restraint plus Think's veto on medium confidence.
	return out, nil
}

func fallbackUnderstand() Output {
	return Output{
		EntityCuration: EntityCuration{},
	}
}
