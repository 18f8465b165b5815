package step

import (
	"encoding/json"
	"fmt"

	"github.com/jv92admin/alfred/registry"
)

// Action is the closed set of responses the interpreter may give inside the
// Act loop for a single step-scoped call.
type Action string

const (
	ActionToolCall     Action = "tool_call"
	ActionStepComplete Action = "step_complete"
	ActionBlocked      Action = "blocked"
)

// ToolCall is the payload of a tool_call decision: the Tool-layer operation
// name ("db_read"/"db_create"/"db_update"/"db_delete") and its raw
// arguments, validated against the step type's allowed operations before
// execution.
type ToolCall struct {
	Tool string          `json:"tool"`
	Args json.RawMessage `json:"args"`
}

// Decision is the discriminated union the Act loop decodes from one
// interpreter call. Exactly one of ToolCall/Artifacts/BlockedReason is
// populated, selected by Action.
type Decision struct {
	Action Action

	ToolCall *ToolCall

	// Artifacts is populated when Action == step_complete and the step is a
	// generate step: the structured content to register as gen_* refs.
	Artifacts []json.RawMessage

	BlockedReason string
	BlockedCode   string
}

// decisionWire is the flat wire shape the interpreter actually emits; it
// mirrors how the teacher's planner package decodes a Kind-discriminated
// response into a typed Go value by hand rather than via a tagged
// json.Unmarshaler on an interface.
type decisionWire struct {
	Action        string            `json:"action"`
	Tool          string            `json:"tool,omitempty"`
	Args          json.RawMessage   `json:"args,omitempty"`
	Artifacts     []json.RawMessage `json:"artifacts,omitempty"`
	BlockedReason string            `json:"blocked_reason,omitempty"`
	BlockedCode   string            `json:"blocked_code,omitempty"`
}

// UnmarshalJSON rejects unknown actions outright rather than defaulting to a
// zero-value Decision, so a malformed interpreter response surfaces as
// VALIDATION_ERROR instead of silently doing nothing.
func (d *Decision) UnmarshalJSON(data []byte) error {
	var w decisionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch Action(w.Action) {
	case ActionToolCall:
		if w.Tool == "" {
			return fmt.Errorf("tool_call decision missing tool field")
		}
		*d = Decision{Action: ActionToolCall, ToolCall: &ToolCall{Tool: w.Tool, Args: w.Args}}
	case ActionStepComplete:
		*d = Decision{Action: ActionStepComplete, Artifacts: w.Artifacts}
	case ActionBlocked:
		if w.BlockedReason == "" {
			return fmt.Errorf("blocked decision missing blocked_reason field")
		}
		*d = Decision{Action: ActionBlocked, BlockedReason: w.BlockedReason, BlockedCode: w.BlockedCode}
	default:
		return fmt.Errorf("unrecognized action %q", w.Action)
	}
	return nil
}

// MarshalJSON emits the same flat wire shape UnmarshalJSON reads, so
// Decision round-trips through the job durability layer's checkpoint
// snapshots unchanged.
func (d Decision) MarshalJSON() ([]byte, error) {
	w := decisionWire{Action: string(d.Action)}
	switch d.Action {
	case ActionToolCall:
		if d.ToolCall != nil {
			w.Tool = d.ToolCall.Tool
			w.Args = d.ToolCall.Args
		}
	case ActionStepComplete:
		w.Artifacts = d.Artifacts
	case ActionBlocked:
		w.BlockedReason = d.BlockedReason
		w.BlockedCode = d.BlockedCode
	}
	return json.Marshal(w)
}

// ArtifactRecords decodes a generate decision's raw artifact documents into
// records, skipping (rather than failing on) any entry that doesn't decode
// as an object so one malformed artifact can't sink the whole step.
func ArtifactRecords(artifacts []json.RawMessage) []registry.Record {
	out := make([]registry.Record, 0, len(artifacts))
	for _, raw := range artifacts {
		var rec registry.Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out
}
