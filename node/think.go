package node

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jv92admin/alfred/interpreter"
	"github.com/jv92admin/alfred/step"
)

// ThinkKind discriminates Think's three output cases.
type ThinkKind string

const (
	ThinkPlanDirect ThinkKind = "plan_direct"
	ThinkPropose    ThinkKind = "propose"
	ThinkClarify    ThinkKind = "clarify"
)

// ThinkOutput is the discriminated union Think produces: exactly one of
// Steps, ProposalMessage, ClarificationQuestions is populated, selected by
// Kind. This mirrors the teacher's PlanResult pattern of a Kind-tagged
// struct with mutually exclusive payload fields rather than a Go interface,
// since the set of cases is closed and small.
type ThinkOutput struct {
	Kind ThinkKind
	Goal string

	Steps []step.Step

	ProposalMessage string

	ClarificationQuestions []string
}

type thinkWire struct {
	Kind                   string          `json:"kind"`
	Goal                   string          `json:"goal"`
	Steps                  []thinkStepWire `json:"steps,omitempty"`
	ProposalMessage        string          `json:"proposal_message,omitempty"`
	ClarificationQuestions []string        `json:"clarification_questions,omitempty"`
}

type thinkStepWire struct {
	ID          string   `json:"step_id"`
	Type        string   `json:"step_type"`
	Subdomain   string   `json:"subdomain"`
	Group       int      `json:"group"`
	Description string   `json:"description"`
	Batch       bool     `json:"batch,omitempty"`
	Inputs      []string `json:"inputs,omitempty"`
}

// UnmarshalJSON decodes the flat wire shape into the discriminated Go value,
// rejecting any kind outside the closed three-case set.
func (t *ThinkOutput) UnmarshalJSON(data []byte) error {
	var w thinkWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch ThinkKind(w.Kind) {
	case ThinkPlanDirect:
		steps := make([]step.Step, len(w.Steps))
		for i, s := range w.Steps {
			steps[i] = step.Step{
				ID: s.ID, Type: step.Type(s.Type), Subdomain: s.Subdomain,
				Group: s.Group, Description: s.Description, Batch: s.Batch, Inputs: s.Inputs,
			}
		}
		*t = ThinkOutput{Kind: ThinkPlanDirect, Goal: w.Goal, Steps: steps}
	case ThinkPropose:
		*t = ThinkOutput{Kind: ThinkPropose, Goal: w.Goal, ProposalMessage: w.ProposalMessage}
	case ThinkClarify:
		*t = ThinkOutput{Kind: ThinkClarify, Goal: w.Goal, ClarificationQuestions: w.ClarificationQuestions}
	default:
		return fmt.Errorf("unrecognized think kind %q", w.Kind)
	}
	return nil
}

var thinkShape = interpreter.ResponseShape{
	Name: "think_output",
	Schema: []byte(`{
		"type": "object",
		"required": ["kind", "goal"],
		"properties": {
			"kind": {"enum": ["plan_direct", "propose", "clarify"]}
		}
	}`),
}

// SessionConstraints is the session's accumulated, cross-turn planning
// state. The merge against a turn's ConstraintSnapshot is deterministic —
// no interpreter call — per the session-merge rule.
type SessionConstraints struct {
	Permanent  []Constraint
	ActiveGoal string
}

// Merge applies snap onto s in place: overrides replace matching
// constraints by Kind, new constraints accumulate, ResetGoal clears
// ActiveGoal, and GoalUpdate (if set) replaces it afterward.
func (s *SessionConstraints) Merge(snap ConstraintSnapshot) {
	for _, override := range snap.OverrideConstraints {
		replaced := false
		for i, c := range s.Permanent {
			if c.Kind == override.Kind {
				s.Permanent[i] = override
				replaced = true
				break
			}
		}
		if !replaced {
			s.Permanent = append(s.Permanent, override)
		}
	}
	s.Permanent = append(s.Permanent, snap.NewConstraints...)
	if snap.ResetGoal {
		s.ActiveGoal = ""
	}
	if snap.GoalUpdate != "" {
		s.ActiveGoal = snap.GoalUpdate
	}
}

// Think runs Think for one turn: merges session constraints deterministically,
// then asks the interpreter for a plan/propose/clarify decision.
func Think(ctx context.Context, interp interpreter.Client, session *SessionConstraints, snap ConstraintSnapshot, system, user string, cfg interpreter.Config) (ThinkOutput, error) {
	session.Merge(snap)

	resp, err := interp.Call(ctx, interpreter.Request{System: system, User: user, Shape: thinkShape, Config: cfg})
	if err != nil {
		return ThinkOutput{}, fmt.Errorf("INTERPRETER_TIMEOUT: think call failed: %w", err)
	}
	var out ThinkOutput
	if err := json.Unmarshal([]byte(resp.JSON), &out); err != nil {
		return ThinkOutput{}, fmt.Errorf("VALIDATION_ERROR: malformed think output: %w", err)
	}
	return out, nil
}

// QuickVetoDecision is the answer to the resolved "second opinion" open
// question: a cheap veto check runs on medium-confidence quick
// classifications instead of gating on a bare confidence threshold. Reason
// explains a veto, but Workflow.tryQuickAct does not pass it on to Reply: a
// vetoed turn falls back to Think/Act without it.
type QuickVetoDecision struct {
	Veto   bool   `json:"veto"`
	Reason string `json:"reason,omitempty"`
}

var quickVetoShape = interpreter.ResponseShape{
	Name: "quick_veto",
	Schema: []byte(`{"type": "object", "required": ["veto"], "properties": {"veto": {"type": "boolean"}}}`),
}

// VetoQuick asks a minimal second-opinion question about a medium-confidence
// quick classification. Callers only invoke this when Understand reported
// quick_mode_confidence == medium; high confidence bypasses Think entirely.
func VetoQuick(ctx context.Context, interp interpreter.Client, system, user string, cfg interpreter.Config) (QuickVetoDecision, error) {
	resp, err := interp.Call(ctx, interpreter.Request{System: system, User: user, Shape: quickVetoShape, Config: cfg})
	if err != nil {
		return QuickVetoDecision{Veto: true, Reason: "veto check unavailable"}, nil
	}
	var d QuickVetoDecision
	if err := json.Unmarshal([]byte(resp.JSON), &d); err != nil {
		return QuickVetoDecision{Veto: true, Reason: "malformed veto response"}, nil
	}
	return d, nil
}
