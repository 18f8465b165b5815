package main

import (
	"context"
	"fmt"

	"github.com/jv92admin/alfred/interpreter"
)

// stubInterpreter is an offline interpreter.Client for local smoke-testing
// the turn wiring without a live model credential: it answers every
// ResponseShape with the simplest value that satisfies it, so RunTurn can
// be exercised end-to-end against memstore/memjob/memlock and the CLI's
// in-memory conversation and registry stores without network access. It is
// the default provider: buildInterpreter selects it for "stub" or an empty
// --provider value.
type stubInterpreter struct{}

func (stubInterpreter) Call(_ context.Context, req interpreter.Request) (interpreter.Response, error) {
	switch req.Shape.Name {
	case "understand_output":
		return interpreter.Response{JSON: `{
			"processed_message": "quick status check",
			"constraint_snapshot": {},
			"entity_curation": {},
			"quick_mode": false
		}`}, nil
	case "think_output":
		return interpreter.Response{JSON: `{
			"kind": "propose",
			"goal": "answer directly without touching storage",
			"proposal_message": "I can answer this without making any changes — want me to proceed?"
		}`}, nil
	case "quick_veto":
		return interpreter.Response{JSON: `{"veto": true, "reason": "stub interpreter never trusts quick mode"}`}, nil
	case "act_decision":
		return interpreter.Response{JSON: `{"action": "step_complete"}`}, nil
	case "reply_output":
		return interpreter.Response{JSON: `{"message": "Here's what I found."}`}, nil
	case "quick_tool_call":
		return interpreter.Response{JSON: `{"tool": "db_read", "args": {"table": "recipes", "filters": []}}`}, nil
	default:
		return interpreter.Response{}, fmt.Errorf("stub interpreter: unrecognized response shape %q", req.Shape.Name)
	}
}
