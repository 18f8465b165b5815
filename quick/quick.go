// Package quick implements QuickAct: the single-tool-call bypass for
// trivial reads classified by Understand, skipping the full Think/Act-loop
// machinery entirely.
package quick

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jv92admin/alfred/interpreter"
	"github.com/jv92admin/alfred/toolsx"
)

// Request carries everything a single-call executor needs: it must remain a
// minimal prompt (intent, compact user profile, schema slice, filter
// syntax) — no step machinery, no batch manifest.
type Request struct {
	System string
	User   string
	Config interpreter.Config
}

// Result is the outcome of one QuickAct attempt. When Fallback is true, the
// caller must route the turn onto the planned path on the next turn rather
// than retry QuickAct itself.
type Result struct {
	OK       bool
	Rows     []map[string]any
	Fallback bool
	Reason   string
}

var quickShape = interpreter.ResponseShape{
	Name: "quick_tool_call",
	Schema: []byte(`{
		"type": "object",
		"required": ["tool", "args"],
		"properties": {
			"tool": {"const": "db_read"},
			"args": {"type": "object"}
		}
	}`),
}

type quickCallWire struct {
	Tool string          `json:"tool"`
	Args json.RawMessage `json:"args"`
}

type quickArgs struct {
	Table   string          `json:"table"`
	Filters []toolsx.Filter `json:"filters,omitempty"`
}

// Executor runs QuickAct. It never retries internally: a failure or an
// interpreter response outside the single-tool-call contract is reported as
// Fallback so the calling turn can requeue through the planned path.
type Executor struct {
	Tools  *toolsx.Tools
	Interp interpreter.Client
}

// Run asks the interpreter for exactly one db_read call and executes it.
func (e *Executor) Run(ctx context.Context, req Request) Result {
	resp, err := e.Interp.Call(ctx, interpreter.Request{
		System: req.System,
		User:   req.User,
		Shape:  quickShape,
		Config: req.Config,
	})
	if err != nil {
		return Result{Fallback: true, Reason: fmt.Sprintf("interpreter call failed: %v", err)}
	}

	var wire quickCallWire
	if err := json.Unmarshal([]byte(resp.JSON), &wire); err != nil || wire.Tool != "db_read" {
		return Result{Fallback: true, Reason: "quick response was not a single db_read call"}
	}

	var args quickArgs
	if err := json.Unmarshal(wire.Args, &args); err != nil {
		return Result{Fallback: true, Reason: "malformed quick call args"}
	}

	res := e.Tools.Read(ctx, args.Table, args.Filters)
	if !res.OK {
		return Result{Fallback: true, Reason: fmt.Sprintf("%s: %s", res.Code, res.Message)}
	}

	rows := make([]map[string]any, len(res.Rows))
	for i, r := range res.Rows {
		rows[i] = r
	}
	return Result{OK: true, Rows: rows}
}
