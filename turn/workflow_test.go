package turn_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jv92admin/alfred/config"
	"github.com/jv92admin/alfred/conversation"
	"github.com/jv92admin/alfred/interpreter"
	"github.com/jv92admin/alfred/node"
	"github.com/jv92admin/alfred/quick"
	"github.com/jv92admin/alfred/registry"
	"github.com/jv92admin/alfred/step"
	"github.com/jv92admin/alfred/telemetry"
	"github.com/jv92admin/alfred/toolsx"
	"github.com/jv92admin/alfred/toolsx/memstore"
	"github.com/jv92admin/alfred/turn"
)

// shapeScriptedInterp answers by ResponseShape.Name, letting one fake drive
// an entire turn across Understand/Think/Act/Reply without branching on
// call order.
type shapeScriptedInterp struct {
	byShape map[string][]string
	calls   map[string]int
}

func newShapeScriptedInterp(byShape map[string][]string) *shapeScriptedInterp {
	return &shapeScriptedInterp{byShape: byShape, calls: make(map[string]int)}
}

func (s *shapeScriptedInterp) Call(_ context.Context, req interpreter.Request) (interpreter.Response, error) {
	name := req.Shape.Name
	responses := s.byShape[name]
	idx := s.calls[name]
	if idx >= len(responses) {
		idx = len(responses) - 1
	}
	s.calls[name]++
	if idx < 0 {
		return interpreter.Response{}, assertErr("no scripted response for shape " + name)
	}
	return interpreter.Response{JSON: responses[idx]}, nil
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

func newWorkflow(interp interpreter.Client, tools *toolsx.Tools, reg *registry.SessionIdRegistry) *turn.Workflow {
	cfg := config.Default()
	exec := &step.Executor{Tools: tools, Interp: interp, Reg: reg, GroupParallelism: cfg.GroupParallelism, MaxToolCallsPerStep: cfg.MaxToolCallsPerStep}
	return &turn.Workflow{
		Interp:      interp,
		StepExec:    exec,
		StepStore:   step.NewStore(),
		Quick:       &quick.Executor{Tools: tools, Interp: interp},
		Config:      cfg,
		Telemetry:   telemetry.Noop(),
		Constraints: &node.SessionConstraints{},
	}
}

func TestWorkflowRunDisambiguationShortCircuits(t *testing.T) {
	store := memstore.New("id")
	reg := registry.New(schemas{})
	tools := toolsx.New(store, reg, schemas{}, nil)

	interp := newShapeScriptedInterp(map[string][]string{
		"understand_output": {`{"processed_message":"which recipe","constraint_snapshot":{},"entity_curation":{},"quick_mode":false,"needs_disambiguation":true,"disambiguation_options":["Pasta","Soup"]}`},
	})
	w := newWorkflow(interp, tools, reg)

	conv := conversation.Conversation{UserID: "u1"}
	s := turn.NewState("u1", 1, turn.ModePlan, "make dinner", nil, reg, conv, "t1")

	out, err := w.Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, out.Terminal)
	assert.Equal(t, "needs_disambiguation", out.TerminalReason)
	assert.Contains(t, out.ReplyOutput.Message, "Pasta")
}

func TestWorkflowRunQuickActBypassesThink(t *testing.T) {
	store := memstore.New("id")
	reg := registry.New(schemas{})
	store.Seed("recipes", registry.Record{"title": "Pasta"})
	tools := toolsx.New(store, reg, schemas{}, nil)

	interp := newShapeScriptedInterp(map[string][]string{
		"understand_output": {`{"processed_message":"what's for dinner","constraint_snapshot":{},"entity_curation":{},"quick_mode":true,"quick_mode_confidence":"high"}`},
		"quick_tool_call":    {`{"tool":"db_read","args":{"table":"recipes"}}`},
		"reply_output":       {`{"message":"You're having Pasta."}`},
	})
	w := newWorkflow(interp, tools, reg)

	conv := conversation.Conversation{UserID: "u1"}
	s := turn.NewState("u1", 1, turn.ModeQuick, "what's for dinner", nil, reg, conv, "t1")

	out, err := w.Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, out.Terminal)
	require.Len(t, out.ActOutputs, 1)
	assert.Equal(t, "You're having Pasta.", out.ReplyOutput.Message)
	assert.Equal(t, 0, interp.calls["think_output"])
}

func TestWorkflowRunProposeShortCircuits(t *testing.T) {
	store := memstore.New("id")
	reg := registry.New(schemas{})
	tools := toolsx.New(store, reg, schemas{}, nil)

	interp := newShapeScriptedInterp(map[string][]string{
		"understand_output": {`{"processed_message":"plan my week","constraint_snapshot":{},"entity_curation":{},"quick_mode":false}`},
		"think_output":       {`{"kind":"propose","goal":"weekly plan","proposal_message":"I'd suggest starting with a shopping list. Sound good?"}`},
	})
	w := newWorkflow(interp, tools, reg)

	conv := conversation.Conversation{UserID: "u1"}
	s := turn.NewState("u1", 1, turn.ModePlan, "plan my week", nil, reg, conv, "t1")

	out, err := w.Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, out.Terminal)
	assert.Equal(t, "propose", out.TerminalReason)
	assert.Contains(t, out.ReplyOutput.Message, "shopping list")
}

func TestWorkflowRunClarifyShortCircuits(t *testing.T) {
	store := memstore.New("id")
	reg := registry.New(schemas{})
	tools := toolsx.New(store, reg, schemas{}, nil)

	interp := newShapeScriptedInterp(map[string][]string{
		"understand_output": {`{"processed_message":"cook something","constraint_snapshot":{},"entity_curation":{},"quick_mode":false}`},
		"think_output":       {`{"kind":"clarify","goal":"","clarification_questions":["Which night do you mean?"]}`},
	})
	w := newWorkflow(interp, tools, reg)

	conv := conversation.Conversation{UserID: "u1"}
	s := turn.NewState("u1", 1, turn.ModePlan, "cook something", nil, reg, conv, "t1")

	out, err := w.Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, out.Terminal)
	assert.Equal(t, "clarify", out.TerminalReason)
	assert.Contains(t, out.ReplyOutput.Message, "Which night")
}

func TestWorkflowRunPlanDirectExecutesStepsAndReplies(t *testing.T) {
	store := memstore.New("id")
	reg := registry.New(schemas{})
	store.Seed("recipes", registry.Record{"title": "Pasta"})
	tools := toolsx.New(store, reg, schemas{}, nil)

	interp := newShapeScriptedInterp(map[string][]string{
		"understand_output": {`{"processed_message":"what recipes do I have","constraint_snapshot":{},"entity_curation":{},"quick_mode":false}`},
		"think_output":       {`{"kind":"plan_direct","goal":"list recipes","steps":[{"step_id":"s1","step_type":"read","subdomain":"recipes","group":1,"description":"list recipes"}]}`},
		"act_decision":        {`{"action":"tool_call","tool":"db_read","args":{"table":"recipes"}}`, `{"action":"step_complete"}`},
		"reply_output":        {`{"message":"You have Pasta on hand."}`},
	})
	w := newWorkflow(interp, tools, reg)

	conv := conversation.Conversation{UserID: "u1"}
	s := turn.NewState("u1", 1, turn.ModePlan, "what recipes do I have", nil, reg, conv, "t1")

	out, err := w.Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, out.Terminal)
	require.Len(t, out.ActOutputs, 1)
	assert.False(t, out.ActOutputs[0].Blocked)
	assert.Equal(t, "You have Pasta on hand.", out.ReplyOutput.Message)
	assert.NotZero(t, out.SummarizeOutput.StepsTotal)
}
