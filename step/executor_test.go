package step_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jv92admin/alfred/interpreter"
	"github.com/jv92admin/alfred/registry"
	"github.com/jv92admin/alfred/step"
	"github.com/jv92admin/alfred/toolsx"
	"github.com/jv92admin/alfred/toolsx/memstore"
)

type schemas struct{}

func (schemas) TableSchema(table string) (registry.TableSchema, bool) {
	if table == "recipes" {
		return registry.TableSchema{Name: "recipes", EntityType: "recipe", IDField: "id"}, true
	}
	return registry.TableSchema{}, false
}

// scriptedInterp returns one canned JSON response per call, in order.
type scriptedInterp struct {
	responses []string
	calls     int
}

func (s *scriptedInterp) Call(_ context.Context, _ interpreter.Request) (interpreter.Response, error) {
	if s.calls >= len(s.responses) {
		return interpreter.Response{}, assertError("scripted interpreter ran out of responses")
	}
	r := s.responses[s.calls]
	s.calls++
	return interpreter.Response{JSON: r}, nil
}

type assertError string

func (e assertError) Error() string { return string(e) }

func noopPrompt(_ context.Context, _ step.Step, _ int) (string, string, error) {
	return "system", "user", nil
}

func TestRunStepReadCompletesAfterOneToolCall(t *testing.T) {
	store := memstore.New("id")
	reg := registry.New(schemas{})
	store.Seed("recipes", registry.Record{"title": "Pasta"})
	tools := toolsx.New(store, reg, schemas{}, nil)

	interp := &scriptedInterp{responses: []string{
		`{"action":"tool_call","tool":"db_read","args":{"table":"recipes"}}`,
		`{"action":"step_complete"}`,
	}}
	exec := &step.Executor{Tools: tools, Interp: interp, Reg: reg}

	res, err := exec.RunStep(context.Background(), 1, step.Step{ID: "s1", Type: step.TypeRead}, noopPrompt)
	require.NoError(t, err)
	assert.False(t, res.Blocked)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "Pasta", res.Records[0]["title"])
}

func TestRunStepRejectsDisallowedTool(t *testing.T) {
	store := memstore.New("id")
	reg := registry.New(schemas{})
	tools := toolsx.New(store, reg, schemas{}, nil)

	interp := &scriptedInterp{responses: []string{
		`{"action":"tool_call","tool":"db_delete","args":{"table":"recipes"}}`,
	}}
	exec := &step.Executor{Tools: tools, Interp: interp, Reg: reg}

	_, err := exec.RunStep(context.Background(), 1, step.Step{ID: "s1", Type: step.TypeRead}, noopPrompt)
	require.Error(t, err)
	var stepErr *step.Error
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, step.CodeValidationError, stepErr.Code)
}

func TestRunStepPolicyNarrowsAllowedTools(t *testing.T) {
	store := memstore.New("id")
	reg := registry.New(schemas{})
	tools := toolsx.New(store, reg, schemas{}, nil)

	interp := &scriptedInterp{responses: []string{
		`{"action":"tool_call","tool":"db_create","args":{"table":"recipes","payload":{"title":"x"}}}`,
	}}
	exec := &step.Executor{
		Tools:  tools,
		Interp: interp,
		Reg:    reg,
		Policy: step.NewBasicPolicy(nil, []string{"db_create"}, "no-writes"),
	}

	_, err := exec.RunStep(context.Background(), 1, step.Step{ID: "s1", Type: step.TypeWrite}, noopPrompt)
	require.Error(t, err)
}

func TestRunStepBlocked(t *testing.T) {
	store := memstore.New("id")
	reg := registry.New(schemas{})
	tools := toolsx.New(store, reg, schemas{}, nil)

	interp := &scriptedInterp{responses: []string{
		`{"action":"blocked","blocked_reason":"missing permission","blocked_code":"FORBIDDEN"}`,
	}}
	exec := &step.Executor{Tools: tools, Interp: interp, Reg: reg}

	res, err := exec.RunStep(context.Background(), 1, step.Step{ID: "s1", Type: step.TypeRead}, noopPrompt)
	require.NoError(t, err)
	assert.True(t, res.Blocked)
	assert.Equal(t, "missing permission", res.BlockedReason)
}

func TestRunStepCapReachedForcesCompletion(t *testing.T) {
	store := memstore.New("id")
	reg := registry.New(schemas{})
	tools := toolsx.New(store, reg, schemas{}, nil)

	responses := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		responses = append(responses, `{"action":"tool_call","tool":"db_read","args":{"table":"recipes"}}`)
	}
	interp := &scriptedInterp{responses: responses}
	exec := &step.Executor{Tools: tools, Interp: interp, Reg: reg, MaxToolCallsPerStep: 3}

	res, err := exec.RunStep(context.Background(), 1, step.Step{ID: "s1", Type: step.TypeRead}, noopPrompt)
	require.NoError(t, err)
	assert.False(t, res.Blocked)
	assert.Contains(t, res.Summary, string(step.CodeCapReached))
}

func TestRunStepAnalyzeNeverCallsTools(t *testing.T) {
	store := memstore.New("id")
	reg := registry.New(schemas{})
	tools := toolsx.New(store, reg, schemas{}, nil)

	interp := &scriptedInterp{responses: []string{
		`{"action":"step_complete","artifacts":[{"finding":"low on garlic"}]}`,
	}}
	exec := &step.Executor{Tools: tools, Interp: interp, Reg: reg}

	res, err := exec.RunStep(context.Background(), 1, step.Step{ID: "s1", Type: step.TypeAnalyze}, noopPrompt)
	require.NoError(t, err)
	assert.Contains(t, res.Summary, "1 analysis item")
}

func TestRunStepGenerateProducesArtifacts(t *testing.T) {
	store := memstore.New("id")
	reg := registry.New(schemas{})
	tools := toolsx.New(store, reg, schemas{}, nil)

	interp := &scriptedInterp{responses: []string{
		`{"action":"step_complete","artifacts":[{"title":"New recipe idea"}]}`,
	}}
	exec := &step.Executor{Tools: tools, Interp: interp, Reg: reg}

	res, err := exec.RunStep(context.Background(), 1, step.Step{ID: "s1", Type: step.TypeGenerate, Subdomain: "recipe"}, noopPrompt)
	require.NoError(t, err)
	require.Len(t, res.Artifacts, 1)
	assert.Equal(t, "New recipe idea", res.Artifacts[0]["title"])

	// The generated artifact must be registered as a pending "gen_*" ref so
	// later steps/prompts can reach it through the registry's unified
	// data-access API, not just through this step's own Result.
	require.Len(t, res.IDs, 1)
	content, ok := reg.GetEntityData(res.IDs[0])
	require.True(t, ok)
	assert.Equal(t, "New recipe idea", content["title"])
}

func TestRunStepBatchWriteRequiresAllItemsTerminal(t *testing.T) {
	store := memstore.New("id")
	reg := registry.New(schemas{})
	tools := toolsx.New(store, reg, schemas{}, nil)

	genA := reg.RegisterGenerated("recipe", registry.Record{"title": "A"})
	genB := reg.RegisterGenerated("recipe", registry.Record{"title": "B"})

	interp := &scriptedInterp{responses: []string{
		`{"action":"tool_call","tool":"db_create","args":{"table":"recipes","payload":{"title":"A"},"original_refs":["` + string(genA) + `"]}}`,
		// Refused: gen_recipe_2 is still pending, so step_complete must not
		// be honored even though the interpreter asked for it.
		`{"action":"step_complete"}`,
		`{"action":"tool_call","tool":"db_create","args":{"table":"recipes","payload":{"title":"B"},"original_refs":["` + string(genB) + `"]}}`,
		`{"action":"step_complete"}`,
	}}
	exec := &step.Executor{Tools: tools, Interp: interp, Reg: reg}

	st := step.Step{ID: "s1", Type: step.TypeWrite, Subdomain: "recipe", Batch: true, Inputs: []string{string(genA), string(genB)}}
	res, err := exec.RunStep(context.Background(), 1, st, noopPrompt)
	require.NoError(t, err)
	require.NotNil(t, res.Manifest)
	assert.Equal(t, 2, res.Manifest.Total)
	require.True(t, res.Manifest.Done())
	for _, item := range res.Manifest.Items {
		assert.Equal(t, step.ItemComplete, item.Status)
	}
	assert.Equal(t, 4, interp.calls)
}

func TestRunGroupRunsStepsConcurrentlyAndMerges(t *testing.T) {
	store := memstore.New("id")
	reg := registry.New(schemas{})
	store.Seed("recipes", registry.Record{"title": "Pasta"})
	tools := toolsx.New(store, reg, schemas{}, nil)

	// callIndexPrompt encodes callIndex into the user string so the fake
	// interpreter can decide, per call rather than per step instance,
	// whether to read or complete - safe for concurrent steps since each
	// RunStep call tracks its own callIndex independently.
	callIndexPrompt := func(_ context.Context, st step.Step, callIndex int) (string, string, error) {
		if callIndex == 0 {
			return "system", "call:0", nil
		}
		return "system", "call:1", nil
	}

	exec := &step.Executor{Tools: tools, Interp: readThenCompleteInterp{}, Reg: reg, GroupParallelism: 2}
	steps := []step.Step{
		{ID: "s1", Type: step.TypeRead, Group: 1},
		{ID: "s2", Type: step.TypeRead, Group: 1},
	}
	results, err := exec.RunGroup(context.Background(), 1, steps, callIndexPrompt)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.False(t, r.Blocked)
	}
}

// readThenCompleteInterp answers the first call of any step with a db_read
// and every subsequent call with step_complete, branching on the "call:N"
// marker callIndexPrompt embeds in User.
type readThenCompleteInterp struct{}

func (readThenCompleteInterp) Call(_ context.Context, req interpreter.Request) (interpreter.Response, error) {
	if req.User == "call:0" {
		return interpreter.Response{JSON: `{"action":"tool_call","tool":"db_read","args":{"table":"recipes"}}`}, nil
	}
	return interpreter.Response{JSON: `{"action":"step_complete"}`}, nil
}
