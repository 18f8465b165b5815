package node_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jv92admin/alfred/interpreter"
	"github.com/jv92admin/alfred/node"
)

type fakeInterp struct {
	json string
	err  error
}

func (f fakeInterp) Call(_ context.Context, _ interpreter.Request) (interpreter.Response, error) {
	if f.err != nil {
		return interpreter.Response{}, f.err
	}
	return interpreter.Response{JSON: f.json}, nil
}

func TestUnderstandDecodesStructuredOutput(t *testing.T) {
	interp := fakeInterp{json: `{
		"processed_message": "user wants pasta tonight",
		"constraint_snapshot": {"new_constraints": [{"kind": "diet", "value": "vegetarian"}]},
		"entity_curation": {"retain_refs": [{"ref": "recipe_1", "reason": "currently cooking"}]},
		"quick_mode": true,
		"quick_mode_confidence": "high"
	}`}
	out, err := node.Understand(context.Background(), interp, "sys", "usr", interpreter.Config{})
	require.NoError(t, err)
	assert.Equal(t, "user wants pasta tonight", out.ProcessedMessage)
	assert.True(t, out.QuickMode)
	assert.Equal(t, node.ConfidenceHigh, out.QuickModeConfidence)
	require.Len(t, out.ConstraintSnapshot.NewConstraints, 1)
	assert.Equal(t, "vegetarian", out.ConstraintSnapshot.NewConstraints[0].Value)
}

func TestUnderstandTruncatesOverlongProcessedMessage(t *testing.T) {
	long := ""
	for i := 0; i < 80; i++ {
		long += "x"
	}
	interp := fakeInterp{json: `{"processed_message": "` + long + `", "constraint_snapshot": {}, "entity_curation": {}, "quick_mode": false}`}
	out, err := node.Understand(context.Background(), interp, "sys", "usr", interpreter.Config{})
	require.NoError(t, err)
	assert.Len(t, out.ProcessedMessage, 50)
}

func TestUnderstandFallsBackOnInterpreterError(t *testing.T) {
	interp := fakeInterp{err: errors.New("network down")}
	out, err := node.Understand(context.Background(), interp, "sys", "usr", interpreter.Config{})
	require.Error(t, err)
	assert.Equal(t, node.EntityCuration{}, out.EntityCuration)
	assert.False(t, out.QuickMode)
}

func TestUnderstandFallsBackOnMalformedJSON(t *testing.T) {
	interp := fakeInterp{json: `not json`}
	out, err := node.Understand(context.Background(), interp, "sys", "usr", interpreter.Config{})
	require.Error(t, err)
	assert.Equal(t, node.EntityCuration{}, out.EntityCuration)
}
