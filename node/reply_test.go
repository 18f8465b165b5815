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

func TestReplyDecodesMessageAndNextStep(t *testing.T) {
	interp := fakeInterp{json: `{"message": "Saved your recipe.", "next_step": {"description": "add it to this week's plan", "ref": "recipe_1"}}`}
	out, err := node.Reply(context.Background(), interp, "sys", "usr", interpreter.Config{})
	require.NoError(t, err)
	assert.Equal(t, "Saved your recipe.", out.Message)
	require.NotNil(t, out.NextStep)
	assert.Equal(t, "recipe_1", out.NextStep.Ref)
}

func TestReplyFallsBackOnInterpreterError(t *testing.T) {
	interp := fakeInterp{err: errors.New("down")}
	out, err := node.Reply(context.Background(), interp, "sys", "usr", interpreter.Config{})
	require.Error(t, err)
	assert.NotEmpty(t, out.Message)
}

func TestReplyFallsBackOnMalformedJSON(t *testing.T) {
	interp := fakeInterp{json: `not json`}
	out, err := node.Reply(context.Background(), interp, "sys", "usr", interpreter.Config{})
	require.Error(t, err)
	assert.NotEmpty(t, out.Message)
}
