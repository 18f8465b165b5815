package quick_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jv92admin/alfred/interpreter"
	"github.com/jv92admin/alfred/quick"
	"github.com/jv92admin/alfred/registry"
	"github.com/jv92admin/alfred/toolsx"
	"github.com/jv92admin/alfred/toolsx/memstore"
)

type schemas struct{}

func (schemas) TableSchema(table string) (registry.TableSchema, bool) {
	return registry.TableSchema{Name: table, EntityType: "recipe", IDField: "id"}, true
}

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

func TestQuickRunSucceedsOnSingleDBRead(t *testing.T) {
	store := memstore.New("id")
	store.Seed("recipes", registry.Record{"title": "Pasta"})
	reg := registry.New(schemas{})
	tools := toolsx.New(store, reg, schemas{}, nil)

	interp := fakeInterp{json: `{"tool": "db_read", "args": {"table": "recipes"}}`}
	e := &quick.Executor{Tools: tools, Interp: interp}

	res := e.Run(context.Background(), quick.Request{System: "sys", User: "usr"})
	assert.True(t, res.OK)
	assert.False(t, res.Fallback)
	require.Len(t, res.Rows, 1)
}

func TestQuickRunFallsBackOnInterpreterError(t *testing.T) {
	e := &quick.Executor{Interp: fakeInterp{err: errors.New("down")}}
	res := e.Run(context.Background(), quick.Request{})
	assert.True(t, res.Fallback)
}

func TestQuickRunFallsBackOnNonReadTool(t *testing.T) {
	e := &quick.Executor{Interp: fakeInterp{json: `{"tool": "db_delete", "args": {}}`}}
	res := e.Run(context.Background(), quick.Request{})
	assert.True(t, res.Fallback)
	assert.Contains(t, res.Reason, "single db_read call")
}

func TestQuickRunFallsBackOnToolFailure(t *testing.T) {
	store := memstore.New("id")
	reg := registry.New(schemas{})
	tools := toolsx.New(store, reg, schemas{}, nil)
	interp := fakeInterp{json: `{"tool": "db_read", "args": {"table": "recipes", "filters": [{"Field": "", "Op": "="}]}}`}
	e := &quick.Executor{Tools: tools, Interp: interp}

	res := e.Run(context.Background(), quick.Request{})
	assert.True(t, res.Fallback)
}
