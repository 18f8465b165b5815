package promptctx_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jv92admin/alfred/promptctx"
	"github.com/jv92admin/alfred/registry"
)

type schemas struct{}

func (schemas) TableSchema(table string) (registry.TableSchema, bool) {
	if table == "recipes" {
		return registry.TableSchema{Name: "recipes", EntityType: "recipe", IDField: "id"}, true
	}
	return registry.TableSchema{}, false
}

func TestBuildEntityContextBucketsByRecencyAndPending(t *testing.T) {
	reg := registry.New(schemas{})

	recs, err := reg.TranslateReadOutput([]registry.Record{
		{"id": "11111111-1111-1111-1111-111111111111", "title": "Old Pasta"},
	}, "recipes")
	require.NoError(t, err)
	oldRef := registry.Ref(recs[0]["id"].(string))
	reg.Touch(oldRef, 1)

	recs2, err := reg.TranslateReadOutput([]registry.Record{
		{"id": "22222222-2222-2222-2222-222222222222", "title": "Fresh Pasta"},
	}, "recipes")
	require.NoError(t, err)
	recentRef := registry.Ref(recs2[0]["id"].(string))
	reg.Touch(recentRef, 5)

	genRef := reg.RegisterGenerated("recipe", registry.Record{"title": "New idea"})

	ctx := promptctx.BuildEntityContext(reg, 5, 2)

	require.Len(t, ctx.Generated.Rows, 1)
	assert.Equal(t, genRef, ctx.Generated.Rows[0].Ref)

	require.Len(t, ctx.RecentTurns.Rows, 1)
	assert.Equal(t, recentRef, ctx.RecentTurns.Rows[0].Ref)

	require.Len(t, ctx.LongTerm.Rows, 1)
	assert.Equal(t, oldRef, ctx.LongTerm.Rows[0].Ref)
}

func TestBuildEntityContextPendingAlwaysGenerated(t *testing.T) {
	reg := registry.New(schemas{})
	genRef := reg.RegisterGenerated("recipe", registry.Record{"title": "Draft"})
	reg.Touch(genRef, 1)

	ctx := promptctx.BuildEntityContext(reg, 1, 2)
	require.Len(t, ctx.Generated.Rows, 1)
	assert.Empty(t, ctx.RecentTurns.Rows)
	assert.Empty(t, ctx.LongTerm.Rows)
}

func TestThinkViewStripsNothingButPayloads(t *testing.T) {
	reg := registry.New(schemas{})
	genRef := reg.RegisterGenerated("recipe", registry.Record{"title": "Draft"})

	ctx := promptctx.BuildEntityContext(reg, 1, 2)
	view := ctx.ThinkView()

	require.Len(t, view.Generated.Rows, 1)
	assert.Equal(t, genRef, view.Generated.Rows[0].Ref)
	assert.Equal(t, ctx.Generated.Rows[0].Label, view.Generated.Rows[0].Label)
	assert.Equal(t, ctx.Generated.Rows[0].Action, view.Generated.Rows[0].Action)
}

func TestBuildConversationLayerNarrowsToWindow(t *testing.T) {
	conv := conversationWith(3)
	layer := promptctx.BuildConversationLayer(conv, 2)
	require.Len(t, layer.Recent, 2)
	assert.Equal(t, "msg-2", layer.Recent[0].UserMessage)
	assert.Equal(t, "msg-3", layer.Recent[1].UserMessage)
}

func TestBuildReasoningLayerUsesRecentSummaries(t *testing.T) {
	conv := conversationWith(2)
	layer := promptctx.BuildReasoningLayer(conv, 1)
	require.Len(t, layer.Summaries, 1)
}
