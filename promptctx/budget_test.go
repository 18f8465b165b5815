package promptctx_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jv92admin/alfred/promptctx"
	"github.com/jv92admin/alfred/registry"
)

func TestBudgetCountFallsBackWithoutEncoding(t *testing.T) {
	b := promptctx.NewBudget("not-a-real-encoding")
	n := b.Count("one two three")
	assert.Equal(t, 3, n)
}

func TestBudgetCountEmptyString(t *testing.T) {
	b := promptctx.NewBudget("not-a-real-encoding")
	assert.Equal(t, 0, b.Count(""))
}

func TestFitEntityContextTrimsOldestLongTermRowsFirst(t *testing.T) {
	b := promptctx.NewBudget("not-a-real-encoding")

	ctx := promptctx.EntityContext{
		LongTerm: promptctx.EntitySection{
			Title: "Long Term Memory (retained)",
			Rows: []promptctx.EntityRow{
				{Ref: registry.Ref("recipe_1"), Label: "Oldest Pasta", Action: registry.ActionRead},
				{Ref: registry.Ref("recipe_2"), Label: "Middle Pasta", Action: registry.ActionRead},
				{Ref: registry.Ref("recipe_3"), Label: "Newest Pasta", Action: registry.ActionRead},
			},
		},
	}

	full := promptctx.RenderEntityContext(ctx)
	fullCount := b.Count(full)

	fitted := b.FitEntityContext(ctx, fullCount-1)

	require.Len(t, fitted.LongTerm.Rows, 2)
	assert.Equal(t, registry.Ref("recipe_2"), fitted.LongTerm.Rows[0].Ref)
	assert.Equal(t, registry.Ref("recipe_3"), fitted.LongTerm.Rows[1].Ref)
}

func TestFitEntityContextNeverDropsGeneratedOrRecent(t *testing.T) {
	b := promptctx.NewBudget("not-a-real-encoding")
	ctx := promptctx.EntityContext{
		Generated:   promptctx.EntitySection{Title: "Generated (NOT YET SAVED)", Rows: []promptctx.EntityRow{{Ref: "gen_recipe_1", Label: "Draft"}}},
		RecentTurns: promptctx.EntitySection{Title: "Recent Context (last N turns)", Rows: []promptctx.EntityRow{{Ref: "recipe_9", Label: "Soup"}}},
		LongTerm:    promptctx.EntitySection{Title: "Long Term Memory (retained)", Rows: []promptctx.EntityRow{{Ref: "recipe_1", Label: "Bread"}}},
	}

	fitted := b.FitEntityContext(ctx, 0)
	assert.Empty(t, fitted.LongTerm.Rows)
	require.Len(t, fitted.Generated.Rows, 1)
	require.Len(t, fitted.RecentTurns.Rows, 1)
}
