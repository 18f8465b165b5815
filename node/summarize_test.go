package node_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jv92admin/alfred/node"
	"github.com/jv92admin/alfred/registry"
)

type noopSchemas struct{}

func (noopSchemas) TableSchema(table string) (registry.TableSchema, bool) {
	return registry.TableSchema{Name: table, EntityType: "recipe", IDField: "id"}, true
}

func TestSummarizeBuildCountsEntityActions(t *testing.T) {
	reg := registry.New(noopSchemas{})
	created, err := reg.TranslateReadOutput([]registry.Record{{"id": "11111111-1111-1111-1111-111111111111"}}, "recipes")
	require.NoError(t, err)
	createdRef := registry.Ref(created[0]["id"].(string))
	reg.Mark(createdRef, registry.ActionCreated)

	gen := reg.RegisterGenerated("recipe", registry.Record{"title": "Draft"})
	reg.TranslateCreateOutput([]string{"22222222-2222-2222-2222-222222222222"}, "recipes", []registry.Ref{gen})

	s := &node.Summarize{Reg: reg}
	summary := s.Build(3, 3, 2, nil)
	assert.Equal(t, 3, summary.StepsTotal)
	assert.Equal(t, 2, summary.EntitiesCreated)    // the marked recipe plus the promoted sibling
	assert.Equal(t, 1, summary.ArtifactsGenerated) // the original gen_* only; its sibling counts as created
	assert.Equal(t, 1, summary.ArtifactsSaved)
}

func TestEvictPendingArtifactsRequiresBothConditions(t *testing.T) {
	reg := registry.New(noopSchemas{})
	s := &node.Summarize{Reg: reg}

	stillPending := reg.RegisterGenerated("recipe", registry.Record{"title": "Draft A"})
	reg.Touch(stillPending, 5)

	droppedButRecent := reg.RegisterGenerated("recipe", registry.Record{"title": "Draft B"})
	reg.Mark(droppedButRecent, registry.ActionDeleted)
	reg.Touch(droppedButRecent, 5)

	droppedAndStale := reg.RegisterGenerated("recipe", registry.Record{"title": "Draft C"})
	reg.Mark(droppedAndStale, registry.ActionDeleted)
	reg.Touch(droppedAndStale, 1)

	s.EvictPendingArtifacts(5)

	_, ok := reg.GetEntityData(stillPending)
	assert.True(t, ok, "never-dropped artifact must survive eviction")

	_, ok = reg.GetEntityData(droppedButRecent)
	assert.True(t, ok, "dropped-but-referenced-last-turn artifact must survive eviction")

	_, ok = reg.GetEntityData(droppedAndStale)
	assert.False(t, ok, "dropped-and-stale artifact must be evicted")
}
