package sqlitestore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jv92admin/alfred/conversation"
	"github.com/jv92admin/alfred/conversation/sqlitestore"
)

func openStore(t *testing.T) *sqlitestore.Store {
	t.Helper()
	db, err := sqlitestore.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlitestore.New(db)
}

func TestCreateIsIdempotent(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	first, err := store.Create(ctx, "user-1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "user-1", first.UserID)
	assert.Empty(t, first.Recent)

	second, err := store.Create(ctx, "user-1", time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, first.CreatedAt.Unix(), second.CreatedAt.Unix())
}

func TestLoadMissingReturnsErrNotFound(t *testing.T) {
	store := openStore(t)
	_, err := store.Load(context.Background(), "nobody")
	require.ErrorIs(t, err, conversation.ErrNotFound)
}

func TestAppendTurnPersistsAndEvicts(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, "user-1", time.Now())
	require.NoError(t, err)

	turn1 := conversation.Turn{TurnID: "1", UserMessage: "hi", AssistantResponse: "hello", CreatedAt: time.Now()}
	require.NoError(t, store.AppendTurn(ctx, "user-1", turn1, nil, ""))

	turn2 := conversation.Turn{TurnID: "2", UserMessage: "what's for dinner", AssistantResponse: "pasta", CreatedAt: time.Now()}
	require.NoError(t, store.AppendTurn(ctx, "user-1", turn2, []conversation.Turn{turn1}, "Earlier: user said hi."))

	loaded, err := store.Load(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, loaded.Recent, 1)
	assert.Equal(t, "2", loaded.Recent[0].TurnID)
	assert.Equal(t, "Earlier: user said hi.", loaded.HistorySummary)
}

func TestAppendTurnRoundTripsExecutionSummary(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	_, err := store.Create(ctx, "user-1", time.Now())
	require.NoError(t, err)

	turn := conversation.Turn{
		TurnID:      "1",
		UserMessage: "plan my week",
		ExecutionSummary: conversation.ExecutionSummary{
			StepsCompleted:  3,
			StepsTotal:      3,
			ToolsCalled:     []string{"read", "write"},
			EntitiesCreated: []string{"recipe_1"},
		},
		CreatedAt: time.Now(),
	}
	require.NoError(t, store.AppendTurn(ctx, "user-1", turn, nil, ""))

	loaded, err := store.Load(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, loaded.Recent, 1)
	assert.Equal(t, 3, loaded.Recent[0].ExecutionSummary.StepsCompleted)
	assert.Equal(t, []string{"read", "write"}, loaded.Recent[0].ExecutionSummary.ToolsCalled)
}
