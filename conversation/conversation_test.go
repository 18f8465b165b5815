package conversation_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jv92admin/alfred/conversation"
)

func turnN(n int) conversation.Turn {
	return conversation.Turn{
		TurnID:      itoa(n),
		UserMessage: "msg-" + itoa(n),
		ExecutionSummary: conversation.ExecutionSummary{
			StepsCompleted: n,
			StepsTotal:     n,
		},
		CreatedAt: time.Now(),
	}
}

func itoa(n int) string {
	digits := "0123456789"
	if n == 0 {
		return "0"
	}
	out := ""
	for n > 0 {
		out = string(digits[n%10]) + out
		n /= 10
	}
	return out
}

func TestWindowKeepsEverythingUnderLimit(t *testing.T) {
	conv := conversation.Conversation{Recent: []conversation.Turn{turnN(1)}}
	recent, evicted := conversation.Window(conv, turnN(2), 3)
	require.Len(t, recent, 2)
	assert.Empty(t, evicted)
}

func TestWindowEvictsOldestFirst(t *testing.T) {
	conv := conversation.Conversation{Recent: []conversation.Turn{turnN(1), turnN(2)}}
	recent, evicted := conversation.Window(conv, turnN(3), 2)
	require.Len(t, recent, 2)
	assert.Equal(t, "2", recent[0].TurnID)
	assert.Equal(t, "3", recent[1].TurnID)
	require.Len(t, evicted, 1)
	assert.Equal(t, "1", evicted[0].TurnID)
}

func TestRecentSummariesMostRecentFirst(t *testing.T) {
	conv := conversation.Conversation{Recent: []conversation.Turn{turnN(1), turnN(2), turnN(3)}}
	summaries := conversation.RecentSummaries(conv, 2)
	require.Len(t, summaries, 2)
	assert.Equal(t, 3, summaries[0].StepsCompleted)
	assert.Equal(t, 2, summaries[1].StepsCompleted)
}

func TestRecentSummariesCapsAtAvailableTurns(t *testing.T) {
	conv := conversation.Conversation{Recent: []conversation.Turn{turnN(1)}}
	summaries := conversation.RecentSummaries(conv, 5)
	require.Len(t, summaries, 1)
}
