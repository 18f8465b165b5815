// Package conversation implements the conversation store (spec §3): a
// rolling window of full-detail turns plus a narrative compression of
// anything older. A conversation is keyed by user, not by a separate
// session identifier — one alfred user has one ongoing conversation, and
// RunTurn reads/extends its tail on every turn.
//
// Grounded on the teacher's runtime/agent/session package: the explicit
// create/load lifecycle and durable Store interface carry over directly,
// narrowed from general run metadata down to the turn/summary shape this
// spec needs.
package conversation

import (
	"context"
	"errors"
	"time"
)

// Turn is one exchange, matching spec.md's ConversationTurn verbatim. The
// field is still called TurnID even though the broader state type is
// turn.AlfredState, to avoid the two "turn" concepts colliding by name.
type Turn struct {
	TurnID             string
	UserMessage        string
	AssistantResponse  string
	AssistantSummary   string
	ExecutionSummary   ExecutionSummary
	CreatedAt          time.Time
}

// ExecutionSummary is the structured audit ledger a turn leaves behind
// (spec §4.5 TurnExecutionSummary). Populated by node.Summarize and
// retained here so the two most recent summaries are visible to Reply and
// the next turn's Think, per spec.md §3.
type ExecutionSummary struct {
	StepsCompleted    int
	StepsTotal        int
	ToolsCalled       []string
	EntitiesCreated   []string
	EntitiesUpdated   []string
	EntitiesDeleted   []string
	ArtifactsGenerated []string
	ArtifactsSaved    []string
	Errors            []string
}

// Conversation is the durable per-user conversational container.
type Conversation struct {
	UserID    string
	CreatedAt time.Time

	// TurnCount is the total number of turns ever appended, independent of
	// how many remain in Recent. turn.AlfredState.TurnID is assigned from
	// this counter (TurnCount+1) rather than len(Recent), since Recent's
	// length stops growing once the full-detail window fills — using its
	// length would stop turn_id from being monotonic (spec.md §3) the
	// moment turns start getting evicted.
	TurnCount int

	// Recent holds the last FullDetailTurns turns in full detail (spec
	// says N≈2-3; config.Config.FullDetailTurns carries the exact value).
	Recent []Turn

	// HistorySummary is a narrative compression of everything evicted from
	// Recent. It carries no ref IDs — only prose — per spec.md §3.
	HistorySummary string
}

// Store persists conversations. Implementations must be durable across
// process restarts within their retention window.
type Store interface {
	// Create returns the existing conversation for userID, creating an
	// empty one if none exists yet. Idempotent.
	Create(ctx context.Context, userID string, createdAt time.Time) (Conversation, error)
	// Load retrieves a conversation. Returns ErrNotFound if absent.
	Load(ctx context.Context, userID string) (Conversation, error)
	// AppendTurn appends a completed turn to the tail, evicting the oldest
	// full-detail turn past window into the caller-supplied summary update
	// (the caller does the narrative folding, as RunTurn's compactHistory
	// does; AppendTurn only persists it).
	AppendTurn(ctx context.Context, userID string, t Turn, evicted []Turn, newHistorySummary string) error
}

// ErrNotFound indicates no conversation exists for the given user.
var ErrNotFound = errors.New("conversation: not found")

// Window applies the rolling-window policy: given the current conversation
// and a just-completed turn, it returns the updated Recent slice and the
// turns that fall out of the full-detail window (oldest first), for the
// caller to fold into HistorySummary before calling AppendTurn.
func Window(c Conversation, t Turn, recentTurnsWindow int) (recent []Turn, evicted []Turn) {
	all := append(append([]Turn{}, c.Recent...), t)
	if len(all) <= recentTurnsWindow {
		return all, nil
	}
	cut := len(all) - recentTurnsWindow
	return all[cut:], all[:cut]
}

// RecentSummaries returns the ExecutionSummary of the last n turns, most
// recent first, for Reply/Think's "two most recent execution summaries"
// visibility rule (spec.md §3).
func RecentSummaries(c Conversation, n int) []ExecutionSummary {
	out := make([]ExecutionSummary, 0, n)
	for i := len(c.Recent) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, c.Recent[i].ExecutionSummary)
	}
	return out
}
