// Package turn implements the phase graph (spec §2/§5): the explicit,
// hand-written Understand -> Think -> Act-loop -> Reply -> Summarize state
// machine, with QuickAct short-circuiting between Understand and Reply. It
// owns AlfredState (the per-turn evolving record), the RunTurn entry point,
// and cross-turn serialization.
//
// Grounded on the teacher's hand-written plan/tool/observe workflow function
// (there is no declarative graph executor in goa-ai either — a fixed,
// five-phase turn does not need one).
package turn

import (
	"time"

	"github.com/jv92admin/alfred/conversation"
	"github.com/jv92admin/alfred/node"
	"github.com/jv92admin/alfred/registry"
	"github.com/jv92admin/alfred/step"
)

// Mode is the closed set of turn modes this module implements. cook and
// brainstorm are named by spec.md but explicitly out of core scope; they
// are carried as values so a caller's Mode field round-trips, but RunTurn
// rejects them.
type Mode string

const (
	ModePlan       Mode = "plan"
	ModeQuick      Mode = "quick"
	ModeCook       Mode = "cook"
	ModeBrainstorm Mode = "brainstorm"
)

// UIChange is one out-of-band mutation the frontend applied and wants
// acknowledged, applied to the registry before Understand runs (spec §5
// "Suspension points").
type UIChange struct {
	Ref     registry.Ref
	Action  registry.Action
	Payload registry.Record
}

// AlfredState is the per-turn evolving record (spec §3).
type AlfredState struct {
	UserID string
	TurnID int
	Mode   Mode

	UserMessage string
	UIChanges   []UIChange

	UnderstandOutput node.Output
	ThinkOutput      node.ThinkOutput
	ActOutputs       []*step.Result
	ReplyOutput      node.ReplyOutput
	SummarizeOutput  node.ExecutionSummary

	Steps            []step.Step
	CurrentStepIndex int
	StepResults      map[string]*step.Result
	BatchManifests   map[string]*step.BatchManifest

	SessionRegistry *registry.SessionIdRegistry
	Conversation    conversation.Conversation

	ToolCallCountThisStep int

	// Deadline is this turn's wall-clock budget, set once from
	// config.Config.TurnDeadline when the turn starts (ambient addition:
	// spec.md leaves deadline enforcement to the implementation).
	Deadline time.Time
	// TraceID correlates logs/spans for this turn; not user-visible data.
	TraceID string

	Terminal       bool
	TerminalReason string
}

// NewState seeds a fresh AlfredState for one turn.
func NewState(userID string, turnID int, mode Mode, userMessage string, uiChanges []UIChange, reg *registry.SessionIdRegistry, conv conversation.Conversation, traceID string) *AlfredState {
	return &AlfredState{
		UserID:          userID,
		TurnID:          turnID,
		Mode:            mode,
		UserMessage:     userMessage,
		UIChanges:       uiChanges,
		SessionRegistry: reg,
		Conversation:    conv,
		StepResults:     make(map[string]*step.Result),
		BatchManifests:  make(map[string]*step.BatchManifest),
		TraceID:         traceID,
	}
}

// ApplyUIChanges mutates the registry per spec §5: UI changes are applied
// before Understand runs.
func ApplyUIChanges(reg *registry.SessionIdRegistry, changes []UIChange) {
	for _, c := range changes {
		switch c.Action {
		case registry.ActionGenerated:
			reg.UpdateEntityData(c.Ref, c.Payload)
		default:
			reg.Mark(c.Ref, c.Action)
		}
	}
}
