// Package promptctx builds the three context layers (entity, conversation,
// reasoning) described by spec.md §4.7, assembles them into per-node prompt
// text via static templates, and enforces a token budget before a prompt is
// handed to the interpreter.
package promptctx

import (
	"sort"

	"github.com/jv92admin/alfred/conversation"
	"github.com/jv92admin/alfred/registry"
)

// EntityRow is one line of rendered entity context: ref | label | latest action.
type EntityRow struct {
	Ref    registry.Ref
	Label  string
	Action registry.Action
}

// EntitySection is one of the three entity-layer buckets spec.md names.
type EntitySection struct {
	Title string
	Rows  []EntityRow
}

// EntityContext is the full entity layer: three sections, deduplicated so a
// ref appears in only the most-recent-applicable section.
type EntityContext struct {
	Generated   EntitySection // "Generated (NOT YET SAVED)"
	RecentTurns EntitySection // "Recent Context (last N turns)"
	LongTerm    EntitySection // "Long Term Memory (retained)"
}

// BuildEntityContext walks every ref the registry knows about and buckets it
// per spec.md §4.7: a pending (not-yet-persisted) artifact always goes in
// Generated regardless of recency; everything else is bucketed by how
// recently it was touched relative to recentTurnsWindow, and a ref never
// appears twice — most-recent classification wins.
func BuildEntityContext(reg *registry.SessionIdRegistry, currentTurn, recentTurnsWindow int) EntityContext {
	ctx := EntityContext{
		Generated:   EntitySection{Title: "Generated (NOT YET SAVED)"},
		RecentTurns: EntitySection{Title: "Recent Context (last N turns)"},
		LongTerm:    EntitySection{Title: "Long Term Memory (retained)"},
	}

	refs := reg.AllRefs()
	sort.Slice(refs, func(i, j int) bool { return refs[i] < refs[j] })

	for _, ref := range refs {
		action, _ := reg.LastAction(ref)
		row := EntityRow{Ref: ref, Label: reg.Label(ref), Action: action}

		if _, pending := reg.GetEntityData(ref); pending {
			ctx.Generated.Rows = append(ctx.Generated.Rows, row)
			continue
		}

		lastTurn, ok := reg.LastTurn(ref)
		if ok && currentTurn-lastTurn <= recentTurnsWindow {
			ctx.RecentTurns.Rows = append(ctx.RecentTurns.Rows, row)
			continue
		}
		ctx.LongTerm.Rows = append(ctx.LongTerm.Rows, row)
	}

	return ctx
}

// ThinkView copies each row as ref, label and latest action; rows carry no
// payloads (spec.md §4.7). The note that full data is available to Act is
// part of think.tmpl's section heading, not of the rows.
func (ctx EntityContext) ThinkView() EntityContext {
	strip := func(sec EntitySection) EntitySection {
		out := EntitySection{Title: sec.Title}
		for _, r := range sec.Rows {
			out.Rows = append(out.Rows, EntityRow{Ref: r.Ref, Label: r.Label, Action: r.Action})
		}
		return out
	}
	return EntityContext{
		Generated:   strip(ctx.Generated),
		RecentTurns: strip(ctx.RecentTurns),
		LongTerm:    strip(ctx.LongTerm),
	}
}

// ConversationLayer is the last RECENT_TURNS exchanges in full plus the
// compressed tail (spec.md §4.7).
type ConversationLayer struct {
	Recent         []conversation.Turn
	HistorySummary string
}

// BuildConversationLayer slices the conversation down to the configured
// recent-turns window; the store itself already prunes past FullDetailTurns,
// so this additionally narrows to the node-facing window when it is smaller.
func BuildConversationLayer(conv conversation.Conversation, recentTurns int) ConversationLayer {
	recent := conv.Recent
	if len(recent) > recentTurns {
		recent = recent[len(recent)-recentTurns:]
	}
	return ConversationLayer{Recent: recent, HistorySummary: conv.HistorySummary}
}

// ReasoningLayer carries the last one or two TurnExecutionSummary entries
// (spec.md §4.7).
type ReasoningLayer struct {
	Summaries []conversation.ExecutionSummary
}

// BuildReasoningLayer extracts the most recent n execution summaries.
func BuildReasoningLayer(conv conversation.Conversation, n int) ReasoningLayer {
	return ReasoningLayer{Summaries: conversation.RecentSummaries(conv, n)}
}
