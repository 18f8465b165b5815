package turn

import (
	"context"
	"fmt"
	"strings"

	"github.com/jv92admin/alfred/conversation"
	"github.com/jv92admin/alfred/node"
	"github.com/jv92admin/alfred/promptctx"
	"github.com/jv92admin/alfred/registry"
	"github.com/jv92admin/alfred/step"
)

// contextLayers bundles the three context layers promptctx builds, at the
// view each phase is entitled to (spec.md §4.7).
type contextLayers struct {
	entity promptctx.EntityContext
	conv   promptctx.ConversationLayer
	reason promptctx.ReasoningLayer
}

func (w *Workflow) buildLayers(s *AlfredState) contextLayers {
	ec := promptctx.BuildEntityContext(s.SessionRegistry, s.TurnID, w.Config.RecentTurnsWindow)
	cl := promptctx.BuildConversationLayer(s.Conversation, w.Config.RecentTurnsWindow)
	rl := promptctx.BuildReasoningLayer(s.Conversation, 2)
	return contextLayers{entity: ec, conv: cl, reason: rl}
}

func (w *Workflow) understandPrompt(s *AlfredState, layers contextLayers) (system, user string, err error) {
	system, err = promptctx.Assemble("understand", promptctx.Slots{
		"entity_context": promptctx.RenderEntityContext(layers.entity),
		"conversation":   promptctx.RenderConversation(layers.conv),
		"reasoning":      promptctx.RenderReasoning(layers.reason),
		"task":           s.UserMessage,
	})
	return system, s.UserMessage, err
}

func (w *Workflow) thinkPrompt(s *AlfredState, layers contextLayers) (system, user string, err error) {
	think := layers.entity.ThinkView()
	system, err = promptctx.Assemble("think", promptctx.Slots{
		"entity_context": promptctx.RenderEntityContext(think),
		"conversation":   promptctx.RenderConversation(layers.conv),
		"reasoning":      promptctx.RenderReasoning(layers.reason),
		"task":           s.UnderstandOutput.ProcessedMessage,
	})
	return system, s.UnderstandOutput.ProcessedMessage, err
}

// actPrompt builds a step.PromptFunc closed over the turn's accumulated
// results, so every call inside the Act loop sees prior groups' output.
func (w *Workflow) actPrompt(s *AlfredState) step.PromptFunc {
	return func(_ context.Context, st step.Step, callIndex int) (string, string, error) {
		prior := w.StepStore.Recent(s.TurnID)
		artifacts := w.artifactsForStep(s, st)
		view := promptctx.BuildActView(st, prior, w.schemaSliceFor(st.Type), artifacts)

		var priorB strings.Builder
		for _, r := range view.PriorResults {
			fmt.Fprintf(&priorB, "- %s (%s): %s\n", r.StepID, r.StepType, r.Summary)
		}
		system, err := promptctx.Assemble("act", promptctx.Slots{
			"current_step":  fmt.Sprintf("%s [%s/%s] %s", st.ID, st.Type, st.Subdomain, st.Description),
			"prior_results":  strings.TrimRight(priorB.String(), "\n"),
			"schema_slice":   view.SchemaSlice,
			"artifacts":      promptctx.RenderArtifacts(view.ArtifactsForStep),
		})
		return system, st.Description, err
	}
}

func (w *Workflow) replyPrompt(s *AlfredState, layers contextLayers) (system, user string, err error) {
	system, err = promptctx.Assemble("reply", promptctx.Slots{
		"entity_context":    promptctx.RenderEntityContext(layers.entity),
		"conversation":      promptctx.RenderConversation(layers.conv),
		"reasoning":         promptctx.RenderReasoning(layers.reason),
		"pending_artifacts": promptctx.RenderArtifacts(w.pendingArtifacts(s)),
	})
	return system, "Render the result of this turn.", err
}

// pendingArtifacts resolves every still-Generated ref's payload for Reply's
// "pending artifacts" section.
func (w *Workflow) pendingArtifacts(s *AlfredState) []map[string]any {
	var out []map[string]any
	for _, ref := range s.SessionRegistry.AllRefs() {
		if !registry.IsGenerated(ref) {
			continue
		}
		if data, ok := s.SessionRegistry.GetEntityData(ref); ok {
			out = append(out, map[string]any(data))
		}
	}
	return out
}

// artifactsForStep resolves whatever generated artifacts are relevant to a
// step, regardless of step type (read/write/analyze all get them, per the
// historical-bug fix promptctx.ActView documents).
func (w *Workflow) artifactsForStep(s *AlfredState, st step.Step) []map[string]any {
	return w.pendingArtifacts(s)
}

func (w *Workflow) schemaSliceFor(t step.Type) string {
	if w.SchemaDocs == nil {
		return "(no schema registered)"
	}
	if doc, ok := w.SchemaDocs[string(t)]; ok {
		return doc
	}
	return "(no schema registered)"
}

// assistantSummaryText renders the deterministic one-line AssistantSummary
// RunTurn stores for every turn; no interpreter call is made to summarize a
// turn.
func assistantSummaryText(exec node.ExecutionSummary) string {
	return fmt.Sprintf("%d/%d steps completed, %d tool call(s), %d created, %d updated, %d deleted",
		exec.StepsCompleted, exec.StepsTotal, exec.ToolsCalled, exec.EntitiesCreated, exec.EntitiesUpdated, exec.EntitiesDeleted)
}

func toConversationSummary(exec node.ExecutionSummary, toolNames []string, created, updated, deleted, genRefs, savedRefs []string) conversation.ExecutionSummary {
	return conversation.ExecutionSummary{
		StepsCompleted:     exec.StepsCompleted,
		StepsTotal:         exec.StepsTotal,
		ToolsCalled:        toolNames,
		EntitiesCreated:    created,
		EntitiesUpdated:    updated,
		EntitiesDeleted:    deleted,
		ArtifactsGenerated: genRefs,
		ArtifactsSaved:     savedRefs,
		Errors:             exec.Errors,
	}
}
