package promptctx

import (
	"embed"
	"fmt"
	"strings"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Slots is a named-slot fill for one template. Assemble does plain
// "{{name}}" substitution — no conditionals, no loops — per spec.md §9's
// "Prompt templates" note that assembly is pure slot substitution, not a
// general template language.
type Slots map[string]string

var precedenceText = mustLoad("templates/precedence.tmpl")

func mustLoad(name string) string {
	b, err := templateFS.ReadFile(name)
	if err != nil {
		panic(fmt.Sprintf("promptctx: missing embedded template %q: %v", name, err))
	}
	return strings.TrimRight(string(b), "\n")
}

// Assemble loads the named template and fills its slots. Every assembled
// prompt implicitly gets a "precedence" slot unless the caller overrides it.
func Assemble(templateName string, slots Slots) (string, error) {
	raw, err := templateFS.ReadFile("templates/" + templateName + ".tmpl")
	if err != nil {
		return "", fmt.Errorf("promptctx: unknown template %q: %w", templateName, err)
	}
	out := string(raw)
	if _, ok := slots["precedence"]; !ok {
		out = strings.ReplaceAll(out, "{{precedence}}", precedenceText)
	}
	for name, value := range slots {
		out = strings.ReplaceAll(out, "{{"+name+"}}", value)
	}
	return out, nil
}

// RenderEntitySection formats one EntitySection as "ref | label | action" rows.
func RenderEntitySection(sec EntitySection) string {
	if len(sec.Rows) == 0 {
		return sec.Title + ": (none)"
	}
	var b strings.Builder
	b.WriteString(sec.Title + ":\n")
	for _, row := range sec.Rows {
		fmt.Fprintf(&b, "- %s | %s | %s\n", row.Ref, row.Label, row.Action)
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderEntityContext formats all three sections in spec order.
func RenderEntityContext(ctx EntityContext) string {
	return strings.Join([]string{
		RenderEntitySection(ctx.Generated),
		RenderEntitySection(ctx.RecentTurns),
		RenderEntitySection(ctx.LongTerm),
	}, "\n\n")
}

// RenderConversation formats the conversation layer as alternating
// user/assistant lines followed by the history summary narrative.
func RenderConversation(layer ConversationLayer) string {
	var b strings.Builder
	for _, t := range layer.Recent {
		fmt.Fprintf(&b, "User: %s\nAssistant: %s\n", t.UserMessage, t.AssistantResponse)
	}
	if layer.HistorySummary != "" {
		fmt.Fprintf(&b, "\nEarlier in this conversation: %s\n", layer.HistorySummary)
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderReasoning formats the last execution summaries as compact lines.
func RenderReasoning(layer ReasoningLayer) string {
	if len(layer.Summaries) == 0 {
		return "(no prior execution)"
	}
	var b strings.Builder
	for i, s := range layer.Summaries {
		fmt.Fprintf(&b, "Turn -%d: %d/%d steps, tools=%v, created=%v, updated=%v, deleted=%v, errors=%v\n",
			i+1, s.StepsCompleted, s.StepsTotal, s.ToolsCalled, s.EntitiesCreated, s.EntitiesUpdated, s.EntitiesDeleted, s.Errors)
	}
	return strings.TrimRight(b.String(), "\n")
}
