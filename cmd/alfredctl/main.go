// Command alfredctl drives one turn through the Understand/Think/Act/
// Reply/Summarize machine against a configurable backend set. With no
// flags it runs entirely in memory (memstore/memjob/memlock/chansink) with
// a stub interpreter, useful for exercising the wiring without a live
// model credential or external services.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jv92admin/alfred/config"
	"github.com/jv92admin/alfred/conversation"
	"github.com/jv92admin/alfred/interpreter"
	"github.com/jv92admin/alfred/interpreter/anthropicx"
	"github.com/jv92admin/alfred/job/memjob"
	"github.com/jv92admin/alfred/quick"
	"github.com/jv92admin/alfred/registry"
	"github.com/jv92admin/alfred/step"
	"github.com/jv92admin/alfred/telemetry"
	"github.com/jv92admin/alfred/toolsx"
	"github.com/jv92admin/alfred/toolsx/memstore"
	"github.com/jv92admin/alfred/turn"
	"github.com/jv92admin/alfred/turn/eventsink/chansink"
	"github.com/jv92admin/alfred/turn/lock/memlock"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "alfredctl",
		Short: "Drive one turn of the kitchen-planning assistant core",
	}
	root.AddCommand(newTurnCmd())
	return root
}

func newTurnCmd() *cobra.Command {
	var (
		userID   string
		message  string
		mode     string
		provider string
		model    string
	)
	cmd := &cobra.Command{
		Use:   "turn",
		Short: "Run a single turn and print the assistant's reply",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTurn(cmd.Context(), userID, message, mode, provider, model)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "demo-user", "user id the turn runs against")
	cmd.Flags().StringVar(&message, "message", "", "the user's message (required)")
	cmd.Flags().StringVar(&mode, "mode", "plan", "turn mode: plan or quick")
	cmd.Flags().StringVar(&provider, "provider", "stub", "interpreter provider: stub or anthropic")
	cmd.Flags().StringVar(&model, "model", "", "model id, passed through to the chosen provider")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

// staticSchemas is a fixed, single-table SchemaProvider sufficient for the
// CLI's demo seed data; production callers wire a provider backed by their
// real relational schema.
type staticSchemas struct{}

func (staticSchemas) TableSchema(table string) (registry.TableSchema, bool) {
	switch table {
	case "recipes":
		return registry.TableSchema{Name: "recipes", EntityType: "recipe", IDField: "id"}, true
	default:
		return registry.TableSchema{}, false
	}
}

func runTurn(ctx context.Context, userID, message, mode, provider, model string) error {
	cfg := config.Default()
	schemas := staticSchemas{}

	store := memstore.New("id")
	store.Seed("recipes", registry.Record{"title": "Weeknight pasta", "servings": float64(4)})

	reg := registry.New(schemas)
	tools := toolsx.New(store, reg, schemas, nil)

	interp, err := buildInterpreter(provider, model)
	if err != nil {
		return err
	}

	exec := &step.Executor{
		Tools:               tools,
		Interp:              interp,
		Reg:                 reg,
		MaxToolCallsPerStep: cfg.MaxToolCallsPerStep,
		GroupParallelism:    cfg.GroupParallelism,
	}
	stepStore := step.NewStore()

	w := &turn.Workflow{
		Interp:    interp,
		StepExec:  exec,
		StepStore: stepStore,
		Quick:     &quick.Executor{Tools: tools, Interp: interp},
		Config:    cfg,
		Telemetry: telemetry.Noop(),
	}

	deps := turn.Dependencies{
		Jobs:          memjob.New(cfg.JobRetention),
		Conversations: memConversations{convs: make(map[string]conversation.Conversation)},
		Registries:    memRegistries{reg: reg},
		Lock:          memlock.New(),
		Sink:          chansink.New(16),
	}

	res, err := turn.RunTurn(ctx, w, deps, turn.Request{
		UserID:      userID,
		UserMessage: message,
		Mode:        turn.Mode(mode),
	})
	if err != nil {
		return fmt.Errorf("alfredctl: run turn: %w", err)
	}

	out, _ := json.MarshalIndent(res, "", "  ")
	fmt.Println(string(out))
	return nil
}

func buildInterpreter(provider, model string) (interpreter.Client, error) {
	switch provider {
	case "", "stub":
		return stubInterpreter{}, nil
	case "anthropic":
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("alfredctl: ANTHROPIC_API_KEY is required for --provider anthropic")
		}
		if model == "" {
			model = "claude-3-5-sonnet-latest"
		}
		return anthropicx.NewFromAPIKey(apiKey, model)
	default:
		return nil, fmt.Errorf("alfredctl: unknown provider %q", provider)
	}
}

// memConversations and memRegistries are minimal single-process
// implementations of conversation.Store / turn.RegistryStore, enough for
// the CLI's one-shot-per-invocation usage; a long-running service wires
// sqlitestore/mongostore instead.
type memConversations struct {
	convs map[string]conversation.Conversation
}

func (m memConversations) Create(_ context.Context, userID string, createdAt time.Time) (conversation.Conversation, error) {
	if c, ok := m.convs[userID]; ok {
		return c, nil
	}
	c := conversation.Conversation{UserID: userID, CreatedAt: createdAt}
	m.convs[userID] = c
	return c, nil
}

func (m memConversations) Load(_ context.Context, userID string) (conversation.Conversation, error) {
	c, ok := m.convs[userID]
	if !ok {
		return conversation.Conversation{}, conversation.ErrNotFound
	}
	return c, nil
}

func (m memConversations) AppendTurn(_ context.Context, userID string, t conversation.Turn, evicted []conversation.Turn, newHistorySummary string) error {
	c := m.convs[userID]
	c.Recent = append(c.Recent[len(evicted):], t)
	c.HistorySummary = newHistorySummary
	c.TurnCount++
	m.convs[userID] = c
	return nil
}

type memRegistries struct {
	reg *registry.SessionIdRegistry
}

func (m memRegistries) Load(_ context.Context, _ string) (*registry.SessionIdRegistry, error) {
	return m.reg, nil
}

func (m memRegistries) Save(_ context.Context, _ string, _ *registry.SessionIdRegistry) error {
	return nil
}
