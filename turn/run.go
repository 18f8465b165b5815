package turn

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/jv92admin/alfred/conversation"
	"github.com/jv92admin/alfred/job"
	"github.com/jv92admin/alfred/node"
	"github.com/jv92admin/alfred/registry"
	"github.com/jv92admin/alfred/step"
)

// Lock serializes turns for the same user: RunTurn must hold it for the
// turn's duration so two concurrent requests never race on one user's
// registry/conversation/session-constraints state.
type Lock interface {
	Acquire(ctx context.Context, userID string) (release func(), err error)
}

// Dependencies bundles everything RunTurn needs beyond the per-turn
// Workflow: durable stores, the lock and the event sink. The turn id is
// not allocated here: RunTurn takes the conversation's turn count plus one.
type Dependencies struct {
	Jobs          job.Store
	Conversations conversation.Store
	Registries    RegistryStore
	Lock          Lock
	Sink          EventSink
}

// RegistryStore persists one SessionIdRegistry snapshot per user, the
// counterpart to conversation.Store for entity state (spec.md §3).
type RegistryStore interface {
	Load(ctx context.Context, userID string) (*registry.SessionIdRegistry, error)
	Save(ctx context.Context, userID string, reg *registry.SessionIdRegistry) error
}

// Request is RunTurn's input (spec.md §6).
type Request struct {
	UserID      string
	UserMessage string
	Mode        Mode
	UIChanges   []UIChange
}

// Result is RunTurn's synchronous return value. Streaming progress, if a
// caller wants it, arrives on Dependencies.Sink rather than here.
type Result struct {
	Response      string
	ActiveContext node.Output
	JobID         string
}

// RunTurn is the module's single entry point (spec.md §6): it registers a
// durable job, serializes on the user's lock, loads registry/conversation
// state, drives the Workflow through its five phases, and persists
// everything the turn touched before returning.
func RunTurn(ctx context.Context, w *Workflow, deps Dependencies, req Request) (Result, error) {
	if req.Mode == ModeCook || req.Mode == ModeBrainstorm {
		return Result{}, fmt.Errorf("turn: mode %q is not supported", req.Mode)
	}
	sink := deps.Sink
	if sink == nil {
		sink = NoopSink{}
	}

	jobID := newJobID(req.UserID)
	input, _ := json.Marshal(req)
	now := time.Now()
	if err := deps.Jobs.Create(ctx, job.Job{ID: jobID, UserID: req.UserID, Status: job.StatusPending, Input: input, CreatedAt: now}); err != nil {
		return Result{}, fmt.Errorf("turn: create job: %w", err)
	}
	sink.Publish(Event{Kind: EventJobStarted, JobID: jobID, Data: mustJSON(map[string]string{"user_id": req.UserID})})

	release, err := deps.Lock.Acquire(ctx, req.UserID)
	if err != nil {
		_, _ = job.Fail(ctx, deps.Jobs, jobID, "lock acquisition failed: "+err.Error(), time.Now())
		return Result{}, fmt.Errorf("turn: acquire lock: %w", err)
	}
	defer release()

	if _, err := job.Start(ctx, deps.Jobs, jobID, time.Now()); err != nil {
		return Result{}, fmt.Errorf("turn: start job: %w", err)
	}

	reg, err := deps.Registries.Load(ctx, req.UserID)
	if err != nil {
		_, _ = job.Fail(ctx, deps.Jobs, jobID, "registry load failed: "+err.Error(), time.Now())
		return Result{}, fmt.Errorf("turn: load registry: %w", err)
	}
	conv, err := deps.Conversations.Create(ctx, req.UserID, time.Now())
	if err != nil {
		_, _ = job.Fail(ctx, deps.Jobs, jobID, "conversation load failed: "+err.Error(), time.Now())
		return Result{}, fmt.Errorf("turn: load conversation: %w", err)
	}

	ApplyUIChanges(reg, req.UIChanges)

	turnID := conv.TurnCount + 1
	state := NewState(req.UserID, turnID, req.Mode, req.UserMessage, req.UIChanges, reg, conv, jobID)
	turnDeadline := w.Config.TurnDeadline
	if turnDeadline <= 0 {
		turnDeadline = 90 * time.Second
	}
	state.Deadline = now.Add(turnDeadline)

	sink.Publish(Event{Kind: EventActiveContext, JobID: jobID, TurnID: turnID, Data: mustJSON(state.UserMessage)})

	state, runErr := w.Run(ctx, state)
	if runErr != nil {
		_, _ = job.Fail(ctx, deps.Jobs, jobID, runErr.Error(), time.Now())
		sink.Publish(Event{Kind: EventError, JobID: jobID, TurnID: turnID, Data: mustJSON(runErr.Error())})
		return Result{}, runErr
	}

	created, updated, deleted, genRefs, savedRefs := classifyRefs(reg)
	convSummary := toConversationSummary(state.SummarizeOutput, toolNamesFrom(state.ActOutputs), created, updated, deleted, genRefs, savedRefs)

	turnRecord := conversation.Turn{
		TurnID:            strconv.Itoa(turnID),
		UserMessage:       req.UserMessage,
		AssistantResponse: state.ReplyOutput.Message,
		AssistantSummary:  assistantSummaryText(state.SummarizeOutput),
		ExecutionSummary:  convSummary,
		CreatedAt:         time.Now(),
	}
	_, evicted := conversation.Window(conv, turnRecord, w.Config.FullDetailTurns)
	newSummary := compactHistory(conv.HistorySummary, evicted)
	if err := deps.Conversations.AppendTurn(ctx, req.UserID, turnRecord, evicted, newSummary); err != nil {
		_, _ = job.Fail(ctx, deps.Jobs, jobID, "append turn failed: "+err.Error(), time.Now())
		return Result{}, fmt.Errorf("turn: append turn: %w", err)
	}

	if err := deps.Registries.Save(ctx, req.UserID, reg); err != nil {
		_, _ = job.Fail(ctx, deps.Jobs, jobID, "registry save failed: "+err.Error(), time.Now())
		return Result{}, fmt.Errorf("turn: save registry: %w", err)
	}

	output, _ := json.Marshal(state.ReplyOutput)
	if _, err := job.Complete(ctx, deps.Jobs, jobID, output, time.Now()); err != nil {
		return Result{}, fmt.Errorf("turn: complete job: %w", err)
	}
	sink.Publish(Event{Kind: EventDone, JobID: jobID, TurnID: turnID, Data: output})

	return Result{Response: state.ReplyOutput.Message, ActiveContext: state.UnderstandOutput, JobID: jobID}, nil
}

func newJobID(userID string) string {
	return "alfred-turn-" + userID + "-" + strconv.FormatInt(time.Now().UnixNano(), 36)
}

// classifyRefs walks the registry's last-action ledger once, splitting refs
// into the per-action ID lists conversation.ExecutionSummary carries.
func classifyRefs(reg *registry.SessionIdRegistry) (created, updated, deleted, generated, saved []string) {
	for _, ref := range reg.AllRefs() {
		action, ok := reg.LastAction(ref)
		if !ok {
			continue
		}
		switch action {
		case registry.ActionCreated:
			created = append(created, string(ref))
		case registry.ActionUpdated:
			updated = append(updated, string(ref))
		case registry.ActionDeleted:
			deleted = append(deleted, string(ref))
		case registry.ActionGenerated:
			generated = append(generated, string(ref))
			if reg.IsPromoted(ref) {
				saved = append(saved, string(ref))
			}
		}
	}
	return
}

// toolNamesFrom approximates the turn's ToolsCalled ledger from the step
// types actually executed; step.Result does not retain the exact tool name
// dispatched per call, only its aggregate records/artifacts, so step type
// ("read"/"write"/"analyze"/"generate") stands in for it.
func toolNamesFrom(results []*step.Result) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range results {
		if r == nil {
			continue
		}
		name := string(r.StepType)
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

// compactHistory folds evicted full-detail turns into the narrative tail
// without another interpreter call: it is a plain textual fold, not a
// re-summarization, since AssistantSummary was already written by Summarize
// at turn-commit time and needs no further compression here.
func compactHistory(existing string, evicted []conversation.Turn) string {
	if len(evicted) == 0 {
		return existing
	}
	out := existing
	for _, t := range evicted {
		if out != "" {
			out += " "
		}
		out += t.AssistantSummary
	}
	return out
}
