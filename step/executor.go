package step

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jv92admin/alfred/interpreter"
	"github.com/jv92admin/alfred/registry"
	"github.com/jv92admin/alfred/toolsx"
)

// PromptFunc builds the system/user prompt for one interpreter call inside a
// step. callIndex is zero-based within the step, so a prompt builder can
// include prior decisions/results made during this same step.
type PromptFunc func(ctx context.Context, st Step, callIndex int) (system, user string, err error)

// Executor runs the Act loop: repeatedly calling the interpreter with a
// step-scoped prompt and executing whatever it decides, until the step
// completes, blocks, or hits the tool-call cap.
type Executor struct {
	Tools   *toolsx.Tools
	Interp  interpreter.Client
	Reg     *registry.SessionIdRegistry
	Schemas *SchemaSet
	Policy  Policy // optional; narrows allowedTools(st.Type) further when set

	MaxToolCallsPerStep int // default 5
	GroupParallelism    int // default 4
	InterpreterConfig   interpreter.Config
}

func (e *Executor) maxToolCalls() int {
	if e.MaxToolCallsPerStep <= 0 {
		return 5
	}
	return e.MaxToolCallsPerStep
}

func (e *Executor) groupParallelism() int {
	if e.GroupParallelism <= 0 {
		return 4
	}
	return e.GroupParallelism
}

// decisionShape is the interpreter response shape every Act call declares.
var decisionShape = interpreter.ResponseShape{
	Name: "act_decision",
	Schema: []byte(`{
		"type": "object",
		"required": ["action"],
		"properties": {
			"action": {"enum": ["tool_call", "step_complete", "blocked"]},
			"tool": {"type": "string"},
			"args": {"type": "object"},
			"artifacts": {"type": "array"},
			"blocked_reason": {"type": "string"},
			"blocked_code": {"type": "string"}
		}
	}`),
}

// RunStep drives one step to completion, blocked, or cap-reached.
func (e *Executor) RunStep(ctx context.Context, turnID int, st Step, prompt PromptFunc) (*Result, error) {
	allowed := allowedTools(st.Type)
	if e.Policy != nil {
		allowed = e.Policy.Allowed(st.Type, allowed)
	}
	var manifest *BatchManifest
	if st.Batch {
		manifest = e.seedManifest(st)
	}
	result := &Result{StepID: st.ID, StepType: st.Type, Manifest: manifest}

	switch st.Type {
	case TypeAnalyze, TypeGenerate:
		// No tool calls permitted; a single interpreter call produces the
		// step's output directly.
		return e.runNoToolStep(ctx, st, prompt, result)
	}

	for call := 0; ; call++ {
		if call >= e.maxToolCalls() {
			result.Blocked = false
			result.Summary = fmt.Sprintf("%s: forcibly completed after %d tool calls", CodeCapReached, e.maxToolCalls())
			return result, nil
		}

		system, user, err := prompt(ctx, st, call)
		if err != nil {
			return nil, &Error{Code: CodeValidationError, StepID: st.ID, Message: "prompt assembly failed", Cause: err}
		}

		resp, err := e.Interp.Call(ctx, interpreter.Request{System: system, User: user, Shape: decisionShape, Config: e.InterpreterConfig})
		if err != nil {
			return nil, &Error{Code: CodeInterpreterTimeout, StepID: st.ID, Message: "interpreter call failed", Cause: err}
		}

		var decision Decision
		if err := decision.UnmarshalJSON([]byte(resp.JSON)); err != nil {
			return nil, &Error{Code: CodeValidationError, StepID: st.ID, Message: "malformed decision", Cause: err}
		}

		switch decision.Action {
		case ActionToolCall:
			if !allowed[decision.ToolCall.Tool] {
				return nil, &Error{Code: CodeValidationError, StepID: st.ID, Message: fmt.Sprintf("tool %q not permitted for step type %s", decision.ToolCall.Tool, st.Type)}
			}
			if e.Schemas != nil {
				if err := e.Schemas.Validate(decision.ToolCall.Tool, decision.ToolCall.Args); err != nil {
					continue // VALIDATION_ERROR: drop the call, let the next prompt carry a corrective hint
				}
			}
			res, execErr := e.execToolCallWithRetry(ctx, decision.ToolCall)
			if execErr != nil {
				return nil, &Error{Code: CodeValidationError, StepID: st.ID, Message: "tool execution failed", Cause: execErr}
			}
			applyResultToStep(result, manifest, decision.ToolCall, res)

		case ActionStepComplete:
			if manifest != nil && !manifest.Done() {
				// Refuse completion: soft failure, the loop continues so the
				// interpreter can see the outstanding items on the next call.
				continue
			}
			if st.Type == TypeGenerate {
				result.Artifacts = ArtifactRecords(decision.Artifacts)
				e.registerArtifacts(st, result)
			}
			return result, nil

		case ActionBlocked:
			result.Blocked = true
			result.BlockedReason = decision.BlockedReason
			result.BlockedCode = decision.BlockedCode
			return result, nil
		}
	}
}

// runNoToolStep handles analyze/generate steps, which never emit tool_call.
func (e *Executor) runNoToolStep(ctx context.Context, st Step, prompt PromptFunc, result *Result) (*Result, error) {
	system, user, err := prompt(ctx, st, 0)
	if err != nil {
		return nil, &Error{Code: CodeValidationError, StepID: st.ID, Message: "prompt assembly failed", Cause: err}
	}
	resp, err := e.Interp.Call(ctx, interpreter.Request{System: system, User: user, Shape: decisionShape, Config: e.InterpreterConfig})
	if err != nil {
		return nil, &Error{Code: CodeInterpreterTimeout, StepID: st.ID, Message: "interpreter call failed", Cause: err}
	}
	var decision Decision
	if err := decision.UnmarshalJSON([]byte(resp.JSON)); err != nil {
		return nil, &Error{Code: CodeValidationError, StepID: st.ID, Message: "malformed decision", Cause: err}
	}
	switch decision.Action {
	case ActionBlocked:
		result.Blocked = true
		result.BlockedReason = decision.BlockedReason
		result.BlockedCode = decision.BlockedCode
		return result, nil
	case ActionStepComplete:
		if st.Type == TypeGenerate {
			result.Artifacts = ArtifactRecords(decision.Artifacts)
			e.registerArtifacts(st, result)
		} else {
			result.Summary = fmt.Sprintf("%d analysis item(s)", len(decision.Artifacts))
		}
		return result, nil
	default:
		return nil, &Error{Code: CodeValidationError, StepID: st.ID, Message: fmt.Sprintf("%s step received unexpected action %q", st.Type, decision.Action)}
	}
}

// execToolCallWithRetry executes one tool call, retrying STORE_UNAVAILABLE up
// to twice with bounded exponential backoff. If retries are exhausted, the
// STORE_UNAVAILABLE Result is returned rather than an error, so the caller
// can mark the batch item failed and let the step complete; any other
// failure (dispatch-level error, a non-retryable *toolsx.Error) is returned
// as an error immediately.
func (e *Executor) execToolCallWithRetry(ctx context.Context, call *ToolCall) (toolsx.Result, error) {
	var result toolsx.Result
	var dispatchErr error
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	op := func() error {
		res, err := dispatchTool(ctx, e.Tools, call)
		if err != nil {
			dispatchErr = err
			return backoff.Permanent(err)
		}
		result = res
		if !res.OK && res.Code == toolsx.CodeStoreUnavailable {
			return fmt.Errorf("store unavailable: %s", res.Message)
		}
		return nil
	}
	if err := backoff.Retry(op, bo); err != nil && dispatchErr != nil {
		return toolsx.Result{}, dispatchErr
	}
	return result, nil
}

// registerArtifacts mints a "gen_*" pending artifact in the registry for
// each record a generate step produced, so later steps/prompts can reach the
// content through Registry.GetEntityData (the unified data-access API) and a
// subsequent write step can promote it via original_refs. The minted refs
// are recorded on result.IDs, the step-result field other steps consult.
func (e *Executor) registerArtifacts(st Step, result *Result) {
	for _, rec := range result.Artifacts {
		ref := e.Reg.RegisterGenerated(st.Subdomain, rec)
		result.IDs = append(result.IDs, ref)
	}
}

// seedManifest builds a batch step's manifest with one pending item per
// input ref, before the Act loop runs. Without this the manifest's Items
// stay empty, Done() is vacuously true, and step_complete is never refused
// for outstanding work (spec.md §3, §4.3 step 4).
func (e *Executor) seedManifest(st Step) *BatchManifest {
	m := &BatchManifest{StepID: st.ID, Total: len(st.Inputs)}
	for _, in := range st.Inputs {
		ref := registry.Ref(in)
		m.Items = append(m.Items, BatchItem{Ref: ref, Label: e.Reg.Label(ref), Status: ItemPending})
	}
	return m
}

func applyResultToStep(result *Result, manifest *BatchManifest, call *ToolCall, res toolsx.Result) {
	var args toolArgs
	_ = json.Unmarshal(call.Args, &args) // best effort: args already validated upstream

	if !res.OK {
		if manifest != nil {
			for _, ref := range args.OriginalRefs {
				manifest.MarkFailed(ref, res.Message)
			}
		}
		return
	}
	result.Records = append(result.Records, res.Rows...)
	result.IDs = append(result.IDs, res.Refs...)
	if manifest != nil {
		for i, ref := range args.OriginalRefs {
			if i < len(res.Refs) {
				manifest.MarkComplete(ref, res.Refs[i])
			}
		}
	}
}

// RunGroup executes every step in one plan group. Steps in the same group
// have no ordering dependency, so they are dispatched concurrently, bounded
// by GroupParallelism, and their results merged under a mutex before the
// next group begins.
func (e *Executor) RunGroup(ctx context.Context, turnID int, steps []Step, prompt PromptFunc) ([]*Result, error) {
	sem := make(chan struct{}, e.groupParallelism())
	var wg sync.WaitGroup
	var mu sync.Mutex
	results := make([]*Result, len(steps))
	errs := make([]error, len(steps))

	for i, st := range steps {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, st Step) {
			defer wg.Done()
			defer func() { <-sem }()
			res, err := e.RunStep(ctx, turnID, st, prompt)
			mu.Lock()
			results[i] = res
			errs[i] = err
			mu.Unlock()
		}(i, st)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// StepDeadline wraps ctx with the per-step deadline, used by the caller
// before invoking RunStep.
func StepDeadline(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d)
}
