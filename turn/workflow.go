package turn

import (
	"context"
	"fmt"

	"github.com/jv92admin/alfred/config"
	"github.com/jv92admin/alfred/interpreter"
	"github.com/jv92admin/alfred/node"
	"github.com/jv92admin/alfred/quick"
	"github.com/jv92admin/alfred/registry"
	"github.com/jv92admin/alfred/step"
	"github.com/jv92admin/alfred/telemetry"
)

// Workflow holds everything the five-phase turn machine needs to run one
// turn: the interpreter, the step executor/store, and the ambient config and
// telemetry facade. It carries no per-turn state itself — AlfredState does.
type Workflow struct {
	Interp    interpreter.Client
	StepExec  *step.Executor
	StepStore *step.Store
	Quick     *quick.Executor
	Config    config.Config
	Telemetry telemetry.Facade

	// SchemaDocs optionally supplies a compiled-schema text slice per
	// step.Type, for the Act prompt's "## Schema" section. Nil is fine: the
	// prompt then states no schema is registered.
	SchemaDocs map[string]string

	// Constraints is this user's cross-turn planning state (spec.md §3's
	// session-level data, outside any single AlfredState). Callers load it
	// before Run and persist it after.
	Constraints *node.SessionConstraints
}

// Run drives one turn through Understand -> Think -> Act -> Reply ->
// Summarize, with the QuickAct bypass between Understand and Reply. It
// mutates s in place and returns it for convenience.
func (w *Workflow) Run(ctx context.Context, s *AlfredState) (*AlfredState, error) {
	layers := w.buildLayers(s)

	if err := w.runUnderstand(ctx, s, layers); err != nil {
		return s, err
	}
	if s.UnderstandOutput.NeedsDisambiguation {
		s.ReplyOutput = node.ReplyOutput{Message: disambiguationMessage(s.UnderstandOutput.DisambiguationOptions)}
		s.Terminal = true
		s.TerminalReason = "needs_disambiguation"
		w.runSummarize(ctx, s, nil)
		return s, nil
	}

	applyEntityCuration(s.SessionRegistry, s.UnderstandOutput.EntityCuration)

	quickRan, err := w.tryQuickAct(ctx, s, layers)
	if err != nil {
		return s, err
	}

	if !quickRan {
		if err := w.runThinkAndAct(ctx, s, layers); err != nil {
			return s, err
		}
		if s.Terminal {
			w.runSummarize(ctx, s, s.ActOutputs)
			return s, nil
		}
	}

	if err := w.runReply(ctx, s, layers); err != nil {
		return s, err
	}
	w.runSummarize(ctx, s, s.ActOutputs)
	return s, nil
}

func (w *Workflow) runUnderstand(ctx context.Context, s *AlfredState, layers contextLayers) error {
	end := w.telemetryPhase(ctx, "understand", s.TurnID)
	system, user, err := w.understandPrompt(s, layers)
	if err != nil {
		end(err)
		return err
	}
	out, err := node.Understand(ctx, w.Interp, system, user, w.cfgFor(0))
	s.UnderstandOutput = out
	end(err)
	// Understand errors already carry a usable fallback Output; the turn
	// proceeds on the fallback rather than aborting.
	return nil
}

// tryQuickAct runs QuickAct when Understand's classification clears the
// confidence floor (possibly after a veto check at medium confidence).
// Returns true if QuickAct produced the turn's final act output; false means
// the caller must run the full Think/Act path.
func (w *Workflow) tryQuickAct(ctx context.Context, s *AlfredState, layers contextLayers) (bool, error) {
	if !s.UnderstandOutput.QuickMode || w.Quick == nil {
		return false, nil
	}
	conf := s.UnderstandOutput.QuickModeConfidence
	floor := node.Confidence(w.Config.QuickModeConfidenceFloor)
	if conf != node.ConfidenceHigh && conf != floor {
		return false, nil
	}
	if conf != node.ConfidenceHigh {
		veto, err := node.VetoQuick(ctx, w.Interp, "Second opinion: is this really a single trivial read?", s.UnderstandOutput.ProcessedMessage, w.cfgFor(0))
		if err != nil {
			return false, nil
		}
		if veto.Veto {
			return false, nil
		}
	}

	end := w.telemetryPhase(ctx, "quick_act", s.TurnID)
	res := w.Quick.Run(ctx, quick.Request{
		System: "Answer with exactly one db_read tool call for: " + s.UnderstandOutput.ProcessedMessage,
		User:   s.UserMessage,
		Config: w.cfgFor(0),
	})
	end(nil)
	if !res.OK {
		return false, nil // Fallback: route onto the planned path.
	}

	s.ActOutputs = []*step.Result{{
		StepID:   "quick",
		StepType: step.TypeRead,
		Records:  recordsFromRows(res.Rows),
		Summary:  fmt.Sprintf("quick read returned %d row(s)", len(res.Rows)),
	}}
	return true, nil
}

func (w *Workflow) runThinkAndAct(ctx context.Context, s *AlfredState, layers contextLayers) error {
	end := w.telemetryPhase(ctx, "think", s.TurnID)
	system, user, err := w.thinkPrompt(s, layers)
	if err != nil {
		end(err)
		return err
	}
	if w.Constraints == nil {
		w.Constraints = &node.SessionConstraints{}
	}
	out, err := node.Think(ctx, w.Interp, w.Constraints, s.UnderstandOutput.ConstraintSnapshot, system, user, w.cfgFor(0))
	end(err)
	if err != nil {
		return err
	}
	s.ThinkOutput = out

	switch out.Kind {
	case node.ThinkPropose:
		s.ReplyOutput = node.ReplyOutput{Message: out.ProposalMessage}
		s.Terminal = true
		s.TerminalReason = "propose"
		return nil
	case node.ThinkClarify:
		s.ReplyOutput = node.ReplyOutput{Message: clarificationMessage(out.ClarificationQuestions)}
		s.Terminal = true
		s.TerminalReason = "clarify"
		return nil
	}

	steps := out.Steps
	if len(steps) > w.Config.MaxStepsPlan {
		steps = steps[:w.Config.MaxStepsPlan]
	}
	s.Steps = steps

	actEnd := w.telemetryPhase(ctx, "act", s.TurnID)
	results, err := node.RunAct(ctx, w.StepExec, w.StepStore, s.TurnID, steps, w.actPrompt(s))
	actEnd(err)
	if err != nil {
		return err
	}
	s.ActOutputs = results
	for _, r := range results {
		s.StepResults[r.StepID] = r
	}
	return nil
}

func (w *Workflow) runReply(ctx context.Context, s *AlfredState, layers contextLayers) error {
	end := w.telemetryPhase(ctx, "reply", s.TurnID)
	system, user, err := w.replyPrompt(s, layers)
	if err != nil {
		end(err)
		return err
	}
	out, err := node.Reply(ctx, w.Interp, system, user, w.cfgFor(0))
	s.ReplyOutput = out
	end(err)
	return nil
}

func (w *Workflow) runSummarize(ctx context.Context, s *AlfredState, executed []*step.Result) {
	end := w.telemetryPhase(ctx, "summarize", s.TurnID)
	sum := &node.Summarize{Reg: s.SessionRegistry}
	toolCalls := 0
	var errs []string
	for _, r := range executed {
		if r == nil {
			continue
		}
		toolCalls += len(r.Records) + len(r.Artifacts)
		if r.Blocked {
			errs = append(errs, fmt.Sprintf("%s: %s (%s)", r.StepID, r.BlockedReason, r.BlockedCode))
		}
	}
	s.SummarizeOutput = sum.Build(len(s.Steps), len(executed), toolCalls, errs)
	sum.EvictPendingArtifacts(s.TurnID)
	end(nil)
}

func (w *Workflow) cfgFor(maxTokens int) interpreter.Config {
	cfg := interpreter.Config{MaxTokens: maxTokens}
	return cfg
}

func (w *Workflow) telemetryPhase(ctx context.Context, phase string, turnID int) func(error) {
	_, end := w.Telemetry.PhaseStart(ctx, phase, turnID)
	return end
}

func applyEntityCuration(reg *registry.SessionIdRegistry, c node.EntityCuration) {
	if c.ClearAll {
		for _, ref := range reg.AllRefs() {
			reg.Drop(ref)
		}
		return
	}
	for _, ref := range c.DropRefs {
		reg.Drop(ref)
	}
	for _, r := range c.RetainRefs {
		reg.Retain(r.Ref, r.Reason)
	}
}

func disambiguationMessage(options []string) string {
	if len(options) == 0 {
		return "I need a bit more detail before I can continue — could you clarify which one you mean?"
	}
	msg := "I need a bit more detail before I can continue. Did you mean:"
	for _, o := range options {
		msg += "\n- " + o
	}
	return msg
}

func clarificationMessage(questions []string) string {
	if len(questions) == 0 {
		return "Could you clarify what you'd like me to do?"
	}
	msg := questions[0]
	for _, q := range questions[1:] {
		msg += "\n" + q
	}
	return msg
}

func recordsFromRows(rows []map[string]any) []registry.Record {
	out := make([]registry.Record, len(rows))
	for i, r := range rows {
		out[i] = registry.Record(r)
	}
	return out
}
