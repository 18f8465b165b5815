package node

import (
	"context"
	"fmt"

	"github.com/jv92admin/alfred/interpreter"
)

// EntityStatus labels how a referenced entity relates to durable storage,
// the distinction Reply must always surface rather than blur.
type EntityStatus string

const (
	StatusSaved             EntityStatus = "saved"
	StatusGeneratedNotSaved  EntityStatus = "generated but not yet saved"
	StatusSimplifiedFromSource EntityStatus = "simplified from source"
)

// NextStep is Reply's single suggested follow-on action, sourced only from
// committed state or pending artifacts — never invented.
type NextStep struct {
	Description string `json:"description"`
	Ref         string `json:"ref,omitempty"`
}

// ReplyOutput is what Reply renders for the user.
type ReplyOutput struct {
	Message  string     `json:"message"`
	NextStep *NextStep  `json:"next_step,omitempty"`
}

var replyShape = interpreter.ResponseShape{
	Name: "reply_output",
	Schema: []byte(`{"type": "object", "required": ["message"], "properties": {"message": {"type": "string"}}}`),
}

// Reply renders the turn's outcome. It attributes authority to state, never
// to the persona, never reconciles a discrepancy between what Think intended
// and what Act actually committed — it surfaces it instead, by construction:
// the prompt passed in must already describe only what happened, not what
// was meant to happen.
func Reply(ctx context.Context, interp interpreter.Client, system, user string, cfg interpreter.Config) (ReplyOutput, error) {
	resp, err := interp.Call(ctx, interpreter.Request{System: system, User: user, Shape: replyShape, Config: cfg})
	if err != nil {
		return ReplyOutput{Message: "Something went wrong finishing this turn; your prior state is unaffected."}, fmt.Errorf("reply call failed: %w", err)
	}
	var out ReplyOutput
	if err := decodeJSON(resp.JSON, &out); err != nil {
		return ReplyOutput{Message: "Something went wrong rendering this turn's result."}, fmt.Errorf("VALIDATION_ERROR: malformed reply output: %w", err)
	}
	return out, nil
}
