// Package interpreter defines the narrow, pluggable contract the core uses
// to talk to an LLM. The interpreter is an external collaborator: the core
// never assumes a specific provider, only that it can answer a system/user
// prompt pair with a response shaped to a declared JSON schema.
package interpreter

import (
	"context"
	"encoding/json"
	"fmt"
)

// ResponseShape names the structural contract the interpreter's answer must
// satisfy. Nodes declare the shape they expect; provider adapters are
// responsible for whatever provider-specific mechanism (tool-forcing,
// response_format, structured generation) makes the model honor it.
type ResponseShape struct {
	// Name identifies the shape for logging/telemetry, e.g. "act_decision".
	Name string
	// Schema is the compiled JSON Schema document the response must satisfy.
	Schema json.RawMessage
}

// Config carries per-call model parameters. Providers map these onto their
// own request types; unsupported fields are ignored rather than rejected so
// callers can share one Config across providers.
type Config struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// Request is one interpreter call.
type Request struct {
	System string
	User   string
	Shape  ResponseShape
	Config Config
}

// Response is the interpreter's raw structured answer. JSON is the raw
// response text; callers validate and decode it against Shape.Schema
// themselves (package node owns per-node decode logic) so this package has
// no knowledge of node-specific output types.
type Response struct {
	JSON  string
	Usage TokenUsage
}

// TokenUsage reports provider-reported token counts, when available.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
}

// Client is the full interpreter contract: call(system, user, response_shape,
// config) -> structured. Any other capability (streaming, cancellation)
// rides on this interface rather than widening it.
type Client interface {
	Call(ctx context.Context, req Request) (Response, error)
}

// Unavailable wraps a provider failure that should not be retried blindly by
// the Act loop (surfaces as INTERPRETER_TIMEOUT / a fatal turn abort).
type Unavailable struct {
	Provider string
	Cause    error
}

func (e *Unavailable) Error() string {
	return fmt.Sprintf("interpreter %s unavailable: %v", e.Provider, e.Cause)
}

func (e *Unavailable) Unwrap() error { return e.Cause }
