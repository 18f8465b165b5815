package step

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jv92admin/alfred/registry"
	"github.com/jv92admin/alfred/toolsx"
)

// toolArgs is the wire shape of Decision.ToolCall.Args: the flat superset of
// fields any of the four Tool-layer operations need. Unused fields for a
// given tool are simply absent.
type toolArgs struct {
	Table        string            `json:"table"`
	Filters      []toolsx.Filter   `json:"filters,omitempty"`
	Payload      registry.Record   `json:"payload,omitempty"`
	Payloads     []registry.Record `json:"payloads,omitempty"`
	OriginalRefs []registry.Ref    `json:"original_refs,omitempty"`
}

// dispatchTool decodes a tool_call decision's args and invokes the matching
// Tools method, normalizing every outcome to a toolsx.Result so the caller
// has one shape to branch on regardless of which of the four ops ran.
func dispatchTool(ctx context.Context, tools *toolsx.Tools, call *ToolCall) (toolsx.Result, error) {
	var args toolArgs
	if err := json.Unmarshal(call.Args, &args); err != nil {
		return toolsx.Result{}, &toolsx.Error{Code: toolsx.CodeValidationError, Message: fmt.Sprintf("malformed args for %s: %v", call.Tool, err)}
	}

	switch call.Tool {
	case "db_read":
		return tools.Read(ctx, args.Table, args.Filters), nil
	case "db_create":
		payloads := args.Payloads
		if payloads == nil && args.Payload != nil {
			payloads = []registry.Record{args.Payload}
		}
		return tools.Create(ctx, args.Table, payloads, args.OriginalRefs), nil
	case "db_update":
		return tools.Update(ctx, args.Table, args.Filters, args.Payload), nil
	case "db_delete":
		return tools.Delete(ctx, args.Table, args.Filters), nil
	default:
		return toolsx.Result{}, &toolsx.Error{Code: toolsx.CodeValidationError, Message: fmt.Sprintf("unknown tool %q", call.Tool)}
	}
}

// allowedTools enumerates the Tool-layer operations a step of the given type
// may invoke: read steps may only db_read, analyze and generate steps may
// invoke none, write steps may mutate.
func allowedTools(t Type) map[string]bool {
	switch t {
	case TypeRead:
		return map[string]bool{"db_read": true}
	case TypeWrite:
		return map[string]bool{"db_create": true, "db_update": true, "db_delete": true}
	default: // analyze, generate
		return map[string]bool{}
	}
}
