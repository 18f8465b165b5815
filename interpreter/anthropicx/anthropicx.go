// Package anthropicx implements interpreter.Client against Anthropic's
// Messages API.
//
// Grounded on the teacher's features/model/anthropic adapter, simplified
// away from that package's broad, multi-role model.Request/Response
// abstraction: this module only ever sends one system string and one user
// string per call and wants back one structured JSON document, so instead
// of mapping generic conversation parts it forces a single tool call whose
// input schema is the caller's declared ResponseShape — the model's answer
// IS the tool call's input.
package anthropicx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/jv92admin/alfred/interpreter"
)

const structuredToolName = "emit_structured"

// MessagesClient captures the subset of the Anthropic SDK used here, so
// tests can substitute a fake in place of *sdk.MessageService.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// Client adapts an Anthropic Messages client to interpreter.Client.
type Client struct {
	msg          MessagesClient
	defaultModel string
}

// New builds an anthropicx.Client. defaultModel is used whenever a call's
// Config.Model is empty.
func New(msg MessagesClient, defaultModel string) (*Client, error) {
	if msg == nil {
		return nil, errors.New("anthropicx: messages client is required")
	}
	if defaultModel == "" {
		return nil, errors.New("anthropicx: default model is required")
	}
	return &Client{msg: msg, defaultModel: defaultModel}, nil
}

// NewFromAPIKey builds a Client using the SDK's default HTTP transport.
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("anthropicx: api key is required")
	}
	ac := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&ac.Messages, defaultModel)
}

func (c *Client) Call(ctx context.Context, req interpreter.Request) (interpreter.Response, error) {
	modelID := req.Config.Model
	if modelID == "" {
		modelID = c.defaultModel
	}
	maxTokens := req.Config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	var schema map[string]any
	if len(req.Shape.Schema) > 0 {
		if err := json.Unmarshal(req.Shape.Schema, &schema); err != nil {
			return interpreter.Response{}, fmt.Errorf("anthropicx: decode response shape schema: %w", err)
		}
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(modelID),
		MaxTokens: int64(maxTokens),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(req.User)),
		},
		Tools: []sdk.ToolUnionParam{
			sdk.ToolUnionParamOfTool(sdk.ToolInputSchemaParam{ExtraFields: schema}, structuredToolName),
		},
		ToolChoice: sdk.ToolChoiceParamOfTool(structuredToolName),
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}
	if req.Config.Temperature > 0 {
		params.Temperature = sdk.Float(req.Config.Temperature)
	}

	msg, err := c.msg.New(ctx, params)
	if err != nil {
		return interpreter.Response{}, &interpreter.Unavailable{Provider: "anthropic", Cause: err}
	}

	for _, block := range msg.Content {
		if block.Type != "tool_use" || block.Name != structuredToolName {
			continue
		}
		raw, err := json.Marshal(block.Input)
		if err != nil {
			return interpreter.Response{}, fmt.Errorf("anthropicx: re-encode tool input: %w", err)
		}
		return interpreter.Response{
			JSON: string(raw),
			Usage: interpreter.TokenUsage{
				InputTokens:  int(msg.Usage.InputTokens),
				OutputTokens: int(msg.Usage.OutputTokens),
			},
		}, nil
	}
	return interpreter.Response{}, fmt.Errorf("anthropicx: model did not emit the %q tool call", structuredToolName)
}
