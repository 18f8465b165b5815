// Package openaix implements interpreter.Client against the OpenAI Chat
// Completions API using the official github.com/openai/openai-go SDK.
//
// Grounded on the teacher's features/model/openai adapter (the same
// system/user -> chat completion shape), but built on the official SDK
// instead of the teacher's third-party go-openai dependency, and using
// OpenAI's native json_schema response_format for structured output
// instead of the teacher's generic tool-call translation — the closest
// match to this module's single-shape Call contract.
package openaix

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/jv92admin/alfred/interpreter"
)

// ChatClient captures the subset of the SDK used here.
type ChatClient interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Client adapts an OpenAI chat client to interpreter.Client.
type Client struct {
	chat         ChatClient
	defaultModel string
}

// New builds an openaix.Client.
func New(chat ChatClient, defaultModel string) (*Client, error) {
	if chat == nil {
		return nil, errors.New("openaix: chat client is required")
	}
	if defaultModel == "" {
		return nil, errors.New("openaix: default model is required")
	}
	return &Client{chat: chat, defaultModel: defaultModel}, nil
}

// NewFromAPIKey builds a Client using the SDK's default HTTP transport.
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("openaix: api key is required")
	}
	c := openai.NewClient(option.WithAPIKey(apiKey))
	return New(&c.Chat.Completions, defaultModel)
}

func (c *Client) Call(ctx context.Context, req interpreter.Request) (interpreter.Response, error) {
	modelID := req.Config.Model
	if modelID == "" {
		modelID = c.defaultModel
	}

	var schema any
	if len(req.Shape.Schema) > 0 {
		if err := json.Unmarshal(req.Shape.Schema, &schema); err != nil {
			return interpreter.Response{}, fmt.Errorf("openaix: decode response shape schema: %w", err)
		}
	}

	params := openai.ChatCompletionNewParams{
		Model: modelID,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.User),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   req.Shape.Name,
					Schema: schema,
					Strict: openai.Bool(true),
				},
			},
		},
	}
	if req.Config.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.Config.MaxTokens))
	}
	if req.Config.Temperature > 0 {
		params.Temperature = openai.Float(req.Config.Temperature)
	}

	resp, err := c.chat.New(ctx, params)
	if err != nil {
		return interpreter.Response{}, &interpreter.Unavailable{Provider: "openai", Cause: err}
	}
	if len(resp.Choices) == 0 {
		return interpreter.Response{}, errors.New("openaix: response contained no choices")
	}

	return interpreter.Response{
		JSON: resp.Choices[0].Message.Content,
		Usage: interpreter.TokenUsage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
		},
	}, nil
}
