// Package bedrockx implements interpreter.Client against AWS Bedrock's
// Converse API.
//
// Grounded on the teacher's features/model/bedrock adapter: the same
// Converse-call shape and tool-schema encoding, narrowed to this module's
// single structured-answer contract by forcing the one tool the caller's
// ResponseShape describes, exactly as interpreter/anthropicx does for the
// Anthropic Messages API.
package bedrockx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/jv92admin/alfred/interpreter"
)

const structuredToolName = "emit_structured"

// RuntimeClient captures the Converse subset of the Bedrock runtime client.
type RuntimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Client adapts a Bedrock runtime client to interpreter.Client.
type Client struct {
	runtime      RuntimeClient
	defaultModel string
}

// New builds a bedrockx.Client. defaultModel is a Bedrock model/inference
// profile ARN or ID, used whenever a call's Config.Model is empty.
func New(runtime RuntimeClient, defaultModel string) (*Client, error) {
	if runtime == nil {
		return nil, errors.New("bedrockx: runtime client is required")
	}
	if defaultModel == "" {
		return nil, errors.New("bedrockx: default model is required")
	}
	return &Client{runtime: runtime, defaultModel: defaultModel}, nil
}

func (c *Client) Call(ctx context.Context, req interpreter.Request) (interpreter.Response, error) {
	modelID := req.Config.Model
	if modelID == "" {
		modelID = c.defaultModel
	}

	var schema map[string]any
	if len(req.Shape.Schema) > 0 {
		if err := json.Unmarshal(req.Shape.Schema, &schema); err != nil {
			return interpreter.Response{}, fmt.Errorf("bedrockx: decode response shape schema: %w", err)
		}
	}

	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(modelID),
		Messages: []brtypes.Message{
			{
				Role: brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberText{Value: req.User},
				},
			},
		},
		ToolConfig: &brtypes.ToolConfiguration{
			Tools: []brtypes.Tool{
				&brtypes.ToolMemberToolSpec{
					Value: brtypes.ToolSpecification{
						Name:        aws.String(structuredToolName),
						Description: aws.String("Emit the structured answer."),
						InputSchema: &brtypes.ToolInputSchemaMemberJson{
							Value: document.NewLazyDocument(schema),
						},
					},
				},
			},
			ToolChoice: &brtypes.ToolChoiceMemberTool{
				Value: brtypes.SpecificToolChoice{Name: aws.String(structuredToolName)},
			},
		},
	}
	if req.System != "" {
		input.System = []brtypes.SystemContentBlock{
			&brtypes.SystemContentBlockMemberText{Value: req.System},
		}
	}
	if req.Config.MaxTokens > 0 || req.Config.Temperature > 0 {
		cfg := &brtypes.InferenceConfiguration{}
		if req.Config.MaxTokens > 0 {
			cfg.MaxTokens = aws.Int32(int32(req.Config.MaxTokens))
		}
		if req.Config.Temperature > 0 {
			cfg.Temperature = aws.Float32(float32(req.Config.Temperature))
		}
		input.InferenceConfig = cfg
	}

	out, err := c.runtime.Converse(ctx, input)
	if err != nil {
		return interpreter.Response{}, &interpreter.Unavailable{Provider: "bedrock", Cause: err}
	}

	msgOutput, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return interpreter.Response{}, errors.New("bedrockx: converse response carried no message")
	}
	for _, block := range msgOutput.Value.Content {
		toolUse, ok := block.(*brtypes.ContentBlockMemberToolUse)
		if !ok || toolUse.Value.Name == nil || *toolUse.Value.Name != structuredToolName {
			continue
		}
		var payload any
		if err := toolUse.Value.Input.UnmarshalSmithyDocument(&payload); err != nil {
			return interpreter.Response{}, fmt.Errorf("bedrockx: decode tool input: %w", err)
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			return interpreter.Response{}, fmt.Errorf("bedrockx: re-encode tool input: %w", err)
		}
		usage := interpreter.TokenUsage{}
		if out.Usage != nil {
			usage.InputTokens = int(aws.ToInt32(out.Usage.InputTokens))
			usage.OutputTokens = int(aws.ToInt32(out.Usage.OutputTokens))
		}
		return interpreter.Response{JSON: string(raw), Usage: usage}, nil
	}
	return interpreter.Response{}, fmt.Errorf("bedrockx: model did not emit the %q tool call", structuredToolName)
}
