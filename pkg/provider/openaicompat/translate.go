package openaicompat

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/openai/openai-go/v3"

	"github.com/rhuss/analyst/pkg/conversation"
	"github.com/rhuss/analyst/pkg/provider"
)

// translateRequest converts a provider request into Chat Completions params.
// Structured tool content is sent as its JSON encoding.
func translateRequest(req *provider.Request, maxTokens int) (openai.ChatCompletionNewParams, error) {
	params := openai.ChatCompletionNewParams{
		Model: req.Model,
	}

	if req.System != "" {
		params.Messages = append(params.Messages, openai.SystemMessage(req.System))
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case provider.RoleAssistant:
			m := openai.AssistantMessage(msg.ContentText())
			for _, call := range msg.ToolCalls {
				m.OfAssistant.ToolCalls = append(m.OfAssistant.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: call.ID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      call.Name,
							Arguments: call.Arguments,
						},
					},
				})
			}
			params.Messages = append(params.Messages, m)
		case provider.RoleTool:
			params.Messages = append(params.Messages, openai.ToolMessage(msg.ContentText(), msg.ToolCallID))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(msg.ContentText()))
		}
	}

	for _, t := range req.Tools {
		fn := openai.FunctionDefinitionParam{Name: t.Name}
		if t.Description != "" {
			fn.Description = openai.String(t.Description)
		}
		if len(t.Parameters) > 0 {
			var schema openai.FunctionParameters
			if err := json.Unmarshal(t.Parameters, &schema); err != nil {
				return params, fmt.Errorf("tool %q: invalid parameter schema: %w", t.Name, err)
			}
			fn.Parameters = schema
		}
		params.Tools = append(params.Tools, openai.ChatCompletionToolUnionParam{
			OfFunction: &openai.ChatCompletionFunctionToolParam{Function: fn},
		})
	}

	if n := req.MaxTokens; n > 0 {
		params.MaxTokens = openai.Int(int64(n))
	} else if maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(maxTokens))
	}

	return params, nil
}

// translateResponse converts the first choice into an assistant message.
func translateResponse(completion *openai.ChatCompletion) (*provider.Response, error) {
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("openai chat completion: backend returned no choices")
	}
	choice := completion.Choices[0]

	var calls []conversation.ToolCall
	for _, tc := range choice.Message.ToolCalls {
		id := tc.ID
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		calls = append(calls, conversation.ToolCall{
			ID:        id,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	return &provider.Response{
		Message:    conversation.Assistant(choice.Message.Content, calls...),
		Model:      completion.Model,
		StopReason: string(choice.FinishReason),
		Usage: provider.Usage{
			InputTokens:  int(completion.Usage.PromptTokens),
			OutputTokens: int(completion.Usage.CompletionTokens),
		},
	}, nil
}
