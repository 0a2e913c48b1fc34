package provider

import (
	"context"
	"encoding/json"

	"activityplanner/internal/domain"
)

const (
	openAIBase  = "https://api.openai.com/v1"
	openAIModel = "gpt-4o-mini"
)

// OpenAI talks to any chat-completions compatible API.
type OpenAI struct {
	ep    *endpoint
	model string
}

func NewOpenAI(opts Options) *OpenAI {
	if opts.Name == "" {
		opts.Name = "openai"
	}
	headers := map[string]string{}
	if opts.APIKey != "" {
		headers["Authorization"] = "Bearer " + opts.APIKey
	}
	return &OpenAI{
		ep:    newEndpoint(opts, openAIBase, headers),
		model: firstNonEmpty(opts.Model, openAIModel),
	}
}

func (o *OpenAI) Name() string { return o.ep.name }

type completionRequest struct {
	Model       string              `json:"model"`
	Messages    []completionMessage `json:"messages"`
	Tools       []completionTool    `json:"tools,omitempty"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Temperature *float64            `json:"temperature,omitempty"`
}

type completionMessage struct {
	Role       string               `json:"role"`
	Content    string               `json:"content"`
	ToolCalls  []completionToolCall `json:"tool_calls,omitempty"`
	ToolCallID string               `json:"tool_call_id,omitempty"`
	Name       string               `json:"name,omitempty"`
}

type completionTool struct {
	Type     string             `json:"type"`
	Function completionFunction `json:"function"`
}

type completionFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	Arguments   string         `json:"arguments,omitempty"` // JSON text on calls
}

type completionToolCall struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function completionFunction `json:"function"`
}

type completionResponse struct {
	Choices []struct {
		Message      completionMessage `json:"message"`
		FinishReason string            `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (o *OpenAI) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	body := completionRequest{
		Model:     firstNonEmpty(req.Model, o.model),
		Messages:  toCompletionMessages(req.System, req.Messages),
		MaxTokens: req.MaxTokens,
	}
	if req.Temperature > 0 {
		body.Temperature = &req.Temperature
	}
	for _, t := range req.Tools {
		body.Tools = append(body.Tools, completionTool{
			Type:     "function",
			Function: completionFunction{Name: t.Name, Description: t.Description, Parameters: t.Parameters},
		})
	}

	var resp completionResponse
	if err := o.ep.post(ctx, "/chat/completions", body, &resp); err != nil {
		return nil, err
	}

	out := &domain.ChatResponse{
		StopReason:   "stop",
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	if len(resp.Choices) == 0 {
		return out, nil
	}
	choice := resp.Choices[0]
	out.Content = choice.Message.Content
	out.StopReason = choice.FinishReason
	for _, tc := range choice.Message.ToolCalls {
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil || args == nil {
				args = map[string]any{}
			}
		}
		out.ToolCalls = append(out.ToolCalls, domain.ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: args})
	}
	return out, nil
}

func toCompletionMessages(system string, msgs []domain.Message) []completionMessage {
	out := make([]completionMessage, 0, len(msgs)+1)
	if system != "" {
		out = append(out, completionMessage{Role: "system", Content: system})
	}
	for _, m := range msgs {
		cm := completionMessage{Role: m.Role, Content: m.Content, ToolCallID: m.ToolCallID}
		if m.Role == "tool" {
			cm.Name = m.ToolName
		}
		for _, tc := range m.ToolCalls {
			args, err := json.Marshal(tc.Arguments)
			if err != nil || tc.Arguments == nil {
				args = []byte("{}")
			}
			cm.ToolCalls = append(cm.ToolCalls, completionToolCall{
				ID:       tc.ID,
				Type:     "function",
				Function: completionFunction{Name: tc.Name, Arguments: string(args)},
			})
		}
		out = append(out, cm)
	}
	return out
}
