// OpenAI-compatible LLM provider built on the official openai-go client.
// Works against Ollama, vLLM, OpenAI, OpenRouter and DeepSeek endpoints.

package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Options configure an OpenAIProvider.
type Options struct {
	ProviderName string
	APIKey       string
	APIBase      string
	Model        string
	MaxTokens    int
	Temperature  float64
	Timeout      time.Duration
	MaxRetries   int
}

// OpenAIProvider is an OpenAI-compatible LLM provider.
type OpenAIProvider struct {
	client openai.Client
	opts   Options
	spec   *ProviderSpec
}

// NewOpenAIProvider creates a provider, resolving base URL, key and default
// model from the matching ProviderSpec when they are not given.
func NewOpenAIProvider(opts Options) *OpenAIProvider {
	spec := Detect(opts.ProviderName, opts.APIKey, opts.APIBase, opts.Model)
	if spec == nil {
		spec = Providers[0]
	}
	opts.APIKey, opts.APIBase = spec.ResolveEndpoint(opts.APIKey, opts.APIBase)
	if opts.Model == "" {
		opts.Model = spec.DefaultModel
	}
	if opts.MaxTokens < 1 {
		opts.MaxTokens = 1024
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}

	reqOpts := []option.RequestOption{
		option.WithBaseURL(opts.APIBase),
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(opts.MaxRetries),
		option.WithRequestTimeout(opts.Timeout),
	}
	return &OpenAIProvider{
		client: openai.NewClient(reqOpts...),
		opts:   opts,
		spec:   spec,
	}
}

// DefaultModel satisfies the LLMProvider interface.
func (p *OpenAIProvider) DefaultModel() string { return p.opts.Model }

// Spec returns the provider metadata this client resolved to.
func (p *OpenAIProvider) Spec() *ProviderSpec { return p.spec }

// Chat sends a chat completion request.
func (p *OpenAIProvider) Chat(ctx context.Context, req ChatRequest) (*LLMResponse, error) {
	params := p.buildParams(req)

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("llm %s (HTTP %d): %w", p.spec.Name, apiErr.StatusCode, err)
		}
		return nil, fmt.Errorf("llm %s: %w", p.spec.Name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("llm: no choices in response")
	}
	return toResponse(resp), nil
}

func (p *OpenAIProvider) buildParams(req ChatRequest) openai.ChatCompletionNewParams {
	model := req.Model
	if model == "" {
		model = p.opts.Model
	}
	maxTokens := req.MaxTokens
	if maxTokens < 1 {
		maxTokens = p.opts.MaxTokens
	}
	temp := req.Temperature
	if temp == 0 {
		temp = p.opts.Temperature
	}

	params := openai.ChatCompletionNewParams{
		Messages:  toMessages(req.Messages),
		Model:     model,
		MaxTokens: openai.Int(int64(maxTokens)),
	}
	if temp > 0 {
		params.Temperature = openai.Float(temp)
	}
	if len(req.Tools) > 0 {
		params.Tools = toTools(req.Tools)
	}
	return params
}

func toMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			if len(m.ToolCalls) == 0 {
				out = append(out, openai.AssistantMessage(m.Content))
				continue
			}
			calls := make([]openai.ChatCompletionMessageToolCallParam, len(m.ToolCalls))
			for i, tc := range m.ToolCalls {
				calls[i] = openai.ChatCompletionMessageToolCallParam{
					ID:   tc.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: rawArguments(tc),
					},
				}
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					Role:      "assistant",
					ToolCalls: calls,
				},
			})
		case RoleTool:
			out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// toTools converts ToSchema-style maps into SDK tool params.
func toTools(schemas []map[string]any) []openai.ChatCompletionToolParam {
	tools := make([]openai.ChatCompletionToolParam, 0, len(schemas))
	for _, s := range schemas {
		fn, ok := s["function"].(map[string]any)
		if !ok {
			continue
		}
		name, _ := fn["name"].(string)
		desc, _ := fn["description"].(string)
		params, _ := fn["parameters"].(map[string]any)
		tools = append(tools, openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        name,
				Description: openai.String(desc),
				Parameters:  params,
			},
		})
	}
	return tools
}

func rawArguments(tc ToolCallRequest) string {
	if tc.RawArguments != "" {
		return tc.RawArguments
	}
	if tc.Arguments == nil {
		return "{}"
	}
	data, err := json.Marshal(tc.Arguments)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func toResponse(resp *openai.ChatCompletion) *LLMResponse {
	choice := resp.Choices[0]
	msg := choice.Message

	var toolCalls []ToolCallRequest
	for _, tc := range msg.ToolCalls {
		var (
			args    map[string]any
			argsErr error
		)
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				argsErr = fmt.Errorf("arguments are not a JSON object: %w", err)
				args = nil
			}
		}
		id := tc.ID
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		toolCalls = append(toolCalls, ToolCallRequest{
			ID:           id,
			Name:         tc.Function.Name,
			Arguments:    args,
			RawArguments: tc.Function.Arguments,
			ArgumentsErr: argsErr,
		})
	}

	usage := map[string]int{
		"prompt_tokens":     int(resp.Usage.PromptTokens),
		"completion_tokens": int(resp.Usage.CompletionTokens),
		"total_tokens":      int(resp.Usage.TotalTokens),
	}

	finishReason := choice.FinishReason
	if finishReason == "" {
		finishReason = "stop"
	}

	content := msg.Content
	return &LLMResponse{
		Content:      &content,
		ToolCalls:    toolCalls,
		FinishReason: finishReason,
		Usage:        usage,
	}
}
