// Package openai provides a model wrapper for the OpenAI Chat Completions API.
package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hupe1980/agenthost/core"
	"github.com/hupe1980/agenthost/model"
)

// Options configures the OpenAI model adapter (model id, temperature,
// completion token cap, API key). Extend via functional options to preserve
// stability.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	APIKey              string
}

// Model wraps the OpenAI Chat Completions API behind the generic model.Model interface.
type Model struct {
	client *openai.Client
	opts   Options
}

// NewModel creates a new OpenAI model using the official client.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := openai.NewClient(clientOpts...)

	return &Model{
		client: &client,
		opts:   opts,
	}
}

// NewModelFromClient creates a new OpenAI model from an existing client.
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{
		client: client,
		opts:   opts,
	}
}

func defaultOptions() Options {
	return Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
}

// Generate implements unified streaming / non-streaming generation.
// It adapts the Chat Completions API (with tool calling) into model.Response events.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		params := openai.ChatCompletionNewParams{
			Model:               m.opts.Model,
			Messages:            m.buildMessages(req.Instructions, req.Contents),
			Temperature:         openai.Float(m.opts.Temperature),
			MaxCompletionTokens: openai.Int(m.opts.MaxCompletionTokens),
		}

		if len(req.Tools) > 0 {
			params.Tools = m.buildTools(req.Tools)
		}

		if req.Stream {
			// Usage arrives as a trailing chunk when opted in.
			params.StreamOptions = openai.ChatCompletionStreamOptionsParam{
				IncludeUsage: openai.Bool(true),
			}
			m.handleStreaming(ctx, params, out, errCh)
			return
		}
		m.handleNonStreaming(ctx, params, out, errCh)
	}()

	return out, errCh
}

// toolCallDraft accumulates the partial tool call deltas of one choice index
// until the stream completes.
type toolCallDraft struct {
	id   string
	name string
	args strings.Builder
}

// handleStreaming consumes the Chat Completions streaming API, forwarding
// text and tool-call deltas as partial responses and emitting one final
// response (with usage, when reported) after the stream drains.
func (m *Model) handleStreaming(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	stream := m.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	var (
		text         strings.Builder
		drafts       = map[int64]*toolCallDraft{}
		draftOrder   []int64
		finishReason string
		usage        *model.TokenUsage
	)

	for stream.Next() {
		chunk := stream.Current()

		if chunk.Usage.TotalTokens > 0 {
			usage = &model.TokenUsage{
				PromptTokens:     int(chunk.Usage.PromptTokens),
				CompletionTokens: int(chunk.Usage.CompletionTokens),
				TotalTokens:      int(chunk.Usage.TotalTokens),
			}
		}

		for _, choice := range chunk.Choices {
			if choice.FinishReason != "" {
				finishReason = choice.FinishReason
			}

			if choice.Delta.Content != "" {
				text.WriteString(choice.Delta.Content)
				partial := model.Response{
					Partial: true,
					Content: core.Content{
						Role:  "assistant",
						Parts: []core.Part{core.TextPart{Text: choice.Delta.Content}},
					},
				}
				if err := emit(ctx, out, partial); err != nil {
					errCh <- err
					return
				}
			}

			for _, tc := range choice.Delta.ToolCalls {
				draft, ok := drafts[tc.Index]
				if !ok {
					draft = &toolCallDraft{}
					drafts[tc.Index] = draft
					draftOrder = append(draftOrder, tc.Index)
				}
				if tc.ID != "" {
					draft.id = tc.ID
				}
				if tc.Function.Name != "" {
					draft.name = tc.Function.Name
				}
				draft.args.WriteString(tc.Function.Arguments)

				partial := model.Response{
					Partial: true,
					Content: core.Content{
						Role:  "assistant",
						Parts: []core.Part{core.FunctionCallPart{FunctionCall: draft.call()}},
					},
				}
				if err := emit(ctx, out, partial); err != nil {
					errCh <- err
					return
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		errCh <- fmt.Errorf("openai streaming error: %w", err)
		return
	}

	var parts []core.Part
	if text.Len() > 0 {
		parts = append(parts, core.TextPart{Text: text.String()})
	}
	for _, idx := range draftOrder {
		parts = append(parts, core.FunctionCallPart{FunctionCall: drafts[idx].call()})
	}

	final := model.Response{
		Partial:      false,
		Content:      core.Content{Role: "assistant", Parts: parts},
		FinishReason: finishReason,
		Usage:        usage,
	}
	if err := emit(ctx, out, final); err != nil {
		errCh <- err
	}
}

func (d *toolCallDraft) call() core.FunctionCall {
	return core.FunctionCall{ID: d.id, Name: d.name, Arguments: d.args.String()}
}

// handleNonStreaming processes a normal (non-streaming) completion.
func (m *Model) handleNonStreaming(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		errCh <- fmt.Errorf("openai api error: %w", err)
		return
	}
	if len(resp.Choices) == 0 {
		errCh <- fmt.Errorf("openai api error: no choices returned")
		return
	}

	choice := resp.Choices[0]

	out <- model.Response{
		Partial:      false,
		Content:      core.Content{Role: "assistant", Parts: buildParts(choice.Message)},
		FinishReason: choice.FinishReason,
		Usage: &model.TokenUsage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}
}

// buildParts converts a completed chat message (text + tool calls) to core parts.
func buildParts(msg openai.ChatCompletionMessage) []core.Part {
	parts := make([]core.Part, 0, len(msg.ToolCalls)+1)
	if msg.Content != "" {
		parts = append(parts, core.TextPart{Text: msg.Content})
	}
	for _, tc := range msg.ToolCalls {
		parts = append(parts, core.FunctionCallPart{
			FunctionCall: core.FunctionCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	return parts
}

// buildMessages converts core contents to the chat message format.
// Instructions lead as the system message; tool-role contents are folded in
// as tool messages directly after the assistant turn that requested them.
func (m *Model) buildMessages(instructions string, contents []core.Content) []openai.ChatCompletionMessageParamUnion {
	var messages []openai.ChatCompletionMessageParamUnion

	if instructions != "" {
		messages = append(messages, openai.SystemMessage(instructions))
	}

	toolResponses, responseOrder := indexToolResponses(contents)

	for _, c := range contents {
		if c.Role == "tool" {
			continue // embedded after their originating calls
		}

		switch c.Role {
		case "system":
			if text := textOf(c.Parts); text != "" {
				messages = append(messages, openai.SystemMessage(text))
			}
		case "assistant":
			messages = append(messages, m.buildAssistantMessages(c.Parts, toolResponses)...)
		default:
			// user and unknown roles become user messages
			if text := textOf(c.Parts); text != "" {
				messages = append(messages, openai.UserMessage(text))
			}
		}
	}

	// Responses whose originating call never appeared still need delivery.
	for _, id := range responseOrder {
		if resp, ok := toolResponses[id]; ok {
			messages = append(messages, openai.ToolMessage(resp, id))
		}
	}

	return messages
}

// buildAssistantMessages renders one assistant turn, followed by the tool
// messages answering any calls it contains.
func (m *Model) buildAssistantMessages(
	parts []core.Part,
	toolResponses map[string]string,
) []openai.ChatCompletionMessageParamUnion {
	var messages []openai.ChatCompletionMessageParamUnion

	text := textOf(parts)
	toolCalls, callIDs := extractToolCalls(parts)

	if len(toolCalls) == 0 {
		if text != "" {
			messages = append(messages, openai.AssistantMessage(text))
		}
		return messages
	}

	assistant := openai.ChatCompletionAssistantMessageParam{ToolCalls: toolCalls}
	if text != "" {
		assistant.Content.OfString = openai.String(text)
	}
	messages = append(messages, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})

	for _, id := range callIDs {
		if id == "" {
			continue
		}
		if resp, ok := toolResponses[id]; ok {
			messages = append(messages, openai.ToolMessage(resp, id))
			delete(toolResponses, id)
		}
	}

	return messages
}

// indexToolResponses flattens tool-role contents into a response-per-call-id
// map, preserving first-seen order and stringifying non-string results.
func indexToolResponses(contents []core.Content) (map[string]string, []string) {
	responses := map[string]string{}
	var order []string

	for _, c := range contents {
		if c.Role != "tool" {
			continue
		}
		for _, p := range c.Parts {
			fr, ok := p.(core.FunctionResponsePart)
			if !ok || fr.FunctionResponse.ID == "" {
				continue
			}
			if _, exists := responses[fr.FunctionResponse.ID]; exists {
				continue
			}
			if s, ok := fr.FunctionResponse.Response.(string); ok {
				responses[fr.FunctionResponse.ID] = s
			} else {
				responses[fr.FunctionResponse.ID] = fmt.Sprintf("%v", fr.FunctionResponse.Response)
			}
			order = append(order, fr.FunctionResponse.ID)
		}
	}

	return responses, order
}

// extractToolCalls converts function call parts to the chat tool call format,
// returning the call ids in order.
func extractToolCalls(parts []core.Part) ([]openai.ChatCompletionMessageToolCallParam, []string) {
	var toolCalls []openai.ChatCompletionMessageToolCallParam
	var callIDs []string

	for _, p := range parts {
		fc, ok := p.(core.FunctionCallPart)
		if !ok {
			continue
		}
		toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
			ID:   fc.FunctionCall.ID,
			Type: "function",
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      fc.FunctionCall.Name,
				Arguments: fc.FunctionCall.Arguments,
			},
		})
		callIDs = append(callIDs, fc.FunctionCall.ID)
	}

	return toolCalls, callIDs
}

// textOf concatenates the text parts of a content.
func textOf(parts []core.Part) string {
	var b strings.Builder
	for _, p := range parts {
		if tp, ok := p.(core.TextPart); ok {
			b.WriteString(tp.Text)
		}
	}
	return b.String()
}

// buildTools converts tool definitions to the chat tool format.
func (m *Model) buildTools(tools []model.ToolDefinition) []openai.ChatCompletionToolParam {
	openaiTools := make([]openai.ChatCompletionToolParam, len(tools))
	for i, tool := range tools {
		openaiTools[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        tool.Function.Name,
				Description: openai.String(tool.Function.Description),
				Parameters:  tool.Function.Parameters,
			},
		}
	}
	return openaiTools
}

// Info returns metadata describing this OpenAI model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      "openai",
		SupportsTools: true,
	}
}

// emit delivers resp unless ctx is done.
func emit(ctx context.Context, out chan<- model.Response, resp model.Response) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case out <- resp:
		return nil
	}
}
