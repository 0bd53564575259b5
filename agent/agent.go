// Package agent implements the reasoning/generation unit of agenthost: a
// model bound to a fixed, ordered set of tools. An Agent is immutable after
// construction and safe for unbounded concurrent invocations; each Invoke
// runs its own conversation loop and streams events until the model stops
// requesting tools.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hupe1980/agenthost/core"
	"github.com/hupe1980/agenthost/internal/util"
	"github.com/hupe1980/agenthost/logging"
	"github.com/hupe1980/agenthost/model"
	"github.com/hupe1980/agenthost/tool"
)

// ErrGeneration wraps failures raised by the underlying model while a stream
// is in progress. Events already emitted are not retracted.
var ErrGeneration = errors.New("generation failure")

// Options configures an Agent instance.
type Options struct {
	// Instruction is the system prompt handed to the model on every call.
	Instruction string
	// MaxModelCalls bounds the tool-calling loop per invocation.
	MaxModelCalls int
	// EnableStreaming forwards partial model chunks as events.
	EnableStreaming bool
	// EventBufferSize sets channel buffering for emitted events.
	EventBufferSize int
	// Logger receives invocation diagnostics.
	Logger logging.Logger
}

// Agent pairs a model with an ordered set of tools. The tool set and all
// configuration are fixed at construction; concurrent invocations share the
// instance read-only.
type Agent struct {
	name            string
	llm             model.Model
	tools           []tool.Tool
	toolIndex       map[string]tool.Tool
	toolDefs        []model.ToolDefinition
	instruction     string
	maxModelCalls   int
	enableStreaming bool
	eventBufferSize int
	logger          logging.Logger
}

// New constructs an Agent with the given model and tools. Tool order is
// preserved as enumerated by the provider.
func New(name string, llm model.Model, tools []tool.Tool, optFns ...func(o *Options)) *Agent {
	opts := Options{
		Instruction:     "You are {{.name}}, a helpful AI assistant.",
		MaxModelCalls:   10,
		EnableStreaming: true,
		EventBufferSize: 32,
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	// Instructions may reference the agent name as a template variable. A
	// malformed template falls back to the raw text.
	if rendered, err := util.RenderTemplate(opts.Instruction, map[string]any{"name": name}); err == nil {
		opts.Instruction = rendered
	}

	toolIndex := make(map[string]tool.Tool, len(tools))
	toolDefs := make([]model.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		toolIndex[t.Name()] = t
		toolDefs = append(toolDefs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}

	return &Agent{
		name:            name,
		llm:             llm,
		tools:           tools,
		toolIndex:       toolIndex,
		toolDefs:        toolDefs,
		instruction:     opts.Instruction,
		maxModelCalls:   opts.MaxModelCalls,
		enableStreaming: opts.EnableStreaming,
		eventBufferSize: opts.EventBufferSize,
		logger:          opts.Logger,
	}
}

// Name returns the agent's identifier.
func (a *Agent) Name() string { return a.name }

// Model returns metadata about the underlying model.
func (a *Agent) Model() model.Info { return a.llm.Info() }

// Tools returns the agent's tools in enumeration order.
func (a *Agent) Tools() []tool.Tool {
	out := make([]tool.Tool, len(a.tools))
	copy(out, a.tools)
	return out
}

// Invoke starts an asynchronous generation for prompt. It returns a stable
// invocation identifier, an ordered event stream (closed on completion) and
// a terminal error channel (size 1, closed after send or none). Cancelling
// ctx stops event emission promptly.
func (a *Agent) Invoke(ctx context.Context, prompt string) (string, <-chan core.Event, <-chan error) {
	invocationID := core.NewID()
	events := make(chan core.Event, a.eventBufferSize)
	errs := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errs)

		if err := a.run(ctx, invocationID, prompt, events); err != nil {
			select {
			case <-ctx.Done():
			case errs <- err:
			}
		}
	}()

	return invocationID, events, errs
}

// run drives the conversation loop: generate, execute requested tools,
// append their responses, repeat until the model finishes without calls.
func (a *Agent) run(ctx context.Context, invocationID, prompt string, events chan<- core.Event) error {
	contents := []core.Content{
		{Role: "user", Parts: []core.Part{core.TextPart{Text: prompt}}},
	}

	for calls := 0; ; calls++ {
		if calls >= a.maxModelCalls {
			return fmt.Errorf("model call budget exhausted after %d calls", a.maxModelCalls)
		}

		final, err := a.generateTurn(ctx, invocationID, contents, events)
		if err != nil {
			return err
		}

		contents = append(contents, final.Content)

		fnCalls := finalFunctionCalls(final)
		if len(fnCalls) == 0 {
			return nil
		}

		toolContent, err := a.executeFunctionCalls(ctx, invocationID, fnCalls, events)
		if err != nil {
			return err
		}
		contents = append(contents, toolContent)
	}
}

// generateTurn performs one model call, relaying partial chunks as events and
// returning the final response of the turn.
func (a *Agent) generateTurn(
	ctx context.Context,
	invocationID string,
	contents []core.Content,
	events chan<- core.Event,
) (*model.Response, error) {
	req := model.Request{
		Instructions: a.instruction,
		Contents:     contents,
		Tools:        a.toolDefs,
		Stream:       a.enableStreaming,
	}

	respCh, errCh := a.llm.Generate(ctx, req)

	var final *model.Response
	for resp := range respCh {
		resp := resp
		ev := a.eventFromResponse(invocationID, resp)
		if err := emit(ctx, events, ev); err != nil {
			return nil, err
		}
		if !resp.Partial {
			final = &resp
		}
	}
	if err := <-errCh; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	if final == nil {
		return nil, fmt.Errorf("%w: model produced no final response", ErrGeneration)
	}

	return final, nil
}

// executeFunctionCalls runs the requested tools in order and returns their
// responses as a single tool-role content.
func (a *Agent) executeFunctionCalls(
	ctx context.Context,
	invocationID string,
	fnCalls []core.FunctionCall,
	events chan<- core.Event,
) (core.Content, error) {
	toolContent := core.Content{Role: "tool"}

	for _, fc := range fnCalls {
		result, err := a.callTool(ctx, fc)

		a.logger.Info("tool executed",
			"agent", a.name,
			"tool", fc.Name,
			"invocation_id", invocationID,
			"error", err != nil,
		)

		respEv := core.NewFunctionResponseEvent(invocationID, a.name, fc.ID, fc.Name, result, err)
		if emitErr := emit(ctx, events, respEv); emitErr != nil {
			return core.Content{}, emitErr
		}

		fr := core.FunctionResponse{ID: fc.ID, Name: fc.Name, Response: result}
		if err != nil {
			fr.Error = err.Error()
			fr.Response = err.Error()
		}
		toolContent.Parts = append(toolContent.Parts, core.FunctionResponsePart{FunctionResponse: fr})
	}

	return toolContent, nil
}

func (a *Agent) callTool(ctx context.Context, fc core.FunctionCall) (result any, err error) {
	impl, ok := a.toolIndex[fc.Name]
	if !ok {
		return nil, fmt.Errorf("tool %s not found", fc.Name)
	}

	args := map[string]any{}
	if fc.Arguments != "" {
		if uerr := json.Unmarshal([]byte(fc.Arguments), &args); uerr != nil {
			return nil, fmt.Errorf("failed to unmarshal args: %w", uerr)
		}
	}

	defer func() { // panic safety
		if r := recover(); r != nil {
			err = fmt.Errorf("tool %s panicked: %v", fc.Name, r)
			a.logger.Error("tool panic", "agent", a.name, "tool", fc.Name, "recover", r)
		}
	}()

	return impl.Call(ctx, args)
}

// eventFromResponse maps a model response chunk to a stream event.
func (a *Agent) eventFromResponse(invocationID string, resp model.Response) core.Event {
	ev := core.NewEvent(invocationID, a.name)
	content := resp.Content
	ev.Content = &content
	if resp.Partial {
		partial := true
		ev.Partial = &partial
	} else if len(ev.GetFunctionCalls()) == 0 {
		complete := true
		ev.TurnComplete = &complete
	}
	return ev
}

// finalFunctionCalls extracts function calls from a final model response.
func finalFunctionCalls(resp *model.Response) []core.FunctionCall {
	var calls []core.FunctionCall
	for _, p := range resp.Content.Parts {
		if fc, ok := p.(core.FunctionCallPart); ok {
			calls = append(calls, fc.FunctionCall)
		}
	}
	return calls
}

// emit delivers ev unless ctx is done.
func emit(ctx context.Context, events chan<- core.Event, ev core.Event) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case events <- ev:
		return nil
	}
}
