// Package agenthost exposes a single MCP-tooled conversational agent behind a
// streaming invocation entrypoint. The Host owns the complete lifecycle:
//  1. The shared agent (and its child-process tool provider) is constructed
//     lazily on the first invocation, exactly once per process, no matter how
//     many requests race on a cold start.
//  2. Every invocation streams generation events back in arrival order,
//     relaying only units that carry an "event" field.
//  3. Shutdown releases the tool provider deterministically, whether or not
//     any request was ever served.
//
// Typical wiring:
//
//	provider := mcptool.NewProvider("uvx", []string{"awslabs.aws-documentation-mcp-server@latest"})
//	llm := anthropic.NewModel()
//	host := agenthost.New(agenthost.NewMCPAgentFactory("assistant", llm, provider))
//	defer host.Shutdown()
//
//	app := runtime.NewApp(host.Invoke)
//	app.ListenAndServe(":8080")
package agenthost

import (
	"context"
	"fmt"

	"github.com/hupe1980/agenthost/agent"
	"github.com/hupe1980/agenthost/core"
	"github.com/hupe1980/agenthost/internal/lazy"
	"github.com/hupe1980/agenthost/logging"
	"github.com/hupe1980/agenthost/mcptool"
	"github.com/hupe1980/agenthost/model"
)

// FallbackPrompt is substituted when an inbound payload carries no prompt.
// A missing prompt is defined default behavior, not an error.
const FallbackPrompt = "No prompt found in input, please guide customer to create a json payload with prompt key"

// AgentFactory constructs the shared agent. It returns the agent together
// with a release function for the external resources the agent depends on.
// The release function must be idempotent: the Host may never call it (if
// construction never happened) or call it more than once.
type AgentFactory func(ctx context.Context) (*agent.Agent, func() error, error)

// Options configures a Host.
type Options struct {
	// Logger receives lifecycle diagnostics.
	Logger logging.Logger
	// UnitBufferSize sets channel buffering for the outbound unit stream.
	UnitBufferSize int
}

// Host is the process-wide invocation entrypoint. It is safe for unbounded
// concurrent use; the shared agent is constructed at most once.
type Host struct {
	factory AgentFactory
	logger  logging.Logger
	bufSize int

	once lazy.Once[*sharedAgent]
}

// sharedAgent pairs the process-wide agent with the release hook for its
// tool provider.
type sharedAgent struct {
	agent   *agent.Agent
	release func() error
}

// New creates a Host around factory. Construction of the agent itself is
// deferred until the first invocation.
func New(factory AgentFactory, optFns ...func(o *Options)) *Host {
	opts := Options{
		Logger:         logging.NoOpLogger{},
		UnitBufferSize: 32,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Host{
		factory: factory,
		logger:  opts.Logger,
		bufSize: opts.UnitBufferSize,
	}
}

// getOrCreateAgent returns the shared agent, constructing it on first use.
// Concurrent first callers wait for the in-flight construction and share its
// outcome; a failed attempt is not cached, so a later call may retry.
func (h *Host) getOrCreateAgent(ctx context.Context) (*agent.Agent, error) {
	shared, err := h.once.Get(ctx, func(ctx context.Context) (*sharedAgent, error) {
		h.logger.Info("initializing shared agent")

		a, release, err := h.factory(ctx)
		if err != nil {
			h.logger.Error("agent initialization failed", "error", err)
			return nil, err
		}

		h.logger.Info("shared agent ready", "agent", a.Name(), "tools", len(a.Tools()))

		return &sharedAgent{agent: a, release: release}, nil
	})
	if err != nil {
		return nil, err
	}
	return shared.agent, nil
}

// Invoke handles one inbound request. It resolves the prompt (falling back
// to FallbackPrompt when absent), obtains the shared agent - blocking while
// a construction is in flight - and returns the filtered outbound stream:
// only units carrying the "event" field, in arrival order.
//
// Initialization failures surface through the returned error before any unit
// is produced. Mid-stream generation failures arrive on the error channel
// and terminate only this request's stream. Cancelling ctx stops relaying
// promptly.
func (h *Host) Invoke(ctx context.Context, payload core.InvocationPayload) (<-chan core.StreamUnit, <-chan error, error) {
	prompt := FallbackPrompt
	if payload.Prompt != nil {
		prompt = *payload.Prompt
	}

	a, err := h.getOrCreateAgent(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("agent initialization: %w", err)
	}

	units, errs := a.Stream(ctx, prompt)

	out := make(chan core.StreamUnit, h.bufSize)
	go func() {
		defer close(out)
		for u := range units {
			if !u.HasEvent() {
				continue
			}
			select {
			case <-ctx.Done():
				return
			case out <- u:
			}
		}
	}()

	return out, errs, nil
}

// Shutdown releases the tool provider if the agent was ever constructed; it
// is a no-op otherwise and safe to call multiple times.
func (h *Host) Shutdown() error {
	shared, ok := h.once.Peek()
	if !ok {
		return nil
	}

	h.logger.Info("releasing tool provider")

	return shared.release()
}

// NewMCPAgentFactory builds an AgentFactory that connects the tool provider,
// enumerates its tools and constructs the agent around llm. On a partial
// failure (tools cannot be enumerated after a successful connect) the
// provider is released before the error is returned, so nothing leaks.
func NewMCPAgentFactory(name string, llm model.Model, provider *mcptool.Provider, agentOpts ...func(o *agent.Options)) AgentFactory {
	return func(ctx context.Context) (*agent.Agent, func() error, error) {
		if err := provider.Connect(ctx); err != nil {
			return nil, nil, err
		}

		tools, err := provider.Tools(ctx)
		if err != nil {
			_ = provider.Close()
			return nil, nil, err
		}

		return agent.New(name, llm, tools, agentOpts...), provider.Close, nil
	}
}
