// Package mcptool connects the agent to an externally hosted tool provider
// speaking the Model Context Protocol over stdio. A Provider owns the child
// process for its whole lifetime: Connect launches and handshakes it, Tools
// enumerates its capabilities as tool.Tool adapters, and Close releases the
// process. Close is idempotent and safe after a failed Connect, so callers
// can defer it unconditionally.
package mcptool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hupe1980/agenthost/logging"
	"github.com/hupe1980/agenthost/tool"
)

var (
	// ErrProviderUnavailable indicates the tool provider process could not be
	// started or failed its initialize handshake.
	ErrProviderUnavailable = errors.New("tool provider unavailable")

	// ErrProtocol indicates the provider responded with a malformed or
	// unexpected payload during tool enumeration.
	ErrProtocol = errors.New("tool provider protocol error")

	// ErrNotConnected indicates an operation that requires a connected
	// provider was attempted before Connect succeeded.
	ErrNotConnected = errors.New("tool provider not connected")
)

// client abstracts the mcp-go client so tests can substitute a fake.
type client interface {
	Initialize(ctx context.Context, req mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// Options configures a Provider.
type Options struct {
	// Name identifies the provider in logs and tool descriptions.
	Name string
	// Env is passed to the child process as KEY=VALUE pairs.
	Env map[string]string
	// CallTimeout bounds individual tool invocations.
	CallTimeout time.Duration
	// Logger receives connection and invocation diagnostics.
	Logger logging.Logger
}

// Provider owns a stdio MCP child process. It transitions Disconnected ->
// Connected on Connect and back on Close; there is no implicit reconnection.
// All methods are safe for concurrent use.
type Provider struct {
	command string
	args    []string
	opts    Options

	newClient func() (client, error)

	mu        sync.Mutex
	client    client
	connected bool
}

// NewProvider creates a Provider that will launch command with args on Connect.
func NewProvider(command string, args []string, optFns ...func(o *Options)) *Provider {
	opts := Options{
		Name:        "mcp",
		CallTimeout: 30 * time.Second,
		Logger:      logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	p := &Provider{
		command: command,
		args:    args,
		opts:    opts,
	}
	p.newClient = func() (client, error) {
		return mcpclient.NewStdioMCPClient(p.command, envSlice(p.opts.Env), p.args...)
	}
	return p
}

// Connect launches the child process and performs the MCP initialize
// handshake. Calling Connect on an already connected provider is a no-op.
// On failure no resource is left behind and the provider may be connected
// again later.
func (p *Provider) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.connected {
		return nil
	}

	c, err := p.newClient()
	if err != nil {
		return fmt.Errorf("%w: start %q: %v", ErrProviderUnavailable, p.command, err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "agenthost",
		Version: "1.0.0",
	}

	if _, err := c.Initialize(ctx, initReq); err != nil {
		_ = c.Close() // no leak on partial failure
		return fmt.Errorf("%w: initialize handshake: %v", ErrProviderUnavailable, err)
	}

	p.client = c
	p.connected = true

	p.opts.Logger.Info("tool provider connected", "name", p.opts.Name, "command", p.command)

	return nil
}

// Tools enumerates the provider's tools and wraps each as a tool.Tool.
// The returned order matches the provider's enumeration order.
func (p *Provider) Tools(ctx context.Context) ([]tool.Tool, error) {
	p.mu.Lock()
	c := p.client
	connected := p.connected
	p.mu.Unlock()

	if !connected {
		return nil, ErrNotConnected
	}

	result, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("%w: list tools: %v", ErrProtocol, err)
	}

	tools := make([]tool.Tool, 0, len(result.Tools))
	for _, t := range result.Tools {
		if t.Name == "" {
			return nil, fmt.Errorf("%w: tool descriptor without name", ErrProtocol)
		}
		tools = append(tools, newAdapter(p, t))
		p.opts.Logger.Debug("tool discovered", "provider", p.opts.Name, "tool", t.Name)
	}

	p.opts.Logger.Info("tools enumerated", "provider", p.opts.Name, "count", len(tools))

	return tools, nil
}

// Close terminates the child process. It is idempotent: closing an already
// released or never connected provider is a no-op.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client == nil {
		return nil
	}

	err := p.client.Close()
	p.client = nil
	p.connected = false

	if err != nil {
		return fmt.Errorf("close tool provider: %w", err)
	}

	p.opts.Logger.Info("tool provider released", "name", p.opts.Name)

	return nil
}

// Connected reports whether the provider currently owns a live child process.
func (p *Provider) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// call executes a tool by name against the connected provider, bounded by the
// configured call timeout.
func (p *Provider) call(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	p.mu.Lock()
	c := p.client
	connected := p.connected
	p.mu.Unlock()

	if !connected {
		return nil, ErrNotConnected
	}

	callReq := mcp.CallToolRequest{}
	callReq.Params.Name = name
	callReq.Params.Arguments = args

	callCtx, cancel := context.WithTimeout(ctx, p.opts.CallTimeout)
	defer cancel()

	return c.CallTool(callCtx, callReq)
}

// envSlice converts a map of env vars to KEY=VALUE slices.
func envSlice(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	result := make([]string, 0, len(env))
	for k, v := range env {
		result = append(result, k+"="+v)
	}
	return result
}
