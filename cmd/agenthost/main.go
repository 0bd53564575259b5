// Command agenthost serves a single MCP-tooled agent behind the streaming
// invocation endpoint. Configuration comes from an optional YAML file plus
// AGENTHOST_* environment overrides; the tool provider child process is
// spawned lazily on the first invocation.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/agenthost"
	"github.com/hupe1980/agenthost/agent"
	"github.com/hupe1980/agenthost/config"
	"github.com/hupe1980/agenthost/logging"
	"github.com/hupe1980/agenthost/mcptool"
	"github.com/hupe1980/agenthost/model"
	"github.com/hupe1980/agenthost/model/anthropic"
	"github.com/hupe1980/agenthost/model/openai"
	"github.com/hupe1980/agenthost/runtime"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "agenthost: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format, os.Stderr)

	llm, err := buildModel(cfg.Model)
	if err != nil {
		return err
	}

	provider := mcptool.NewProvider(cfg.Provider.Command, cfg.Provider.Args, func(o *mcptool.Options) {
		o.Env = cfg.Provider.Env
		o.Logger = logger
		if cfg.Provider.CallTimeout > 0 {
			o.CallTimeout = cfg.Provider.CallTimeout.Duration()
		}
	})

	host := agenthost.New(
		agenthost.NewMCPAgentFactory(cfg.Agent.Name, llm, provider, func(o *agent.Options) {
			if cfg.Agent.Instruction != "" {
				o.Instruction = cfg.Agent.Instruction
			}
			o.MaxModelCalls = cfg.Agent.MaxModelCalls
			o.Logger = logger
		}),
		func(o *agenthost.Options) { o.Logger = logger },
	)

	app := runtime.NewApp(host.Invoke, func(o *runtime.Options) {
		o.Addr = cfg.Server.Addr
		if cfg.Server.ShutdownTimeout > 0 {
			o.ShutdownTimeout = cfg.Server.ShutdownTimeout.Duration()
		}
		o.Logger = logger
	})
	app.OnShutdown(host.Shutdown)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting agenthost",
		"addr", cfg.Server.Addr,
		"model_provider", cfg.Model.Provider,
		"tool_command", cfg.Provider.Command,
	)

	return app.Run(ctx)
}

func buildModel(cfg config.ModelConfig) (model.Model, error) {
	switch cfg.Provider {
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Name != "" {
				o.Model = anthropicsdk.Model(cfg.Name)
			}
			if cfg.MaxTokens > 0 {
				o.MaxTokens = int64(cfg.MaxTokens)
			}
			if cfg.Temperature > 0 {
				o.Temperature = cfg.Temperature
			}
		}), nil
	case "openai":
		return openai.NewModel(func(o *openai.Options) {
			if cfg.Name != "" {
				o.Model = cfg.Name
			}
			if cfg.MaxTokens > 0 {
				o.MaxCompletionTokens = int64(cfg.MaxTokens)
			}
			if cfg.Temperature > 0 {
				o.Temperature = cfg.Temperature
			}
		}), nil
	case "mock":
		return model.NewMockModel("mock"), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}
