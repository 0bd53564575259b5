package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agenthost/config"
)

func TestBuildModelSelectsProvider(t *testing.T) {
	for provider, name := range map[string]string{
		"anthropic": "claude-sonnet-4-20250514",
		"openai":    "gpt-4o-mini",
		"mock":      "mock",
	} {
		llm, err := buildModel(config.ModelConfig{
			Provider:    provider,
			Name:        name,
			MaxTokens:   512,
			Temperature: 0.2,
		})
		require.NoError(t, err, provider)
		assert.Equal(t, provider, llm.Info().Provider)
		assert.Equal(t, name, llm.Info().Name)
	}
}

func TestBuildModelRejectsUnknownProvider(t *testing.T) {
	_, err := buildModel(config.ModelConfig{Provider: "llama-at-home"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown model provider")
}
