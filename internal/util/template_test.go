package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTemplate(t *testing.T) {
	out, err := RenderTemplate("You are {{.name}}, a helpful AI assistant.", map[string]any{"name": "docs-helper"})
	require.NoError(t, err)
	assert.Equal(t, "You are docs-helper, a helpful AI assistant.", out)
}

func TestRenderTemplatePlainTextPassthrough(t *testing.T) {
	out, err := RenderTemplate("no markers here", nil)
	require.NoError(t, err)
	assert.Equal(t, "no markers here", out)
}

func TestRenderTemplateFuncs(t *testing.T) {
	out, err := RenderTemplate(`{{upper .name}} uses {{join ", " .tools}}`, map[string]any{
		"name":  "bot",
		"tools": []any{"search", "read"},
	})
	require.NoError(t, err)
	assert.Equal(t, "BOT uses search, read", out)
}

func TestRenderTemplateMalformed(t *testing.T) {
	_, err := RenderTemplate("{{.name", nil)
	require.Error(t, err)
}
