package anthropic

import (
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agenthost/core"
	"github.com/hupe1980/agenthost/model"
)

func TestBuildMessagesEmbedsToolResponses(t *testing.T) {
	m := NewModel()

	contents := []core.Content{
		{Role: "user", Parts: []core.Part{core.TextPart{Text: "look this up"}}},
		{Role: "assistant", Parts: []core.Part{
			core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "call-1", Name: "search_docs", Arguments: `{"query":"s3"}`}},
		}},
		{Role: "tool", Parts: []core.Part{
			core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{ID: "call-1", Name: "search_docs", Response: "found it"}},
		}},
	}

	messages := m.buildMessages(contents)
	require.Len(t, messages, 2) // tool content is folded into the assistant turn

	assert.Equal(t, anthropic.MessageParamRoleUser, messages[0].Role)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, messages[1].Role)

	// tool_use block followed by its tool_result
	require.Len(t, messages[1].Content, 2)
	require.NotNil(t, messages[1].Content[0].OfToolUse)
	assert.Equal(t, "search_docs", messages[1].Content[0].OfToolUse.Name)
	require.NotNil(t, messages[1].Content[1].OfToolResult)
	assert.Equal(t, "call-1", messages[1].Content[1].OfToolResult.ToolUseID)
}

func TestExtractSystemMessage(t *testing.T) {
	m := NewModel()

	contents := []core.Content{
		{Role: "system", Parts: []core.Part{core.TextPart{Text: "be terse"}}},
		{Role: "user", Parts: []core.Part{core.TextPart{Text: "hi"}}},
	}

	blocks := m.extractSystemMessage(contents)
	require.Len(t, blocks, 1)
	assert.Equal(t, "be terse", blocks[0].Text)

	// System contents never leak into the message list.
	messages := m.buildMessages(contents)
	require.Len(t, messages, 1)
	assert.Equal(t, anthropic.MessageParamRoleUser, messages[0].Role)
}

func TestBuildToolsConvertsSchema(t *testing.T) {
	m := NewModel()

	tools := m.buildTools([]model.ToolDefinition{{
		Type: "function",
		Function: model.FunctionDefinition{
			Name:        "search_docs",
			Description: "searches documentation",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query": map[string]interface{}{"type": "string"},
				},
				"required": []interface{}{"query"},
			},
		},
	}})

	require.Len(t, tools, 1)
	require.NotNil(t, tools[0].OfTool)
	assert.Equal(t, "search_docs", tools[0].OfTool.Name)
	assert.Equal(t, []string{"query"}, tools[0].OfTool.InputSchema.Required)
}

func TestFinishReason(t *testing.T) {
	assert.Equal(t, "stop", finishReason(""))
	assert.Equal(t, "end_turn", finishReason(anthropic.StopReasonEndTurn))
	assert.Equal(t, "tool_use", finishReason(anthropic.StopReasonToolUse))
}

func TestInfo(t *testing.T) {
	m := NewModel(func(o *Options) { o.Model = anthropic.ModelClaudeSonnet4_20250514 })

	info := m.Info()
	assert.Equal(t, "anthropic", info.Provider)
	assert.True(t, info.SupportsTools)
	assert.Equal(t, string(anthropic.ModelClaudeSonnet4_20250514), info.Name)
}
