package tool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFunctionToolCall(t *testing.T) {
	echo := NewFunctionTool("echo", "echoes its input", map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{"text": map[string]interface{}{"type": "string"}},
	}, func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		return args["text"], nil
	})

	assert.Equal(t, "echo", echo.Name())
	assert.Equal(t, "echoes its input", echo.Description())

	result, err := echo.Call(context.Background(), map[string]interface{}{"text": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", result)
}

func TestFunctionToolRespectsCancellation(t *testing.T) {
	called := false
	tl := NewFunctionTool("noop", "", nil, func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		called = true
		return nil, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tl.Call(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestFunctionToolDefaultSchema(t *testing.T) {
	tl := NewFunctionTool("noop", "", nil, func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		return nil, nil
	})
	assert.Equal(t, map[string]interface{}{"type": "object"}, tl.Parameters())
}

func TestFunctionToolValidatesArgs(t *testing.T) {
	tl := NewFunctionTool("add", "adds numbers", map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"a": map[string]interface{}{"type": "number"},
			"b": map[string]interface{}{"type": "number"},
		},
		"required": []interface{}{"a", "b"},
	}, func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		return args["a"].(float64) + args["b"].(float64), nil
	})

	_, err := tl.Call(context.Background(), map[string]interface{}{"a": 1.0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required field is missing")

	_, err = tl.Call(context.Background(), map[string]interface{}{"a": 1.0, "b": "two"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected type number")

	result, err := tl.Call(context.Background(), map[string]interface{}{"a": 1.0, "b": 2.0})
	require.NoError(t, err)
	assert.Equal(t, 3.0, result)
}

func TestSchemaFrom(t *testing.T) {
	type searchArgs struct {
		Query string `json:"query" description:"search phrase"`
		Limit int    `json:"limit,omitempty"`
	}

	schema := SchemaFrom(searchArgs{})
	assert.Equal(t, "object", schema["type"])

	props := schema["properties"].(map[string]interface{})
	assert.Equal(t, "string", props["query"].(map[string]interface{})["type"])
	assert.Equal(t, "search phrase", props["query"].(map[string]interface{})["description"])
	assert.Equal(t, "integer", props["limit"].(map[string]interface{})["type"])

	assert.Equal(t, []string{"query"}, schema["required"])
}

func TestErrorFormatting(t *testing.T) {
	err := NewError("search_docs", "upstream timeout", "TIMEOUT")
	assert.Equal(t, "tool error [TIMEOUT] in search_docs: upstream timeout", err.Error())

	bare := NewError("search_docs", "boom", "")
	assert.Equal(t, "tool error in search_docs: boom", bare.Error())
}
