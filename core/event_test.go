package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewEventDefaults(t *testing.T) {
	ev := NewEvent("inv-1", "agent")
	assert.Len(t, ev.ID, 36) // UUID length
	assert.Equal(t, "inv-1", ev.InvocationID)
	assert.Equal(t, "agent", ev.Author)
	assert.False(t, ev.Timestamp.IsZero())
	assert.Nil(t, ev.Content)
	assert.False(t, ev.IsPartial())
}

func TestFunctionCallRoundTrip(t *testing.T) {
	call := FunctionCall{ID: "call-1", Name: "search_docs", Arguments: `{"query":"s3"}`}
	ev := NewFunctionCallEvent("inv-1", "agent", call)

	calls := ev.GetFunctionCalls()
	assert.Len(t, calls, 1)
	assert.Equal(t, "search_docs", calls[0].Name)
	assert.False(t, ev.IsFinalResponse())

	resp := NewFunctionResponseEvent("inv-1", "agent", "call-1", "search_docs", "ok", nil)
	responses := resp.GetFunctionResponses()
	assert.Len(t, responses, 1)
	assert.Equal(t, "ok", responses[0].Response)
	assert.Empty(t, responses[0].Error)
}

func TestFunctionResponseCarriesError(t *testing.T) {
	resp := NewFunctionResponseEvent("inv-1", "agent", "call-1", "search_docs", nil, errors.New("boom"))
	responses := resp.GetFunctionResponses()
	assert.Len(t, responses, 1)
	assert.Equal(t, "boom", responses[0].Error)
}

func TestTextConcatenatesParts(t *testing.T) {
	ev := NewEvent("inv-1", "agent")
	ev.Content = &Content{
		Role: "assistant",
		Parts: []Part{
			TextPart{Text: "Hello, "},
			FunctionCallPart{FunctionCall: FunctionCall{Name: "ignored"}},
			TextPart{Text: "world"},
		},
	}
	assert.Equal(t, "Hello, world", ev.Text())
}

func TestIsFinalResponse(t *testing.T) {
	final := NewMessageEvent("inv-1", "agent", "done")
	assert.True(t, final.IsFinalResponse())

	partial := NewMessageEvent("inv-1", "agent", "chunk")
	p := true
	partial.Partial = &p
	assert.False(t, partial.IsFinalResponse())
}
