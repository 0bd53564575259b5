package core

import (
	"time"

	"github.com/google/uuid"
)

// Event is the unit of communication between the agent and its consumers.
// After emission it should be treated as immutable. It captures:
//   - Correlation (InvocationID, ID, Author)
//   - Conversational content (optional role-based Parts)
//   - Streaming metadata (Partial, TurnComplete)
//   - Error metadata for mid-stream failures
//   - High precision UTC timestamp
//
// Content may be nil for control or error-only events.
type Event struct {
	ID           string    `json:"id"`
	InvocationID string    `json:"invocation_id"`
	Author       string    `json:"author"`
	Timestamp    time.Time `json:"timestamp"`
	Content      *Content  `json:"content,omitempty"`
	Partial      *bool     `json:"partial,omitempty"`
	TurnComplete *bool     `json:"turn_complete,omitempty"`
	ErrorCode    *string   `json:"error_code,omitempty"`
	ErrorMessage *string   `json:"error_message,omitempty"`
}

// NewEvent creates a bare event authored by 'author' bound to an invocation.
// Prefer helper constructors for common semantic categories (message, function call/response).
func NewEvent(invocationID, author string) Event {
	return Event{
		ID:           NewID(),
		InvocationID: invocationID,
		Author:       author,
		Timestamp:    time.Now().UTC(),
	}
}

// NewMessageEvent constructs an assistant-style message event with a single text part.
func NewMessageEvent(invocationID, author, message string) Event {
	e := NewEvent(invocationID, author)
	e.Content = &Content{Role: "assistant", Parts: []Part{TextPart{Text: message}}}
	return e
}

// NewUserMessageEvent is a convenience wrapper for a user-authored text message.
func NewUserMessageEvent(invocationID, message string) Event {
	e := NewEvent(invocationID, "user")
	e.Content = &Content{Role: "user", Parts: []Part{TextPart{Text: message}}}
	return e
}

// NewFunctionCallEvent represents the agent requesting execution of a named tool.
func NewFunctionCallEvent(invocationID, author string, call FunctionCall) Event {
	e := NewEvent(invocationID, author)
	e.Content = &Content{Role: "assistant", Parts: []Part{FunctionCallPart{FunctionCall: call}}}
	return e
}

// NewFunctionResponseEvent captures the outcome of a previously emitted function call.
// If err is non-nil its message is copied into the response.Error field.
func NewFunctionResponseEvent(invocationID, author, id, functionName string, result interface{}, err error) Event {
	e := NewEvent(invocationID, author)
	fr := FunctionResponse{ID: id, Name: functionName, Response: result}
	if err != nil {
		fr.Error = err.Error()
	}
	e.Content = &Content{Role: "tool", Parts: []Part{FunctionResponsePart{FunctionResponse: fr}}}
	return e
}

// NewErrorEvent records a mid-stream failure for the consumer.
func NewErrorEvent(invocationID, author, code string, err error) Event {
	e := NewEvent(invocationID, author)
	e.ErrorCode = &code
	msg := err.Error()
	e.ErrorMessage = &msg
	return e
}

// NewID generates a new unique identifier for events and invocations.
func NewID() string { return uuid.NewString() }

// IsPartial reports whether this event represents a streaming / incomplete
// fragment that will be followed by additional events composing the final
// assistant turn.
func (e Event) IsPartial() bool { return e.Partial != nil && *e.Partial }

// GetFunctionCalls returns any FunctionCall parts contained within the event
// content preserving their original order.
func (e Event) GetFunctionCalls() []FunctionCall {
	if e.Content == nil {
		return nil
	}
	var calls []FunctionCall
	for _, p := range e.Content.Parts {
		if fc, ok := p.(FunctionCallPart); ok {
			calls = append(calls, fc.FunctionCall)
		}
	}
	return calls
}

// GetFunctionResponses returns any FunctionResponse parts contained within the
// event content preserving their original order.
func (e Event) GetFunctionResponses() []FunctionResponse {
	if e.Content == nil {
		return nil
	}
	var responses []FunctionResponse
	for _, p := range e.Content.Parts {
		if fr, ok := p.(FunctionResponsePart); ok {
			responses = append(responses, fr.FunctionResponse)
		}
	}
	return responses
}

// Text concatenates all text parts of the event content.
func (e Event) Text() string {
	if e.Content == nil {
		return ""
	}
	var out string
	for _, p := range e.Content.Parts {
		if tp, ok := p.(TextPart); ok {
			out += tp.Text
		}
	}
	return out
}

// IsFinalResponse reports whether the assistant turn is complete: no pending
// tool calls or responses and not a partial fragment.
func (e Event) IsFinalResponse() bool {
	return len(e.GetFunctionCalls()) == 0 &&
		len(e.GetFunctionResponses()) == 0 &&
		!e.IsPartial()
}

// UnixSeconds returns the timestamp as fractional seconds since Unix epoch.
func (e Event) UnixSeconds() float64 { return float64(e.Timestamp.UnixNano()) / 1e9 }
