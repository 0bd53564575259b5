// Package testutil contains helper builders used across tests to reduce
// boilerplate when constructing core events and stream units. Not intended
// for production usage.
package testutil

import (
	"github.com/hupe1980/agenthost/core"
)

// EventBuilder provides a fluent helper for constructing events in tests.
// Example:
//
//	ev := NewEventBuilder().Author("assistant").Invocation("inv-1").AssistantText("hello").Build()
//
// Chain only the parts you need; sensible defaults are applied.
type EventBuilder struct {
	author       string
	invocationID string
	id           string
	role         string
	parts        []core.Part
	partial      *bool
	turnComplete *bool
}

// NewEventBuilder creates a builder with default author "assistant".
func NewEventBuilder() *EventBuilder { return &EventBuilder{author: "assistant"} }

// Author sets the author name for the event (chainable).
func (b *EventBuilder) Author(a string) *EventBuilder { b.author = a; return b }

// Invocation sets the invocation ID associated with the event (chainable).
func (b *EventBuilder) Invocation(id string) *EventBuilder { b.invocationID = id; return b }

// ID overrides the auto-generated event ID (chainable). Use where determinism matters.
func (b *EventBuilder) ID(id string) *EventBuilder { b.id = id; return b }

// Partial marks the event as a streaming fragment (chainable).
func (b *EventBuilder) Partial(p bool) *EventBuilder { b.partial = &p; return b }

// TurnComplete sets the TurnComplete flag (chainable).
func (b *EventBuilder) TurnComplete(c bool) *EventBuilder { b.turnComplete = &c; return b }

// AssistantText appends an assistant text part (chainable).
func (b *EventBuilder) AssistantText(t string) *EventBuilder {
	b.role = "assistant"
	b.parts = append(b.parts, core.TextPart{Text: t})
	return b
}

// UserText appends a user text part (chainable).
func (b *EventBuilder) UserText(t string) *EventBuilder {
	b.role = "user"
	b.parts = append(b.parts, core.TextPart{Text: t})
	return b
}

// FunctionCall appends a function call part (chainable).
func (b *EventBuilder) FunctionCall(id, name, args string) *EventBuilder {
	b.role = "assistant"
	b.parts = append(b.parts, core.FunctionCallPart{
		FunctionCall: core.FunctionCall{ID: id, Name: name, Arguments: args},
	})
	return b
}

// FunctionResponse appends a function response part (chainable).
func (b *EventBuilder) FunctionResponse(id, name string, result any) *EventBuilder {
	b.role = "tool"
	b.parts = append(b.parts, core.FunctionResponsePart{
		FunctionResponse: core.FunctionResponse{ID: id, Name: name, Response: result},
	})
	return b
}

// Build materializes the event.
func (b *EventBuilder) Build() core.Event {
	ev := core.NewEvent(b.invocationID, b.author)
	if b.id != "" {
		ev.ID = b.id
	}
	if len(b.parts) > 0 {
		ev.Content = &core.Content{Role: b.role, Parts: b.parts}
	}
	ev.Partial = b.partial
	ev.TurnComplete = b.turnComplete
	return ev
}

// Unit wraps the built event as a relayable stream unit.
func (b *EventBuilder) Unit() core.StreamUnit {
	return core.NewEventUnit(b.Build())
}
