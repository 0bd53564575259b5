package core

// EventField is the key that marks a stream unit as a relayable generation
// event. Units lacking this field are lifecycle or diagnostic units and are
// dropped by the invocation handler before reaching the caller.
const EventField = "event"

// StreamUnit is one JSON-like unit of streamed agent output. Units carrying
// the EventField key wrap a generation Event; other shapes (start, result,
// usage) are produced for local consumers and never leave the host.
type StreamUnit map[string]any

// HasEvent reports whether the unit carries a generation event payload.
func (u StreamUnit) HasEvent() bool {
	_, ok := u[EventField]
	return ok
}

// NewEventUnit wraps a generation event for relay to the caller.
func NewEventUnit(ev Event) StreamUnit {
	return StreamUnit{EventField: ev}
}

// NewStartUnit marks the beginning of an invocation's stream.
func NewStartUnit(invocationID string) StreamUnit {
	return StreamUnit{"start": true, "invocation_id": invocationID}
}

// NewResultUnit carries the accumulated final response text once generation
// completes. It intentionally lacks the EventField key.
func NewResultUnit(invocationID, text, finishReason string) StreamUnit {
	return StreamUnit{
		"result":        map[string]any{"text": text, "finish_reason": finishReason},
		"invocation_id": invocationID,
	}
}

// InvocationPayload is the inbound request body of a single invocation.
// Prompt is optional; an absent prompt triggers the documented fallback text
// rather than an error.
type InvocationPayload struct {
	Prompt *string `json:"prompt,omitempty"`
}
