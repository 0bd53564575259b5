// Package tool defines the callable-capability contract the agent exposes to
// its model. Concrete implementations are usually adapters around externally
// hosted tools (see the mcptool package); FunctionTool covers in-process
// functions for tests and examples.
package tool

import (
	"context"
	"fmt"
)

// Tool defines the interface for extending agent capabilities with external functions.
//
// Tool implementations should:
//   - Provide clear, descriptive names and descriptions
//   - Define proper JSON schema for parameters
//   - Handle errors gracefully
//   - Be thread-safe; a single tool instance is shared across concurrent invocations
type Tool interface {
	// Name returns the unique identifier for this tool.
	// Names should be descriptive and follow function naming conventions (snake_case recommended).
	Name() string

	// Description returns a human-readable description of what this tool does.
	// This description is provided to the LLM to help it understand when and how to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	// This schema is used for parameter validation and LLM function calling.
	Parameters() map[string]interface{}

	// Call executes the tool with structured arguments. Arguments are parsed
	// from the model's JSON tool call payload. Implementations must respect
	// context cancellation.
	Call(ctx context.Context, args map[string]interface{}) (interface{}, error)
}

// Error represents errors that occur during tool execution.
type Error struct {
	Tool    string      `json:"tool"`              // Name of the tool that failed
	Message string      `json:"message"`           // Error message
	Code    string      `json:"code"`              // Error code for categorization
	Details interface{} `json:"details,omitempty"` // Additional error details
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewError creates a new tool Error with the specified details.
func NewError(tool, message, code string) *Error {
	return &Error{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
