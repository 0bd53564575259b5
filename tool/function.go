package tool

import (
	"context"

	"github.com/hupe1980/agenthost/internal/util"
)

// Func is the signature of an in-process tool function.
type Func func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// FunctionTool adapts a plain Go function to the Tool interface. It is the
// simplest way to hand the agent a capability without an external provider.
// Arguments are validated against the parameter schema before fn runs.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]interface{}
	fn          Func
}

// NewFunctionTool wraps fn as a Tool. parameters must be a JSON schema object;
// nil yields an empty object schema.
func NewFunctionTool(name, description string, parameters map[string]interface{}, fn Func) *FunctionTool {
	if parameters == nil {
		parameters = map[string]interface{}{"type": "object"}
	}
	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
}

// SchemaFrom derives a JSON schema object from a Go struct, for handing
// typed argument shapes to NewFunctionTool without writing schemas by hand.
func SchemaFrom(structType any) map[string]interface{} {
	return util.SchemaFromStruct(structType)
}

// Name implements Tool.
func (t *FunctionTool) Name() string { return t.name }

// Description implements Tool.
func (t *FunctionTool) Description() string { return t.description }

// Parameters implements Tool.
func (t *FunctionTool) Parameters() map[string]interface{} { return t.parameters }

// Call implements Tool.
func (t *FunctionTool) Call(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := util.ValidateArgs(args, t.parameters); err != nil {
		return nil, err
	}
	return t.fn(ctx, args)
}
