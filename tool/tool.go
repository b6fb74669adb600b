package tool

import (
	"fmt"
	"reflect"

	"github.com/fogfish/opts"
	"github.com/invopop/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/conclave-ai/conclave/pkg/reflectx"
	"github.com/conclave-ai/conclave/pkg/stdx"
	"github.com/conclave-ai/conclave/types"
)

// Definition describes a callable tool: its name, a human description, the
// mapping from positional function parameters to schema property names, and
// the function itself. When Schema is set it overrides reflection; that is
// how reserved end-turn tools advertise their parameters.
type Definition struct {
	Name        string
	Description string
	Parameters  map[string]string
	Function    any
	Schema      *jsonschema.Schema
}

// Server is an opaque handle for an externally hosted tool server. The core
// forwards these to the actor layer unchanged; listing and calling remote
// tools is the transport's concern.
type Server interface {
	Name() string
}

var paramReflector = jsonschema.Reflector{
	AllowAdditionalProperties: true,
	DoNotReference:            true,
}

// ToNameAndSchema resolves the advertised name and parameter schema for the
// definition, deriving the schema from the function signature unless an
// explicit one was provided.
func (td Definition) ToNameAndSchema() (string, *jsonschema.Schema) {
	if td.Schema != nil {
		return td.Name, td.Schema
	}
	return reflectedSchema(&paramReflector, td)
}

func reflectedSchema(reflector *jsonschema.Reflector, f Definition) (string, *jsonschema.Schema) {
	name := f.Name
	if name == "" {
		name = reflectx.FunctionName(f.Function)
	}

	schema := &jsonschema.Schema{
		Type:       "object",
		Properties: orderedmap.New[string, *jsonschema.Schema](),
	}

	typ := reflect.TypeOf(f.Function)
	if typ == nil || typ.Kind() != reflect.Func {
		return name, schema
	}

	var required []string
	pos := 0
	for i := 0; i < typ.NumIn(); i++ {
		paramType := typ.In(i)
		// context vars are injected by dispatch, not supplied by the model
		if reflectx.IsRefinedType[types.ContextVars](paramType) {
			continue
		}

		paramName := fmt.Sprintf("param%d", pos)
		if f.Parameters != nil {
			if p, ok := f.Parameters[paramName]; ok {
				paramName = p
			}
		}
		pos++

		propSchema := reflector.ReflectFromType(paramType)
		propSchema.Version = ""
		schema.Properties.Set(paramName, propSchema)
		required = append(required, paramName)
	}
	if len(required) > 0 {
		schema.Required = required
	}

	return name, schema
}

// Option customizes a Definition during construction.
type Option = opts.Option[Definition]

// Name sets the advertised tool name.
var Name = opts.ForName[Definition, string]("Name")

// Description sets the human description shown to the model.
var Description = opts.ForName[Definition, string]("Description")

// Parameters names the function's positional parameters, in order, for the
// generated schema.
func Parameters(parameters ...string) Option {
	return opts.Type[Definition](func(o *Definition) error {
		o.Parameters = make(map[string]string, len(parameters))
		for i, p := range parameters {
			o.Parameters[fmt.Sprintf("param%d", i)] = p
		}
		return nil
	})
}

// New builds a Definition around the function f.
func New(f any, options ...Option) (Definition, error) {
	if !reflectx.IsFunction(f) {
		return Definition{}, fmt.Errorf("provided value is not a function")
	}

	var def Definition
	if err := opts.Apply(&def, options); err != nil {
		return Definition{}, err
	}
	if def.Name == "" {
		def.Name = reflectx.FunctionName(f)
	}

	def.Function = f
	return def, nil
}

// Must is New, panicking on error. Intended for package-level tool variables.
func Must(f any, options ...Option) Definition {
	return stdx.Must1(New(f, options...))
}
