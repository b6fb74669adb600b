package jsonx

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/tidwall/gjson"
)

// ValidationError describes why a JSON document was rejected by a schema.
// It is surfaced to the model as tool-call feedback, so the message must be
// specific enough to correct the next attempt.
type ValidationError struct {
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

// Validate checks a parsed JSON document against a schema produced by the
// invopop reflector. It covers the structural subset the framework relies on:
// primitive types, required object properties, nested properties, array
// items, and enum membership. Unknown keywords are ignored.
func Validate(schema *jsonschema.Schema, doc gjson.Result) error {
	if schema == nil {
		return nil
	}
	return validate(schema, doc, "$")
}

func validate(schema *jsonschema.Schema, doc gjson.Result, path string) error {
	if err := checkType(schema.Type, doc, path); err != nil {
		return err
	}

	if len(schema.Enum) > 0 {
		if !enumHas(schema.Enum, doc) {
			return &ValidationError{Path: path, Reason: fmt.Sprintf("value %s is not one of the allowed values", doc.Raw)}
		}
	}

	if doc.IsObject() && schema.Properties != nil {
		for _, req := range schema.Required {
			if !doc.Get(req).Exists() {
				return &ValidationError{Path: path, Reason: fmt.Sprintf("missing required property %q", req)}
			}
		}
		for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
			prop := doc.Get(pair.Key)
			if !prop.Exists() {
				continue
			}
			if err := validate(pair.Value, prop, path+"."+pair.Key); err != nil {
				return err
			}
		}
	}

	if doc.IsArray() && schema.Items != nil {
		var err error
		doc.ForEach(func(idx, value gjson.Result) bool {
			err = validate(schema.Items, value, fmt.Sprintf("%s[%d]", path, idx.Int()))
			return err == nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func checkType(want string, doc gjson.Result, path string) error {
	if want == "" {
		return nil
	}

	ok := false
	switch want {
	case "string":
		ok = doc.Type == gjson.String
	case "number":
		ok = doc.Type == gjson.Number
	case "integer":
		ok = doc.Type == gjson.Number && doc.Num == float64(int64(doc.Num))
	case "boolean":
		ok = doc.IsBool()
	case "object":
		ok = doc.IsObject()
	case "array":
		ok = doc.IsArray()
	case "null":
		ok = doc.Type == gjson.Null
	default:
		ok = true
	}
	if !ok {
		got := strings.ToLower(doc.Type.String())
		if doc.IsObject() {
			got = "object"
		} else if doc.IsArray() {
			got = "array"
		}
		return &ValidationError{Path: path, Reason: fmt.Sprintf("expected %s, got %s", want, got)}
	}
	return nil
}

func enumHas(allowed []any, doc gjson.Result) bool {
	for _, v := range allowed {
		if reflect.DeepEqual(v, doc.Value()) {
			return true
		}
		if fmt.Sprintf("%v", v) == doc.String() {
			return true
		}
	}
	return false
}
