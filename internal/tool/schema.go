package tool

import (
	"fmt"
	"sort"

	streamyerrors "github.com/alexisbeaulieu97/streamy/pkg/errors"
	"github.com/alexisbeaulieu97/streamy/internal/wfvalue"
)

// Schema is the narrow, constrained shape the engine validates tool
// parameters against: the five JSON Schema type tags the spec names
// (string, number, boolean, object, array), nested via Properties/Items.
// There is deliberately no support for oneOf/anyOf/pattern/format/etc — the
// engine's needs stop at "did the caller send roughly the right shape".
type Schema struct {
	Type       string
	Properties map[string]*Schema
	Required   []string
	Items      *Schema
}

// Validate recursively checks value against schema, returning every
// mismatch found (not just the first) with dotted/indexed paths rooted at
// "params".
func Validate(schema *Schema, value wfvalue.Value) []streamyerrors.FieldError {
	if schema == nil {
		return nil
	}
	return validateAt(schema, value, "params")
}

func validateAt(schema *Schema, value wfvalue.Value, path string) []streamyerrors.FieldError {
	if !kindMatches(schema.Type, value) {
		return []streamyerrors.FieldError{{Path: path, Message: fmt.Sprintf("expected %s", schema.Type)}}
	}

	switch schema.Type {
	case "object":
		return validateObject(schema, value, path)
	case "array":
		return validateArray(schema, value, path)
	default:
		return nil
	}
}

func validateObject(schema *Schema, value wfvalue.Value, path string) []streamyerrors.FieldError {
	var failures []streamyerrors.FieldError

	m, _ := value.AsMap()

	missing := make([]string, 0)
	for _, req := range schema.Required {
		if _, ok := m[req]; !ok {
			missing = append(missing, req)
		}
	}
	sort.Strings(missing)
	for _, req := range missing {
		failures = append(failures, streamyerrors.FieldError{
			Path:    fmt.Sprintf("%s.%s", path, req),
			Message: "required field missing",
		})
	}

	keys := make([]string, 0, len(schema.Properties))
	for k := range schema.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		propSchema := schema.Properties[key]
		v, ok := m[key]
		if !ok {
			continue
		}
		failures = append(failures, validateAt(propSchema, v, fmt.Sprintf("%s.%s", path, key))...)
	}

	return failures
}

func validateArray(schema *Schema, value wfvalue.Value, path string) []streamyerrors.FieldError {
	if schema.Items == nil {
		return nil
	}
	list, _ := value.AsList()

	var failures []streamyerrors.FieldError
	for i, item := range list {
		failures = append(failures, validateAt(schema.Items, item, fmt.Sprintf("%s[%d]", path, i))...)
	}
	return failures
}

func kindMatches(schemaType string, value wfvalue.Value) bool {
	switch schemaType {
	case "string":
		_, ok := value.AsString()
		return ok
	case "number":
		_, ok := value.AsNumber()
		return ok
	case "boolean":
		_, ok := value.AsBool()
		return ok
	case "object":
		_, ok := value.AsMap()
		return ok
	case "array":
		_, ok := value.AsList()
		return ok
	default:
		return true
	}
}
