package tool

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/streamy/internal/wfvalue"
)

func TestValidateNilSchemaAlwaysPasses(t *testing.T) {
	t.Parallel()
	require.Empty(t, Validate(nil, wfvalue.Null()))
}

func TestValidateObjectRequiredFields(t *testing.T) {
	t.Parallel()

	schema := &Schema{
		Type:     "object",
		Required: []string{"name", "age"},
		Properties: map[string]*Schema{
			"name": {Type: "string"},
			"age":  {Type: "number"},
		},
	}

	failures := Validate(schema, wfvalue.Map(map[string]wfvalue.Value{
		"name": wfvalue.String("ada"),
	}))
	require.Len(t, failures, 1)
	require.Equal(t, "params.age", failures[0].Path)
}

func TestValidateObjectPropertyTypeMismatch(t *testing.T) {
	t.Parallel()

	schema := &Schema{
		Type: "object",
		Properties: map[string]*Schema{
			"age": {Type: "number"},
		},
	}

	failures := Validate(schema, wfvalue.Map(map[string]wfvalue.Value{
		"age": wfvalue.String("not a number"),
	}))
	require.Len(t, failures, 1)
	require.Equal(t, "params.age", failures[0].Path)
}

func TestValidateArrayElementsRecursively(t *testing.T) {
	t.Parallel()

	schema := &Schema{
		Type:  "array",
		Items: &Schema{Type: "string"},
	}

	failures := Validate(schema, wfvalue.List(wfvalue.String("a"), wfvalue.Number(1), wfvalue.String("c")))
	require.Len(t, failures, 1)
	require.Equal(t, "params[1]", failures[0].Path)
}

func TestValidateTopLevelTypeMismatch(t *testing.T) {
	t.Parallel()

	schema := &Schema{Type: "object"}
	failures := Validate(schema, wfvalue.String("not an object"))
	require.Len(t, failures, 1)
	require.Equal(t, "params", failures[0].Path)
}

func TestValidateAllowsAdditionalProperties(t *testing.T) {
	t.Parallel()

	schema := &Schema{
		Type:       "object",
		Properties: map[string]*Schema{"name": {Type: "string"}},
	}

	failures := Validate(schema, wfvalue.Map(map[string]wfvalue.Value{
		"name":  wfvalue.String("ada"),
		"extra": wfvalue.Bool(true),
	}))
	require.Empty(t, failures)
}

func TestValidateNestedObjectInArray(t *testing.T) {
	t.Parallel()

	schema := &Schema{
		Type: "array",
		Items: &Schema{
			Type:     "object",
			Required: []string{"id"},
		},
	}

	failures := Validate(schema, wfvalue.List(
		wfvalue.Map(map[string]wfvalue.Value{"id": wfvalue.String("a")}),
		wfvalue.Map(map[string]wfvalue.Value{}),
	))
	require.Len(t, failures, 1)
	require.Equal(t, "params[1].id", failures[0].Path)
}
