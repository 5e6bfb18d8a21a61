package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleIdea(t *testing.T) Value {
	t.Helper()
	v, err := ParseJSON([]byte(`{
		"id": "6912",
		"name": "Dark mode",
		"score": 85,
		"archived": false,
		"workflow_status": {"name": "Under review"},
		"assigned_to": null,
		"categories": [{"name": "UI Design"}, {"name": "Mobile"}],
		"custom_fields": [
			{"name": "Segment", "value": "Enterprise"},
			{"name": "Region", "value": "EU"},
			{"name": "Tier", "value": 3}
		]
	}`))
	require.NoError(t, err)
	return v
}

func TestValue_Resolve(t *testing.T) {
	idea := sampleIdea(t)

	v, ok := idea.Resolve("custom_fields.2.value")
	require.True(t, ok)
	n, isNumber := v.AsNumber()
	require.True(t, isNumber)
	assert.Equal(t, 3.0, n)

	v, ok = idea.Resolve("workflow_status.name")
	require.True(t, ok)
	s, _ := v.AsString()
	assert.Equal(t, "Under review", s)

	v, ok = idea.Resolve("categories")
	require.True(t, ok)
	assert.Equal(t, KindList, v.Kind())
	assert.Equal(t, 2, v.Len())
}

func TestValue_Resolve_Absent(t *testing.T) {
	idea := sampleIdea(t)

	for _, path := range []string{
		"",
		"missing",
		"custom_fields.3.value",
		"custom_fields.-1.value",
		"custom_fields.x.value",
		"custom_fields.+1.value",
		"name.first",
		"workflow_status.name.extra",
		"score.0",
	} {
		t.Run(path, func(t *testing.T) {
			_, ok := idea.Resolve(path)
			assert.False(t, ok)
		})
	}
}

func TestValue_NullIsPresentForResolveButAbsentForLookup(t *testing.T) {
	idea := sampleIdea(t)

	v, ok := idea.Resolve("assigned_to")
	require.True(t, ok)
	assert.True(t, v.IsNull())

	_, ok = idea.Lookup("assigned_to")
	assert.False(t, ok)
	_, ok = idea.Lookup("assigned_to.email")
	assert.False(t, ok)
	assert.Equal(t, "", idea.Str("assigned_to.email"))
}

func TestValue_Str(t *testing.T) {
	idea := sampleIdea(t)

	assert.Equal(t, "Dark mode", idea.Str("name"))
	assert.Equal(t, "85", idea.Str("score"))
	assert.Equal(t, "false", idea.Str("archived"))
	assert.Equal(t, `{"name":"Under review"}`, idea.Str("workflow_status"))
}

func TestValue_Truthy(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		want bool
	}{
		{"null", Null(), false},
		{"false", Bool(false), false},
		{"true", Bool(true), true},
		{"zero", Number(0), false},
		{"number", Number(1.5), true},
		{"empty string", String(""), false},
		{"string", String("x"), true},
		{"empty list", List(), false},
		{"list", List(Null()), true},
		{"empty map", Map(nil), false},
		{"map", Map(map[string]Value{"a": Null()}), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.v.Truthy())
		})
	}
}

func TestValue_KeysAreSorted(t *testing.T) {
	v := Map(map[string]Value{"b": Number(1), "a": Number(2), "c": Number(3)})
	assert.Equal(t, []string{"a", "b", "c"}, v.Keys())
	assert.Nil(t, String("x").Keys())
}

func TestValue_InterfaceAndMarshal(t *testing.T) {
	idea := sampleIdea(t)

	segment, ok := idea.Lookup("custom_fields.0")
	require.True(t, ok)
	assert.Equal(t, map[string]interface{}{"name": "Segment", "value": "Enterprise"}, segment.Interface())

	data, err := json.Marshal(List(String("a"), Number(2), Null()))
	require.NoError(t, err)
	assert.JSONEq(t, `["a", 2, null]`, string(data))
}

func TestFromInterface_Unsupported(t *testing.T) {
	_, err := FromInterface(struct{}{})
	assert.Error(t, err)
}

func TestParseJSON_Invalid(t *testing.T) {
	_, err := ParseJSON([]byte(`{"id":`))
	assert.Error(t, err)
}
