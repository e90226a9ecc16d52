package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func propertyNames(n *Node) []string {
	names := make([]string, 0, len(n.Properties))
	for _, p := range n.Properties {
		names = append(names, p.Name)
	}
	return names
}

func TestParse_KeepsPropertyOrder(t *testing.T) {
	t.Parallel()

	n, err := ParseString("res_body", `{"type":"object","properties":{"zeta":{"type":"string"},"alpha":{"type":"number"},"mid":{"type":"boolean"}}}`)
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, KindObject, n.Kind)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, propertyNames(n))
}

func TestParse_NormalizesKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want Kind
	}{
		{name: "upper case", in: `{"type":"OBJECT"}`, want: KindObject},
		{name: "mixed case", in: `{"type":"Integer"}`, want: KindInteger},
		{name: "missing", in: `{"description":"x"}`, want: KindString},
		{name: "non string", in: `{"type":["string","null"]}`, want: KindString},
		{name: "unknown kept", in: `{"type":"Date"}`, want: Kind("date")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			n, err := ParseString("", tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, n.Kind)
		})
	}
}

func TestParse_RequiredMarkers(t *testing.T) {
	t.Parallel()

	n, err := ParseString("", `{
		"type":"object",
		"required":["a"],
		"properties":{
			"a":{"type":"string"},
			"b":{"type":"string","required":true},
			"c":{"type":"string","required":"1"},
			"d":{"type":"object","required":["d"]},
			"e":{"type":"string"},
			"f":{"type":"string","required":"0"}
		}
	}`)
	require.NoError(t, err)

	for name, want := range map[string]bool{"a": true, "b": true, "c": true, "d": true, "e": false, "f": false, "missing": false} {
		assert.Equal(t, want, n.IsRequired(name), "property %s", name)
	}
}

func TestParse_NonObjectPropertyBecomesNil(t *testing.T) {
	t.Parallel()

	n, err := ParseString("", `{"type":"object","properties":{"x":"string","y":{"type":"number"}}}`)
	require.NoError(t, err)
	require.Len(t, n.Properties, 2)
	assert.Nil(t, n.Properties[0].Node)
	assert.Equal(t, KindNumber, n.Properties[1].Node.Kind)
}

func TestParse_DuplicateKeysLastWins(t *testing.T) {
	t.Parallel()

	n, err := ParseString("", `{"type":"object","properties":{"a":{"type":"string"},"b":{"type":"string"},"a":{"type":"number"}}}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, propertyNames(n))
	assert.Equal(t, KindNumber, n.Property("a").Kind)
}

func TestParse_ArrayItems(t *testing.T) {
	t.Parallel()

	n, err := ParseString("", `{"type":"array","items":{"type":"object","properties":{"id":{"type":"integer"}}}}`)
	require.NoError(t, err)
	require.NotNil(t, n.Items)
	assert.Equal(t, KindArray, n.Kind)
	assert.Equal(t, KindObject, n.Items.Kind)
	assert.Equal(t, KindInteger, n.Items.Property("id").Kind)
}

func TestParse_InvalidJSON(t *testing.T) {
	t.Parallel()

	for _, in := range []string{`{"type":`, `not json`, `{"type":"object"} trailing`, ``} {
		_, err := ParseString("res_body", in)
		require.Error(t, err, "input %q", in)
		var pe *ParseError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, "res_body", pe.Section)
	}
}

func TestParse_RootNotObject(t *testing.T) {
	t.Parallel()

	n, err := ParseString("", `[1,2,3]`)
	require.NoError(t, err)
	assert.Nil(t, n)
}

func TestDrill(t *testing.T) {
	t.Parallel()

	root, err := ParseString("", `{"type":"object","properties":{"data":{"type":"object","properties":{"page":{"type":"object","properties":{"list":{"type":"array"}}}}}}}`)
	require.NoError(t, err)

	assert.Equal(t, []string{"page"}, propertyNames(root.Drill("data")))
	assert.Equal(t, []string{"list"}, propertyNames(root.Drill("data.page")))

	missing := root.Drill("data.nope.deeper")
	require.NotNil(t, missing)
	assert.Equal(t, KindObject, missing.Kind)
	assert.False(t, missing.HasProperties())

	var nilRoot *Node
	assert.False(t, nilRoot.Drill("data").HasProperties())
}

func TestParse_TreeIsReusable(t *testing.T) {
	t.Parallel()

	root, err := ParseString("", `{"type":"OBJECT","properties":{"data":{"type":"Object","properties":{"id":{"type":"STRING"}}}}}`)
	require.NoError(t, err)

	first := root.Drill("data")
	second := root.Drill("data")
	assert.Same(t, first, second)
	assert.Equal(t, KindString, first.Property("id").Kind)
	assert.Equal(t, KindObject, root.Kind)
}
