package yaml2lua

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func str(s string) *Value   { return &Value{Kind: KindString, Str: s} }
func num(n string) *Value   { return &Value{Kind: KindNumber, Number: n} }
func boolean(b bool) *Value { return &Value{Kind: KindBool, Bool: b} }
func null() *Value          { return &Value{Kind: KindNull} }

func seq(items ...*Value) *Value {
	return &Value{Kind: KindSequence, Items: items}
}

func mapping(entries ...Entry) *Value {
	return &Value{Kind: KindMapping, Entries: entries}
}

func TestRenderHandBuiltTrees(t *testing.T) {
	tests := []struct {
		name string
		root *Value
		want string
	}{
		{
			name: "empty mapping",
			root: mapping(),
			want: "{\n}",
		},
		{
			name: "empty sequence",
			root: seq(),
			want: "{\n}",
		},
		{
			name: "empty nested containers",
			root: mapping(
				Entry{Key: str("a"), Value: seq()},
				Entry{Key: str("b"), Value: mapping()},
			),
			want: "{\n\t[\"a\"] = {\n\t},\n\t[\"b\"] = {\n\t},\n}",
		},
		{
			name: "bool and number keys",
			root: mapping(
				Entry{Key: boolean(false), Value: str("no")},
				Entry{Key: num("7"), Value: null()},
			),
			want: "{\n\t[false] = \"no\",\n\t[7] = nil,\n}",
		},
		{
			name: "null key drops whole entry",
			root: mapping(
				Entry{Key: null(), Value: str("gone")},
				Entry{Key: str("kept"), Value: num("1")},
			),
			want: "{\n\t[\"kept\"] = 1,\n}",
		},
		{
			name: "sequence key drops whole entry",
			root: mapping(
				Entry{Key: seq(num("1")), Value: str("gone")},
			),
			want: "{\n}",
		},
		{
			name: "mapping key drops whole entry",
			root: mapping(
				Entry{Key: mapping(), Value: str("gone")},
			),
			want: "{\n}",
		},
		{
			name: "tagged key drops whole entry",
			root: mapping(
				Entry{Key: &Value{Kind: KindTagged, Tag: "T", Inner: num("1")}, Value: str("gone")},
			),
			want: "{\n}",
		},
		{
			name: "dropped entry leaves no gap between neighbours",
			root: mapping(
				Entry{Key: str("a"), Value: num("1")},
				Entry{Key: null(), Value: str("gone")},
				Entry{Key: str("b"), Value: num("2")},
			),
			want: "{\n\t[\"a\"] = 1,\n\t[\"b\"] = 2,\n}",
		},
		{
			name: "tagged scalar splices onto key line",
			root: mapping(
				Entry{Key: str("a"), Value: &Value{Kind: KindTagged, Tag: "T", Inner: num("5")}},
			),
			want: "{\n\t[\"a\"] = {\n\t\t[\"T\"] = 5,\n\t},\n}",
		},
		{
			name: "tagged mapping splices block",
			root: mapping(
				Entry{Key: str("test"), Value: &Value{
					Kind:  KindTagged,
					Tag:   "Tag",
					Inner: mapping(Entry{Key: str("x"), Value: num("5")}),
				}},
			),
			want: "{\n\t[\"test\"] = {\n\t\t[\"Tag\"] = {\n\t\t\t[\"x\"] = 5,\n\t\t},\n\t},\n}",
		},
		{
			name: "nested tagged inside tagged",
			root: seq(&Value{
				Kind: KindTagged,
				Tag:  "Outer",
				Inner: &Value{
					Kind:  KindTagged,
					Tag:   "Inner",
					Inner: num("1"),
				},
			}),
			want: "{\n\t{\n\t\t[\"Outer\"] = {\n\t\t\t[\"Inner\"] = 1,\n\t\t},\n\t},\n}",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Render(tc.root, Options{})
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestRenderStrictKeys(t *testing.T) {
	root := mapping(
		Entry{Key: null(), Value: str("v")},
	)

	// permissive mode drops the entry
	got, err := Render(root, Options{})
	require.NoError(t, err)
	assert.Equal(t, "{\n}", got)

	// strict mode reports it
	_, err = Render(root, Options{StrictKeys: true})
	require.Error(t, err)

	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Msg, "null")
}

func TestRenderStrictKeysNested(t *testing.T) {
	root := mapping(
		Entry{Key: str("outer"), Value: mapping(
			Entry{Key: seq(), Value: str("v")},
		)},
	)

	_, err := Render(root, Options{StrictKeys: true})
	require.Error(t, err)
}

func TestRenderRejectsScalarRoot(t *testing.T) {
	_, err := Render(str("bare"), Options{})
	require.Error(t, err)

	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Msg, "top level")
}

func TestKindString(t *testing.T) {
	kinds := map[Kind]string{
		KindNull:     "null",
		KindBool:     "bool",
		KindNumber:   "number",
		KindString:   "string",
		KindSequence: "sequence",
		KindMapping:  "mapping",
		KindTagged:   "tagged",
		Kind(99):     "unknown",
	}
	for k, want := range kinds {
		assert.Equal(t, want, k.String())
	}
}
