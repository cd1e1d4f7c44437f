package yaml2lua

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
)

func TestVerify(t *testing.T) {
	literal, err := Parse([]byte("a: 1\nlist:\n  - x\n"))
	require.NoError(t, err)
	require.NoError(t, Verify(literal))
}

func TestVerifyRejectsInfinitySpellings(t *testing.T) {
	// .inf passes through the converter as written and is not valid lua
	literal, err := Parse([]byte("a: .inf\n"))
	require.NoError(t, err)
	require.Error(t, Verify(literal))
}

func TestVerifyRejectsGarbage(t *testing.T) {
	require.Error(t, Verify("{ this is not lua"))
}

func TestOutputLoadsInLua(t *testing.T) {
	src := `
string: str
int: 420
float: 4.2
bool: true
nil: null
array:
  - first
  - 12345
  - false
escape: "with \"quotes\" and\nnewlines"
1: number key
true: bool key
`
	literal, err := Parse([]byte(src))
	require.NoError(t, err)

	L := lua.NewState()
	defer L.Close()
	require.NoError(t, L.DoString("return "+literal))

	tbl, ok := L.Get(-1).(*lua.LTable)
	require.True(t, ok, "chunk should return a table")

	assert.Equal(t, lua.LString("str"), tbl.RawGetString("string"))
	assert.Equal(t, lua.LNumber(420), tbl.RawGetString("int"))
	assert.Equal(t, lua.LNumber(4.2), tbl.RawGetString("float"))
	assert.Equal(t, lua.LTrue, tbl.RawGetString("bool"))
	assert.Equal(t, lua.LNil, tbl.RawGetString("nil"))

	arr, ok := tbl.RawGetString("array").(*lua.LTable)
	require.True(t, ok, "array should be a table")
	assert.Equal(t, lua.LString("first"), arr.RawGetInt(1))
	assert.Equal(t, lua.LNumber(12345), arr.RawGetInt(2))
	assert.Equal(t, lua.LFalse, arr.RawGetInt(3))

	assert.Equal(t, lua.LString("with \"quotes\" and\nnewlines"), tbl.RawGetString("escape"))
	assert.Equal(t, lua.LString("number key"), tbl.RawGet(lua.LNumber(1)))
	assert.Equal(t, lua.LString("bool key"), tbl.RawGet(lua.LTrue))
}

func TestTaggedOutputLoadsInLua(t *testing.T) {
	literal, err := Parse([]byte("test: !Tag\n  x: 5\n"))
	require.NoError(t, err)

	L := lua.NewState()
	defer L.Close()
	require.NoError(t, L.DoString("return "+literal))

	tbl, ok := L.Get(-1).(*lua.LTable)
	require.True(t, ok)

	wrapper, ok := tbl.RawGetString("test").(*lua.LTable)
	require.True(t, ok)
	inner, ok := wrapper.RawGetString("Tag").(*lua.LTable)
	require.True(t, ok)
	assert.Equal(t, lua.LNumber(5), inner.RawGetString("x"))
}
