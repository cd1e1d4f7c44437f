package yaml2lua

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// Verify checks that literal compiles as a Lua expression. It compiles
// "return <literal>" without executing anything, so it is safe to run
// on untrusted output.
//
// A YAML document is not guaranteed to produce valid Lua: .inf, -.inf
// and .nan float spellings pass through the converter as written and
// fail here.
func Verify(literal string) error {
	L := lua.NewState()
	defer L.Close()

	if _, err := L.LoadString("return " + literal); err != nil {
		return fmt.Errorf("output is not a loadable lua chunk: %w", err)
	}
	return nil
}
