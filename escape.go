package yaml2lua

import (
	"fmt"
	"strings"
	"unicode"
)

// escapeString prepares s for embedding between double quotes in a Lua
// chunk. The policy is all or nothing: a string whose backslashes all
// form valid escapes and which contains no raw specials passes through
// verbatim, anything else is re-escaped from scratch.
func escapeString(s string) string {
	if safeForQuoting(s) {
		return s
	}
	return escapeAll(s)
}

// safeForQuoting reports whether s can sit between double quotes as is.
// A backslash is acceptable only when it already starts one of the
// escapes \n \t \r \\ \"; raw newlines, tabs, carriage returns and
// double quotes disqualify the string.
func safeForQuoting(s string) bool {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if i+1 >= len(s) {
				return false
			}
			switch s[i+1] {
			case 'n', 't', 'r', '\\', '"':
				i++
			default:
				return false
			}
		case '\n', '\t', '\r', '"':
			return false
		}
	}
	return true
}

// escapeAll rewrites every character of s into its canonical escaped
// form. Control characters outside the named escapes become decimal
// byte escapes, which load identically on every Lua version.
func escapeAll(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)

	for _, r := range s {
		switch r {
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		default:
			switch {
			case r < 0x20 || r == 0x7f:
				fmt.Fprintf(&b, `\%03d`, r)
			case r > 0x7f && unicode.IsControl(r):
				for _, c := range []byte(string(r)) {
					fmt.Fprintf(&b, `\%03d`, c)
				}
			default:
				b.WriteRune(r)
			}
		}
	}

	return b.String()
}
