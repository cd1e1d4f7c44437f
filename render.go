package yaml2lua

import (
	"fmt"
	"strconv"
	"strings"
)

// Render produces a Lua table constructor for the root of a decoded
// document. The root must be a sequence or mapping; [decode] guarantees
// that for parsed input, callers building trees by hand must too.
func Render(root *Value, opts Options) (string, error) {
	r := &renderer{strict: opts.StrictKeys}

	var b strings.Builder
	b.WriteString("{\n")

	switch root.Kind {
	case KindSequence:
		for _, item := range root.Items {
			if err := r.entry(&b, nil, item, 1); err != nil {
				return "", err
			}
		}
	case KindMapping:
		for _, e := range root.Entries {
			if err := r.entry(&b, e.Key, e.Value, 1); err != nil {
				return "", err
			}
		}
	default:
		return "", &ParseError{
			Msg:    fmt.Sprintf("top level must be a sequence or mapping, got %s", root.Kind),
			Line:   root.Line,
			Column: root.Column,
		}
	}

	b.WriteString("}")
	return b.String(), nil
}

type renderer struct {
	strict bool
}

// entry emits one table entry: indentation, an optional key prefix, the
// value and the ",\n" terminator. Entries under keys with no Lua table
// key form are dropped before anything is written, or rejected when
// strict keys are on.
func (r *renderer) entry(b *strings.Builder, key, val *Value, depth int) error {
	if key != nil {
		switch key.Kind {
		case KindString, KindNumber, KindBool:
		default:
			if r.strict {
				return &ParseError{
					Msg:    fmt.Sprintf("cannot represent %s as a table key", key.Kind),
					Line:   key.Line,
					Column: key.Column,
				}
			}
			return nil
		}
	}

	b.WriteString(indent(depth))

	if key != nil {
		switch key.Kind {
		case KindString:
			b.WriteString(`["`)
			b.WriteString(escapeString(key.Str))
			b.WriteString(`"] = `)
		case KindNumber:
			b.WriteString("[")
			b.WriteString(key.Number)
			b.WriteString("] = ")
		case KindBool:
			b.WriteString("[")
			b.WriteString(strconv.FormatBool(key.Bool))
			b.WriteString("] = ")
		}
	}

	if err := r.value(b, val, depth); err != nil {
		return err
	}

	b.WriteString(",\n")
	return nil
}

func (r *renderer) value(b *strings.Builder, val *Value, depth int) error {
	switch val.Kind {
	case KindNull:
		b.WriteString("nil")
	case KindBool:
		b.WriteString(strconv.FormatBool(val.Bool))
	case KindNumber:
		b.WriteString(val.Number)
	case KindString:
		b.WriteByte('"')
		b.WriteString(escapeString(val.Str))
		b.WriteByte('"')
	case KindSequence:
		b.WriteString("{\n")
		for _, item := range val.Items {
			if err := r.entry(b, nil, item, depth+1); err != nil {
				return err
			}
		}
		b.WriteString(indent(depth))
		b.WriteByte('}')
	case KindMapping:
		b.WriteString("{\n")
		for _, e := range val.Entries {
			if err := r.entry(b, e.Key, e.Value, depth+1); err != nil {
				return err
			}
		}
		b.WriteString(indent(depth))
		b.WriteByte('}')
	case KindTagged:
		// a tagged value becomes a single entry table keyed by the tag
		// name, spliced so the payload starts on the key's line
		b.WriteString("{\n")
		b.WriteString(indent(depth + 1))
		b.WriteString(`["`)
		b.WriteString(val.Tag)
		b.WriteString(`"] = `)

		var inner strings.Builder
		if err := r.entry(&inner, nil, val.Inner, depth+1); err != nil {
			return err
		}
		b.WriteString(strings.TrimPrefix(inner.String(), indent(depth+1)))

		b.WriteString(indent(depth))
		b.WriteByte('}')
	default:
		return &ParseError{
			Msg:    fmt.Sprintf("cannot render value of kind %s", val.Kind),
			Line:   val.Line,
			Column: val.Column,
		}
	}

	return nil
}

func indent(depth int) string {
	return strings.Repeat("\t", depth)
}
