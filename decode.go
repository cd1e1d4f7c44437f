package yaml2lua

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	pragmaRegex   = regexp.MustCompile(`^@pragma\s+(\w+)\s*:\s*(.+?)\s*$`)
	yamlLineRegex = regexp.MustCompile(`^yaml: line (\d+): (.*)$`)
)

func decode(src []byte) (*Value, error) {
	root, _, err := decodeDocument(src)
	return root, err
}

// decodeDocument decodes exactly one YAML document from src into a Value
// tree. Streams carrying a second document are rejected, as is any
// document whose top level is not a sequence or mapping.
func decodeDocument(src []byte) (*Value, Pragma, error) {
	var pragmas Pragma

	dec := yaml.NewDecoder(bytes.NewReader(src))
	var node yaml.Node
	if err := dec.Decode(&node); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, pragmas, &ParseError{Msg: "empty document"}
		}
		return nil, pragmas, yamlError(err)
	}

	var extra yaml.Node
	switch err := dec.Decode(&extra); {
	case err == nil:
		return nil, pragmas, &ParseError{
			Msg:    "multiple documents in stream",
			Line:   extra.Line,
			Column: extra.Column,
		}
	case !errors.Is(err, io.EOF):
		return nil, pragmas, yamlError(err)
	}

	root := &node
	if root.Kind == yaml.DocumentNode {
		pragmas = extractPragmas(root)
		if len(root.Content) == 0 {
			return nil, pragmas, &ParseError{Msg: "empty document"}
		}
		root = root.Content[0]
	}

	v, err := newValueDecoder().value(root)
	if err != nil {
		return nil, pragmas, err
	}

	switch v.Kind {
	case KindSequence, KindMapping:
		return v, pragmas, nil
	default:
		return nil, pragmas, &ParseError{
			Msg:    fmt.Sprintf("top level must be a sequence or mapping, got %s", v.Kind),
			Line:   root.Line,
			Column: root.Column,
		}
	}
}

type valueDecoder struct {
	// anchors currently being expanded, to reject alias cycles
	visiting map[*yaml.Node]bool
}

func newValueDecoder() *valueDecoder {
	return &valueDecoder{visiting: make(map[*yaml.Node]bool)}
}

func (d *valueDecoder) value(n *yaml.Node) (*Value, error) {
	if n.Kind == yaml.AliasNode {
		target := n.Alias
		if target == nil {
			return nil, &ParseError{Msg: fmt.Sprintf("unresolved alias *%s", n.Value), Line: n.Line, Column: n.Column}
		}
		if d.visiting[target] {
			return nil, &ParseError{Msg: fmt.Sprintf("recursive alias *%s", n.Value), Line: n.Line, Column: n.Column}
		}
		d.visiting[target] = true
		v, err := d.value(target)
		delete(d.visiting, target)
		return v, err
	}

	if isCoreTag(n.Tag) {
		return d.plain(n)
	}

	name, ok := strings.CutPrefix(n.Tag, "!")
	if !ok || name == "" {
		return nil, &ParseError{Msg: fmt.Sprintf("unsupported tag %q", n.Tag), Line: n.Line, Column: n.Column}
	}

	inner, err := d.payload(n)
	if err != nil {
		return nil, err
	}
	return &Value{Kind: KindTagged, Tag: name, Inner: inner, Line: n.Line, Column: n.Column}, nil
}

// isCoreTag reports whether tag is resolved by the core schema rather
// than wrapping its value in a tagged node. The bare "!" non-specific
// tag resolves to the node's default type per the YAML spec.
func isCoreTag(tag string) bool {
	switch tag {
	case "", "!", "!!null", "!!bool", "!!int", "!!float", "!!str",
		"!!seq", "!!map", "!!timestamp", "!!merge", "!!binary":
		return true
	}
	return false
}

func (d *valueDecoder) plain(n *yaml.Node) (*Value, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		return d.coreScalar(n), nil
	case yaml.SequenceNode:
		return d.sequence(n)
	case yaml.MappingNode:
		return d.mapping(n)
	default:
		return nil, &ParseError{Msg: fmt.Sprintf("unexpected node kind %d", n.Kind), Line: n.Line, Column: n.Column}
	}
}

// payload decodes the value carried by a custom tag. The tag suppressed
// the usual resolver, so a scalar payload is re-resolved here as if it
// had been written untagged.
func (d *valueDecoder) payload(n *yaml.Node) (*Value, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		return d.taggedScalarPayload(n), nil
	case yaml.SequenceNode:
		return d.sequence(n)
	case yaml.MappingNode:
		return d.mapping(n)
	default:
		return nil, &ParseError{Msg: fmt.Sprintf("unexpected node kind %d", n.Kind), Line: n.Line, Column: n.Column}
	}
}

// coreScalar converts a scalar already resolved by the core schema.
func (d *valueDecoder) coreScalar(n *yaml.Node) *Value {
	v := &Value{Line: n.Line, Column: n.Column}

	switch n.Tag {
	case "!!null":
		v.Kind = KindNull
	case "!!bool":
		switch n.Value {
		case "true", "True", "TRUE":
			v.Kind = KindBool
			v.Bool = true
		case "false", "False", "FALSE":
			v.Kind = KindBool
			v.Bool = false
		default:
			// yes/no/on/off spellings are bools to the resolver but
			// strings under the core schema this converter follows
			v.Kind = KindString
			v.Str = n.Value
		}
	case "!!int":
		v.Kind = KindNumber
		v.Number = formatInt(n)
	case "!!float":
		v.Kind = KindNumber
		var f float64
		if err := n.Decode(&f); err != nil {
			v.Number = n.Value
			break
		}
		v.Number = formatFloat(f)
	default:
		// !!str, "!", !!timestamp, !!merge and !!binary all keep the
		// scalar text exactly as written
		v.Kind = KindString
		v.Str = n.Value
	}

	return v
}

// taggedScalarPayload resolves the scalar under a custom tag. Quoted and
// block styles always stay strings; plain payloads resolve by value.
func (d *valueDecoder) taggedScalarPayload(n *yaml.Node) *Value {
	v := &Value{Line: n.Line, Column: n.Column}

	const stringStyles = yaml.SingleQuotedStyle | yaml.DoubleQuotedStyle | yaml.LiteralStyle | yaml.FoldedStyle
	if n.Style&stringStyles != 0 {
		v.Kind = KindString
		v.Str = n.Value
		return v
	}

	clone := *n
	clone.Tag = ""
	clone.Style = 0

	var out any
	if err := clone.Decode(&out); err != nil {
		v.Kind = KindString
		v.Str = n.Value
		return v
	}

	switch t := out.(type) {
	case nil:
		v.Kind = KindNull
	case bool:
		switch n.Value {
		case "true", "True", "TRUE", "false", "False", "FALSE":
			v.Kind = KindBool
			v.Bool = t
		default:
			v.Kind = KindString
			v.Str = n.Value
		}
	case int:
		v.Kind = KindNumber
		v.Number = strconv.FormatInt(int64(t), 10)
	case int64:
		v.Kind = KindNumber
		v.Number = strconv.FormatInt(t, 10)
	case uint64:
		v.Kind = KindNumber
		v.Number = strconv.FormatUint(t, 10)
	case float64:
		v.Kind = KindNumber
		v.Number = formatFloat(t)
	case string:
		v.Kind = KindString
		v.Str = t
	case time.Time:
		// timestamps stay as written in the source
		v.Kind = KindString
		v.Str = n.Value
	default:
		v.Kind = KindString
		v.Str = n.Value
	}

	return v
}

func (d *valueDecoder) sequence(n *yaml.Node) (*Value, error) {
	v := &Value{
		Kind:   KindSequence,
		Items:  make([]*Value, 0, len(n.Content)),
		Line:   n.Line,
		Column: n.Column,
	}
	for _, c := range n.Content {
		item, err := d.value(c)
		if err != nil {
			return nil, err
		}
		v.Items = append(v.Items, item)
	}
	return v, nil
}

func (d *valueDecoder) mapping(n *yaml.Node) (*Value, error) {
	v := &Value{
		Kind:    KindMapping,
		Entries: make([]Entry, 0, len(n.Content)/2),
		Line:    n.Line,
		Column:  n.Column,
	}

	// index of each scalar key already seen. A repeated scalar key
	// replaces the earlier value in place, keeping the first position.
	seen := make(map[string]int, len(n.Content)/2)

	for i := 0; i+1 < len(n.Content); i += 2 {
		kn, vn := n.Content[i], n.Content[i+1]

		key, err := d.value(kn)
		if err != nil {
			return nil, err
		}
		val, err := d.value(vn)
		if err != nil {
			return nil, err
		}

		if id, ok := scalarKeyID(key); ok {
			if idx, dup := seen[id]; dup {
				v.Entries[idx].Value = val
				continue
			}
			seen[id] = len(v.Entries)
		}
		v.Entries = append(v.Entries, Entry{Key: key, Value: val})
	}

	return v, nil
}

// scalarKeyID returns a comparable identity for a scalar mapping key.
// Collection and tagged keys never coalesce, they are dropped at render
// time anyway.
func scalarKeyID(k *Value) (string, bool) {
	switch k.Kind {
	case KindNull:
		return "~", true
	case KindBool:
		return "b:" + strconv.FormatBool(k.Bool), true
	case KindNumber:
		return "n:" + k.Number, true
	case KindString:
		return "s:" + k.Str, true
	}
	return "", false
}

// formatInt canonicalizes an integer scalar to base 10, keeping the text
// as written when it overflows both int64 and uint64.
func formatInt(n *yaml.Node) string {
	var i int64
	if err := n.Decode(&i); err == nil {
		return strconv.FormatInt(i, 10)
	}
	var u uint64
	if err := n.Decode(&u); err == nil {
		return strconv.FormatUint(u, 10)
	}
	return n.Value
}

// formatFloat renders a float with the fewest digits that round-trip,
// in fixed notation for mid-range exponents and scientific notation
// outside that range. Non-finite values use their YAML spellings, which
// are not valid Lua; Verify flags them.
func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return ".inf"
	case math.IsInf(f, -1):
		return "-.inf"
	case math.IsNaN(f):
		return ".nan"
	}

	sci := strconv.FormatFloat(f, 'e', -1, 64)
	e := strings.IndexByte(sci, 'e')
	exp, _ := strconv.Atoi(sci[e+1:])

	if exp >= -4 && exp < 16 {
		s := strconv.FormatFloat(f, 'f', -1, 64)
		if !strings.ContainsRune(s, '.') {
			s += ".0"
		}
		return s
	}
	return sci[:e] + "e" + strconv.Itoa(exp)
}

// yamlError converts a yaml.v3 error into a ParseError, pulling the line
// number out of the standard "yaml: line N:" prefix when present.
func yamlError(err error) error {
	var te *yaml.TypeError
	if errors.As(err, &te) {
		return &ParseError{Msg: strings.Join(te.Errors, "; "), Err: err}
	}

	msg := err.Error()
	if m := yamlLineRegex.FindStringSubmatch(msg); m != nil {
		line, _ := strconv.Atoi(m[1])
		return &ParseError{Msg: m[2], Line: line, Err: err}
	}
	return &ParseError{Msg: strings.TrimPrefix(msg, "yaml: "), Err: err}
}

// extractPragmas reads pragma directives from comments above the first
// value of the document.
//
// For example:
//
//	# @pragma output: init.lua
//	server:
//	  port: 8080
//
// sets [Pragma].Output to "init.lua". Comments anywhere below the first
// value are never treated as pragmas.
func extractPragmas(doc *yaml.Node) Pragma {
	var p Pragma

	comments := doc.HeadComment
	if len(doc.Content) > 0 {
		comments += "\n" + doc.Content[0].HeadComment
	}

	for _, line := range strings.Split(comments, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "#"))

		m := pragmaRegex.FindStringSubmatch(line)
		if len(m) != 3 {
			continue
		}
		key, value := m[1], m[2]
		slog.Debug("parsed pragma key value pair", "key", key, "value", value)

		switch key {
		case string(PragmaOutput):
			p.Output = value
		default:
			slog.Debug("unknown pragma key", "key", key)
		}
	}

	return p
}
