package yaml2lua

import (
	"fmt"
	"io"
	"log/slog"
)

// Options control how a decoded document is rendered.
type Options struct {
	// StrictKeys makes rendering fail on mapping keys that have no Lua
	// table key form (null, sequence, mapping and tagged keys) instead
	// of silently dropping those entries
	StrictKeys bool
}

// ParseError describes why a YAML document could not be converted.
type ParseError struct {
	Msg string
	// Line and Column are 1-based positions in the source, 0 if unknown
	Line   int
	Column int
	// Err is the underlying decoder error, if any
	Err error
}

func (e *ParseError) Error() string {
	switch {
	case e.Line > 0 && e.Column > 0:
		return fmt.Sprintf("line %d, column %d: %s", e.Line, e.Column, e.Msg)
	case e.Line > 0:
		return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
	default:
		return e.Msg
	}
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse converts a single YAML document into the text of a Lua table
// constructor.
//
// The top level of the document must be a sequence or a mapping. The
// returned literal has no trailing newline and is not a loadable chunk
// on its own; callers that want one should prefix it with "return "
// (see [Writer]).
func Parse(src []byte) (string, error) {
	return ParseWithOptions(src, Options{})
}

// ParseWithOptions is [Parse] with explicit rendering options.
func ParseWithOptions(src []byte, opts Options) (string, error) {
	root, err := decode(src)
	if err != nil {
		return "", err
	}
	return Render(root, opts)
}

// Parser decodes YAML sources into [Document] values.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// ParseYAMLDoc parses a YAML document into its constituent parts:
// the decoded value tree plus any pragmas found in comments at the
// top of the file.
func (p *Parser) ParseYAMLDoc(r io.Reader, md MetaData) (*Document, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	slog.Debug("parsing yaml document", "source", md.AbsSource, "bytes", len(content))

	root, pragmas, err := decodeDocument(content)
	if err != nil {
		return nil, err
	}

	return &Document{
		Metadata: md,
		Pragmas:  pragmas,
		Root:     root,
	}, nil
}
