package yaml2lua

import (
	"fmt"
	"io"
	"time"
)

const VERSION = "0.1.0"

type WriteMode int

const (
	// ModePretty writes a provenance banner before the Lua chunk
	ModePretty WriteMode = iota
	// ModeShadow writes only the chunk, for machine consumers
	ModeShadow
)

// WriterMetadata is the provenance recorded in pretty output
type WriterMetadata struct {
	Version   string
	AbsSource string
	Generated string
}

// Writer serializes a parsed document to its final .lua form
type Writer struct {
	mode WriteMode
	opts Options
}

func NewWriter(mode WriteMode, opts Options) *Writer {
	return &Writer{
		mode: mode,
		opts: opts,
	}
}

// Write emits the full output for doc: banner (in pretty mode) followed
// by the loadable chunk.
func (w *Writer) Write(doc *Document, out io.Writer, version string, now time.Time) error {
	if w.mode == ModePretty {
		md := WriterMetadata{
			Version:   version,
			AbsSource: doc.Metadata.AbsSource,
			Generated: now.Format(time.RFC3339),
		}
		if err := w.WriteHeader(out, md); err != nil {
			return err
		}
	}
	return w.WriteContent(doc, out)
}

// WriteHeader writes the banner recording where the output came from
func (w *Writer) WriteHeader(out io.Writer, md WriterMetadata) error {
	_, err := fmt.Fprintf(out, `-- Generated by yaml2lua %s
-- Source: %s
-- Generated at: %s
--
-- Changes to this file will be lost on the next conversion.
-- Edit the YAML source instead.

`, md.Version, md.AbsSource, md.Generated)
	return err
}

// WriteContent renders the document and writes it as a loadable chunk,
// returning the table from a bare "return" statement.
func (w *Writer) WriteContent(doc *Document, out io.Writer) error {
	literal, err := Render(doc.Root, w.opts)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "return %s\n", literal)
	return err
}
