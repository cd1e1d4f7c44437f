package server

import (
	"errors"
	"io"
	"os"
)

// RWC joins a reader and a writer into the io.ReadWriteCloser that
// jsonrpc2 streams are built on
type RWC struct {
	r io.ReadCloser
	w io.WriteCloser
}

// NewStdRWC returns an RWC over the process's stdin and stdout, the
// transport editors speak to us on.
func NewStdRWC() *RWC {
	return &RWC{r: os.Stdin, w: os.Stdout}
}

// NewRWC pairs an arbitrary reader and writer. Tests use this with
// io.Pipe.
func NewRWC(r io.ReadCloser, w io.WriteCloser) *RWC {
	return &RWC{r: r, w: w}
}

func (rw *RWC) Read(p []byte) (int, error)  { return rw.r.Read(p) }
func (rw *RWC) Write(p []byte) (int, error) { return rw.w.Write(p) }

func (rw *RWC) Close() error {
	var errs []error
	if rw.r != nil {
		errs = append(errs, rw.r.Close())
	}
	if rw.w != nil {
		errs = append(errs, rw.w.Close())
	}
	return errors.Join(errs...)
}
