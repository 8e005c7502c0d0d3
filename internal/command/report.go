package command

import (
	"fmt"
	"io"
)

// Reporter is the line-oriented output boundary.
type Reporter interface {
	Info(msg string)
	Error(msg string)
}

// WriterReporter writes informational lines to Out and errors to Err.
type WriterReporter struct {
	Out io.Writer
	Err io.Writer
}

func (r WriterReporter) Info(msg string) {
	if r.Out != nil {
		fmt.Fprintln(r.Out, msg)
	}
}

func (r WriterReporter) Error(msg string) {
	if r.Err != nil {
		fmt.Fprintln(r.Err, "Error: "+msg)
	}
}
