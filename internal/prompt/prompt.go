// Package prompt asks yes/no questions, with a form on a terminal and a
// plain line reader otherwise.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// Prompt implements the confirmation boundary used by undo -unchanged.
type Prompt struct {
	in          *bufio.Reader
	out         io.Writer
	interactive bool
}

// New returns a Prompt reading from in; a terminal gets an interactive form.
func New(in *os.File, out io.Writer) *Prompt {
	return &Prompt{
		in:          bufio.NewReader(in),
		out:         out,
		interactive: term.IsTerminal(int(in.Fd())),
	}
}

// NewReader returns a line-based Prompt, for pipes and tests.
func NewReader(in io.Reader, out io.Writer) *Prompt {
	return &Prompt{in: bufio.NewReader(in), out: out}
}

// Ask asks question and reports whether the answer was yes. End of input
// and an aborted form count as no.
func (p *Prompt) Ask(question string) (bool, error) {
	if p.interactive {
		return p.askForm(question)
	}

	fmt.Fprintf(p.out, "%s (Yes/No) ", question)
	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("reading answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func (p *Prompt) askForm(question string) (bool, error) {
	var ok bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(question).
				Affirmative("Yes").
				Negative("No").
				Value(&ok),
		),
	)
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, fmt.Errorf("prompt: %w", err)
	}
	return ok, nil
}
