// Package termio adapts a raw SSH channel into the line-oriented terminal
// capabilities the chat core consumes: an append-line sink and a
// submitted-line reader.
package termio

import (
	"io"

	"github.com/charmbracelet/x/ansi"
	"golang.org/x/term"
)

// Option configures a Terminal.
type Option func(*Terminal)

// WithStripANSI drops escape sequences from appended lines, for terminals
// that cannot render styling.
func WithStripANSI() Option {
	return func(t *Terminal) { t.strip = true }
}

// Terminal wraps an x/term line terminal for one connection. Writes that
// arrive while a ReadLine is pending repaint the prompt, so broadcasts
// from other members never corrupt the input line.
type Terminal struct {
	term  *term.Terminal
	strip bool
}

func New(rw io.ReadWriter, prompt string, opts ...Option) *Terminal {
	t := &Terminal{term: term.NewTerminal(rw, prompt)}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// AppendLine writes one rendered line to the member's display.
func (t *Terminal) AppendLine(line string) error {
	if t.strip {
		line = ansi.Strip(line)
	}
	_, err := t.term.Write([]byte(line + "\r\n"))
	return err
}

// ReadLine blocks for the next submitted line. It returns io.EOF when the
// channel closes.
func (t *Terminal) ReadLine() (string, error) {
	return t.term.ReadLine()
}

// Resize propagates a window-change event to the terminal's wrap logic.
func (t *Terminal) Resize(width, height int) error {
	return t.term.SetSize(width, height)
}
