// Package ui prints leveled, colored progress lines and report blocks for
// the bootstrap and verify commands. Styling is dropped automatically when
// output is not an interactive terminal.
package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// Logger writes leveled progress lines. Info and warnings go to out,
// errors to errOut.
type Logger struct {
	out    io.Writer
	errOut io.Writer
	styled bool
}

// NewLogger returns a Logger on stdout/stderr, styled when stdout is an
// interactive terminal.
func NewLogger() *Logger {
	return &Logger{
		out:    os.Stdout,
		errOut: os.Stderr,
		styled: isatty.IsTerminal(os.Stdout.Fd()),
	}
}

// NewTestLogger returns an unstyled Logger writing everything to w.
func NewTestLogger(w io.Writer) *Logger {
	return &Logger{out: w, errOut: w}
}

func (l *Logger) line(w io.Writer, mark, text string, style func(...string) string) {
	if l.styled {
		mark = style(mark)
	}
	_, _ = fmt.Fprintf(w, "%s %s\n", mark, text)
}

// Info logs a progress line.
func (l *Logger) Info(format string, args ...any) {
	l.line(l.out, infoMark, fmt.Sprintf(format, args...), infoStyle.Render)
}

// Success logs a completed-step line.
func (l *Logger) Success(format string, args ...any) {
	l.line(l.out, checkMark, fmt.Sprintf(format, args...), successStyle.Render)
}

// Warn logs a degraded-but-continuing condition.
func (l *Logger) Warn(format string, args ...any) {
	l.line(l.out, warnMark, fmt.Sprintf(format, args...), warnStyle.Render)
}

// Error logs a fatal condition to stderr.
func (l *Logger) Error(format string, args ...any) {
	l.line(l.errOut, crossMark, fmt.Sprintf(format, args...), errorStyle.Render)
}

// Section prints a styled section heading.
func (l *Logger) Section(title string) {
	if l.styled {
		_, _ = fmt.Fprintln(l.out, sectionStyle.Render(title))
		return
	}
	_, _ = fmt.Fprintf(l.out, "\n%s\n", title)
}

// Detail prints an indented key/value line under the current section.
func (l *Logger) Detail(key, value string) {
	if l.styled {
		_, _ = fmt.Fprintf(l.out, "  %s %s\n", dimStyle.Render(key+":"), value)
		return
	}
	_, _ = fmt.Fprintf(l.out, "  %s: %s\n", key, value)
}
