package report

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Printer writes operator-facing verdict lines, styled when the terminal
// supports color and plain otherwise.
type Printer struct {
	writer io.Writer
	styled bool
	mu     sync.Mutex
}

// Option configures a Printer.
type Option func(*Printer)

// WithStyles forces styling on or off instead of detecting it.
func WithStyles(styled bool) Option {
	return func(p *Printer) { p.styled = styled }
}

// NewPrinter creates a printer writing to w.
func NewPrinter(w io.Writer, options ...Option) *Printer {
	p := &Printer{
		writer: w,
		styled: lipgloss.ColorProfile() != termenv.Ascii,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	commandStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
)

// Success prints a passing verdict.
func (p *Printer) Success(text string) {
	p.line("✓ ", successStyle, text)
}

// Warning prints a non-fatal problem.
func (p *Printer) Warning(text string) {
	p.line("! ", warningStyle, text)
}

// Error prints a failing verdict.
func (p *Printer) Error(text string) {
	p.line("✗ ", errorStyle, text)
}

// Command prints a command the operator should run, indented.
func (p *Printer) Command(text string) {
	p.line("    $ ", commandStyle, text)
}

func (p *Printer) line(marker string, style lipgloss.Style, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.styled {
		text = style.Render(text)
	}
	_, _ = fmt.Fprintf(p.writer, "%s%s\n", marker, text)
}
