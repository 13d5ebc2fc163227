// Package output renders launchdex CLI output: plain or styled text for
// people, JSON for scripts.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Format selects the rendering.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatText, "":
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (use text or json)", s)
	}
}

// Palette.
const (
	colorAccent = "154"
	colorGray   = "245"
	colorDim    = "238"
	colorRed    = "196"
	colorYellow = "220"
)

// Styles holds the text styles. The zero value renders plain text.
type Styles struct {
	Header  lipgloss.Style
	Name    lipgloss.Style
	Plugin  lipgloss.Style
	Dim     lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
}

// ColorStyles returns the styled palette.
func ColorStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorAccent)),
		Name:    lipgloss.NewStyle().Bold(true),
		Plugin:  lipgloss.NewStyle().Foreground(lipgloss.Color(colorGray)),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color(colorDim)),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color(colorAccent)),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color(colorYellow)),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color(colorRed)),
	}
}

// PlainStyles returns unstyled text.
func PlainStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{Header: plain, Name: plain, Plugin: plain, Dim: plain, Success: plain, Warning: plain, Error: plain}
}

// Writer renders to one stream.
type Writer struct {
	out    io.Writer
	format Format
	styles Styles
}

// New creates a Writer. Colors are used only for text output to a terminal
// without NO_COLOR set.
func New(out io.Writer, format Format) *Writer {
	styles := PlainStyles()
	if format == FormatText && IsTTY(out) && !NoColor() {
		styles = ColorStyles()
	}
	return &Writer{out: out, format: format, styles: styles}
}

// NewWithStyles creates a Writer with explicit styles.
func NewWithStyles(out io.Writer, format Format, styles Styles) *Writer {
	return &Writer{out: out, format: format, styles: styles}
}

// IsTTY reports whether w is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// NoColor reports whether NO_COLOR is set.
func NoColor() bool {
	_, ok := os.LookupEnv("NO_COLOR")
	return ok
}

// JSON reports whether the writer emits JSON.
func (w *Writer) JSON() bool { return w.format == FormatJSON }

// WriteJSON encodes v as indented JSON.
func (w *Writer) WriteJSON(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Success prints a success line. Ignored in JSON mode.
func (w *Writer) Success(format string, args ...any) {
	w.status(w.styles.Success, "✓", format, args...)
}

// Warning prints a warning line. Ignored in JSON mode.
func (w *Writer) Warning(format string, args ...any) {
	w.status(w.styles.Warning, "!", format, args...)
}

// Info prints a plain line. Ignored in JSON mode.
func (w *Writer) Info(format string, args ...any) {
	if w.JSON() {
		return
	}
	_, _ = fmt.Fprintf(w.out, format+"\n", args...)
}

func (w *Writer) status(style lipgloss.Style, icon, format string, args ...any) {
	if w.JSON() {
		return
	}
	_, _ = fmt.Fprintf(w.out, "%s %s\n", style.Render(icon), fmt.Sprintf(format, args...))
}
