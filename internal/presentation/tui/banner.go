package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the armlab banner, colored when w is a color terminal.
func PrintBanner(w io.Writer) {
	out := termenv.NewOutput(w)
	lines := []struct{ text, color string }{
		{"     _                   _       _     ", "#f97316"},
		{"    / \\   _ __ _ __ ___ | | __ _| |__  ", "#fb923c"},
		{"   / _ \\ | '__| '_ ` _ \\| |/ _` | '_ \\ ", "#fbbf24"},
		{"  / ___ \\| |  | | | | | | | (_| | |_) |", "#facc15"},
		{" /_/   \\_\\_|  |_| |_| |_|_|\\__,_|_.__/ ", "#a3e635"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w)
}

// Styler colors prompt chrome. Non-terminal writers get plain text.
type Styler struct {
	out *termenv.Output
}

// NewStyler detects the color profile of w.
func NewStyler(w io.Writer) Styler {
	return Styler{out: termenv.NewOutput(w)}
}

// Prompt styles an input prompt.
func (s Styler) Prompt(text string) string {
	return s.out.String(text).Foreground(s.out.Color("#818cf8")).Bold().String()
}

// Muted styles secondary text such as hints and progress.
func (s Styler) Muted(text string) string {
	return s.out.String(text).Faint().String()
}

// Alert styles errors.
func (s Styler) Alert(text string) string {
	return s.out.String(text).Foreground(s.out.Color("#f87171")).String()
}
