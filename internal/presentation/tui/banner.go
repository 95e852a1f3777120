package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the topical banner with the given version to w.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	p := out.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{"  _             _           _ ", "#818cf8"},
		{" | |_ ___ _ __ (_) ___ __ _| |", "#a78bfa"},
		{" | __/ _ \\ '_ \\| |/ __/ _` | |", "#c084fc"},
		{" | || (_) | |_) | | (_| (_| | |", "#e879f9"},
		{"  \\__\\___/| .__/|_|\\___\\__,_|_|", "#f472b6"},
		{"          |_|", "#fb7185"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, termenv.String("  v"+version).Faint())
	fmt.Fprintln(w)
}
