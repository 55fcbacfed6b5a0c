// ABOUTME: Text and JSON output for CLI commands
// ABOUTME: Text output uses the colored status lines of the server banner

package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
)

var validFormats = []string{"text", "json"}

type printer struct {
	format string
	out    io.Writer
}

func (p *printer) isJSON() bool { return p.format == "json" }

// JSON writes v indented.
func (p *printer) JSON(v any) error {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Status prints "▶ label value".
func (p *printer) Status(label string, value any) {
	fmt.Fprint(p.out, color.GreenString("▶ "))
	fmt.Fprintf(p.out, "%-12s %v\n", label+":", value)
}

// Warn prints a yellow "!" line.
func (p *printer) Warn(format string, args ...any) {
	fmt.Fprint(p.out, color.YellowString("! "))
	fmt.Fprintf(p.out, format+"\n", args...)
}

// Fail prints a red "✗" line.
func (p *printer) Fail(format string, args ...any) {
	fmt.Fprint(p.out, color.New(color.FgRed, color.Bold).Sprint("✗ "))
	fmt.Fprintf(p.out, format+"\n", args...)
}

// OK prints a green "✓" line.
func (p *printer) OK(format string, args ...any) {
	fmt.Fprint(p.out, color.GreenString("✓ "))
	fmt.Fprintf(p.out, format+"\n", args...)
}

// Line prints plain text.
func (p *printer) Line(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

// Dim prints gray text.
func (p *printer) Dim(format string, args ...any) {
	fmt.Fprintln(p.out, color.HiBlackString(format, args...))
}
