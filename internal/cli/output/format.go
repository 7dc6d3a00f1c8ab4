// Package output renders CLI command results as tables, JSON or YAML.
package output

import (
	"fmt"
	"io"
	"strings"
)

// Format selects how command output is rendered.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat maps a --output flag value to a Format. The empty string
// means table.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "table":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("invalid output format %q (valid: table, json, yaml)", s)
	}
}

func (f Format) String() string { return string(f) }

// Printer writes status lines for interactive table output, with ANSI
// colour when the terminal supports it.
type Printer struct {
	out   io.Writer
	color bool
}

func NewPrinter(out io.Writer, color bool) *Printer {
	return &Printer{out: out, color: color}
}

// Success prints msg in green when colour is on.
func (p *Printer) Success(msg string) {
	if p.color {
		fmt.Fprintf(p.out, "\033[32m%s\033[0m\n", msg)
		return
	}
	fmt.Fprintln(p.out, msg)
}

// Error prints msg in red when colour is on.
func (p *Printer) Error(msg string) {
	if p.color {
		fmt.Fprintf(p.out, "\033[31m%s\033[0m\n", msg)
		return
	}
	fmt.Fprintln(p.out, msg)
}
