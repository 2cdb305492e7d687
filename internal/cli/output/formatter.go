// Package output provides output formatting for the stashkv CLI.
package output

import (
	"fmt"
	"io"
	"strings"
)

// Format represents the output format.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// Formatter formats data for output.
type Formatter interface {
	Format(w io.Writer, data any) error
}

// ParseFormat validates a --output flag value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case "", FormatTable:
		return FormatTable, nil
	case FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table, json or yaml)", s)
	}
}

// NewFormatter creates a formatter for the given format.
func NewFormatter(format Format, noHeaders bool) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{}
	case FormatYAML:
		return &YAMLFormatter{}
	default:
		return &TableFormatter{NoHeaders: noHeaders}
	}
}
