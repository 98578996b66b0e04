// Package output renders check records for the terminal or for other tools.
package output

import (
	"fmt"
	"io"

	"github.com/jmylchreest/farewatch/pkg/fares"
)

// Format represents output format types.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
)

// Formats lists the accepted --output values.
var Formats = []Format{FormatTable, FormatJSON, FormatJSONL, FormatYAML}

// Writer renders check records.
type Writer interface {
	WriteRecord(rec fares.CheckRecord) error
}

// WriterOption configures a writer.
type WriterOption func(*writerConfig)

type writerConfig struct {
	pretty  bool
	indent  string
	details bool
	color   bool
}

// WithPretty enables pretty-printing for JSON.
func WithPretty(enabled bool) WriterOption {
	return func(c *writerConfig) {
		c.pretty = enabled
	}
}

// WithIndent sets the JSON indentation string.
func WithIndent(indent string) WriterOption {
	return func(c *writerConfig) {
		c.indent = indent
	}
}

// WithDetails makes the table list every offer, not just the cheapest.
func WithDetails(enabled bool) WriterOption {
	return func(c *writerConfig) {
		c.details = enabled
	}
}

// WithColor enables ANSI colours in the table.
func WithColor(enabled bool) WriterOption {
	return func(c *writerConfig) {
		c.color = enabled
	}
}

// NewWriter creates a writer for the specified format.
func NewWriter(w io.Writer, format Format, opts ...WriterOption) (Writer, error) {
	cfg := &writerConfig{
		pretty: true,
		indent: "  ",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	switch format {
	case FormatTable, "":
		return NewTableWriter(w, cfg.details, cfg.color), nil
	case FormatJSON:
		return NewJSONWriter(w, cfg.pretty, cfg.indent), nil
	case FormatJSONL:
		return NewJSONLWriter(w), nil
	case FormatYAML:
		return NewYAMLWriter(w), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}
