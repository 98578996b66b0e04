package output

import (
	"bufio"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/farewatch/pkg/fares"
)

// YAMLWriter writes each record as a YAML document.
type YAMLWriter struct {
	w       *bufio.Writer
	written int
}

// NewYAMLWriter creates a YAML writer.
func NewYAMLWriter(w io.Writer) *YAMLWriter {
	return &YAMLWriter{
		w: bufio.NewWriter(w),
	}
}

// WriteRecord encodes rec. Consecutive records are separated by "---".
func (w *YAMLWriter) WriteRecord(rec fares.CheckRecord) error {
	if w.written > 0 {
		if _, err := w.w.WriteString("---\n"); err != nil {
			return err
		}
	}
	w.written++

	encoder := yaml.NewEncoder(w.w)
	encoder.SetIndent(2)

	if err := encoder.Encode(rec); err != nil {
		return err
	}
	if err := encoder.Close(); err != nil {
		return err
	}
	return w.w.Flush()
}
