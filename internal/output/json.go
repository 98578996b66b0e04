package output

import (
	"bufio"
	"encoding/json"
	"io"

	"github.com/jmylchreest/farewatch/pkg/fares"
)

// JSONWriter writes each record as one JSON document.
type JSONWriter struct {
	w      *bufio.Writer
	pretty bool
	indent string
}

// NewJSONWriter creates a JSON writer.
func NewJSONWriter(w io.Writer, pretty bool, indent string) *JSONWriter {
	return &JSONWriter{
		w:      bufio.NewWriter(w),
		pretty: pretty,
		indent: indent,
	}
}

// WriteRecord writes rec followed by a newline.
func (w *JSONWriter) WriteRecord(rec fares.CheckRecord) error {
	var out []byte
	var err error
	if w.pretty {
		out, err = json.MarshalIndent(rec, "", w.indent)
	} else {
		out, err = json.Marshal(rec)
	}
	if err != nil {
		return err
	}

	if _, err := w.w.Write(out); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

// JSONLWriter writes one route result per line, tagged with the check time.
type JSONLWriter struct {
	w *bufio.Writer
}

// NewJSONLWriter creates a JSONL writer.
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	return &JSONLWriter{
		w: bufio.NewWriter(w),
	}
}

type jsonlLine struct {
	CheckTime string `json:"check_time"`
	fares.RouteResult
}

// WriteRecord writes every result of rec as its own line.
func (w *JSONLWriter) WriteRecord(rec fares.CheckRecord) error {
	for _, res := range rec.Results {
		out, err := json.Marshal(jsonlLine{CheckTime: rec.CheckTime, RouteResult: res})
		if err != nil {
			return err
		}
		if _, err := w.w.Write(out); err != nil {
			return err
		}
		if err := w.w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return w.w.Flush()
}
