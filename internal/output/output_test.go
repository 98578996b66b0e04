package output

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/farewatch/pkg/fares"
)

func sampleRecord() fares.CheckRecord {
	now := time.Date(2026, 3, 1, 1, 0, 0, 0, time.UTC)

	phuket := fares.NewRouteResult(fares.Route{Origin: "BKK", Destination: "HKT", Date: "15/03/2026"}, now)
	phuket.SetOffers([]fares.FlightOffer{
		{FlightNumber: "FD 3033", Price: 1750, Currency: "THB", DepartTime: "09:00", ArriveTime: "10:25"},
		{FlightNumber: "FD 3027", Price: 1290, Currency: "THB", DepartTime: "06:10", ArriveTime: "07:35"},
	})
	phuket.Challenge = "resolved"

	chiangMai := fares.NewRouteResult(fares.Route{Origin: "BKK", Destination: "CNX", Date: "15/03/2026"}, now)
	chiangMai.SetOffers([]fares.FlightOffer{
		{FlightNumber: "FD 3435", Price: 990, Currency: "THB", DepartTime: "07:00", ArriveTime: "08:10"},
	})

	blocked := fares.NewRouteResult(fares.Route{Origin: "BKK", Destination: "KBV", Date: "15/03/2026"}, now)
	blocked.Challenge = "timed_out"

	return fares.NewCheckRecord(now, []fares.RouteResult{phuket, chiangMai, blocked})
}

// --- NewWriter Factory Tests ---

func TestNewWriter(t *testing.T) {
	tests := []struct {
		format Format
		want   string
	}{
		{FormatTable, "*output.TableWriter"},
		{"", "*output.TableWriter"},
		{FormatJSON, "*output.JSONWriter"},
		{FormatJSONL, "*output.JSONLWriter"},
		{FormatYAML, "*output.YAMLWriter"},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			w, err := NewWriter(&bytes.Buffer{}, tt.format)
			if err != nil {
				t.Fatalf("NewWriter() error = %v", err)
			}
			if got := typeName(w); got != tt.want {
				t.Errorf("NewWriter(%q) = %s, want %s", tt.format, got, tt.want)
			}
		})
	}
}

func typeName(w Writer) string {
	switch w.(type) {
	case *TableWriter:
		return "*output.TableWriter"
	case *JSONWriter:
		return "*output.JSONWriter"
	case *JSONLWriter:
		return "*output.JSONLWriter"
	case *YAMLWriter:
		return "*output.YAMLWriter"
	}
	return "unknown"
}

func TestNewWriter_UnsupportedFormat(t *testing.T) {
	_, err := NewWriter(&bytes.Buffer{}, Format("csv"))
	if err == nil {
		t.Fatal("expected error for unsupported format")
	}
	if !strings.Contains(err.Error(), "unsupported") {
		t.Errorf("expected error containing 'unsupported', got %v", err)
	}
}

// --- JSONWriter Tests ---

func TestJSONWriter_HistoryKeys(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := NewJSONWriter(buf, true, "  ").WriteRecord(sampleRecord()); err != nil {
		t.Fatalf("WriteRecord() error = %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("failed to unmarshal output: %v", err)
	}
	if _, ok := got["check_time"]; !ok {
		t.Error("missing check_time")
	}
	results, ok := got["results"].([]any)
	if !ok || len(results) != 3 {
		t.Fatalf("results = %v", got["results"])
	}
	first := results[0].(map[string]any)
	if first["route"] != "BKK → HKT" {
		t.Errorf("route = %v", first["route"])
	}
	cheapest := first["cheapest"].(map[string]any)
	if cheapest["flightNumber"] != "FD 3027" {
		t.Errorf("cheapest = %v", cheapest)
	}
}

func TestJSONWriter_Compact(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := NewJSONWriter(buf, false, "").WriteRecord(sampleRecord()); err != nil {
		t.Fatalf("WriteRecord() error = %v", err)
	}
	if n := strings.Count(buf.String(), "\n"); n != 1 {
		t.Errorf("compact output should be a single line, got %d newlines", n)
	}
}

// --- JSONLWriter Tests ---

func TestJSONLWriter_OneLinePerRoute(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := NewJSONLWriter(buf).WriteRecord(sampleRecord()); err != nil {
		t.Fatalf("WriteRecord() error = %v", err)
	}

	scanner := bufio.NewScanner(buf)
	var lines []map[string]any
	for scanner.Scan() {
		var line map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("line %d is not JSON: %v", len(lines)+1, err)
		}
		lines = append(lines, line)
	}

	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	for i, line := range lines {
		if line["check_time"] == nil || line["route"] == nil {
			t.Errorf("line %d missing check_time or route: %v", i, line)
		}
	}
	if lines[2]["challenge"] != "timed_out" {
		t.Errorf("challenge = %v", lines[2]["challenge"])
	}
}

// --- YAMLWriter Tests ---

func TestYAMLWriter_Documents(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewYAMLWriter(buf)
	if err := w.WriteRecord(sampleRecord()); err != nil {
		t.Fatalf("WriteRecord() error = %v", err)
	}
	if err := w.WriteRecord(sampleRecord()); err != nil {
		t.Fatalf("WriteRecord() error = %v", err)
	}

	dec := yaml.NewDecoder(buf)
	docs := 0
	for {
		var rec fares.CheckRecord
		if err := dec.Decode(&rec); err != nil {
			break
		}
		if len(rec.Results) != 3 {
			t.Errorf("document %d has %d results", docs, len(rec.Results))
		}
		docs++
	}
	if docs != 2 {
		t.Errorf("expected 2 documents, got %d", docs)
	}
}

// --- TableWriter Tests ---

func TestTableWriter_Summary(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := NewTableWriter(buf, false, false).WriteRecord(sampleRecord()); err != nil {
		t.Fatalf("WriteRecord() error = %v", err)
	}
	out := buf.String()

	for _, want := range []string{"BKK → HKT", "1,290 THB", "FD 3027", "990 THB", "no flights (challenge timed_out)", "3 routes"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q\n%s", want, out)
		}
	}
	if strings.Contains(out, "1,750 THB") {
		t.Error("summary should only show the cheapest offer per route")
	}
	if !strings.Contains(out, "* cheapest: BKK → CNX on 15/03/2026, 990 THB at 07:00") {
		t.Errorf("missing overall cheapest line\n%s", out)
	}
}

func TestTableWriter_Details(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := NewTableWriter(buf, true, false).WriteRecord(sampleRecord()); err != nil {
		t.Fatalf("WriteRecord() error = %v", err)
	}
	if !strings.Contains(buf.String(), "1,750 THB") {
		t.Error("details should list every offer")
	}
}

func TestTableWriter_NoOffers(t *testing.T) {
	buf := &bytes.Buffer{}
	rec := fares.NewCheckRecord(time.Now(), []fares.RouteResult{
		fares.NewRouteResult(fares.Route{Origin: "BKK", Destination: "HKT", Date: "15/03/2026"}, time.Now()),
	})
	if err := NewTableWriter(buf, false, false).WriteRecord(rec); err != nil {
		t.Fatalf("WriteRecord() error = %v", err)
	}
	if strings.Contains(buf.String(), "cheapest:") {
		t.Error("no cheapest line expected without offers")
	}
}

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		offer fares.FlightOffer
		want  string
	}{
		{fares.FlightOffer{Price: 1290, Currency: "THB"}, "1,290 THB"},
		{fares.FlightOffer{Price: 12500}, "12,500"},
		{fares.FlightOffer{Price: 0, Currency: "THB"}, "0 THB"},
	}
	for _, tt := range tests {
		if got := FormatPrice(tt.offer); got != tt.want {
			t.Errorf("FormatPrice(%+v) = %q, want %q", tt.offer, got, tt.want)
		}
	}
}
