package output

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/jmylchreest/farewatch/pkg/fares"
)

// CheapestMarker flags the cheapest fare across all routes of a record.
const CheapestMarker = "*"

// TableWriter renders a record as a console summary.
type TableWriter struct {
	w       io.Writer
	details bool
	color   bool
}

// NewTableWriter creates a table writer. With details every offer gets a
// row; otherwise each route shows its cheapest fare.
func NewTableWriter(w io.Writer, details, color bool) *TableWriter {
	return &TableWriter{w: w, details: details, color: color}
}

// WriteRecord renders rec.
func (w *TableWriter) WriteRecord(rec fares.CheckRecord) error {
	t := table.NewWriter()
	t.SetOutputMirror(w.w)
	t.SetTitle("Fare check " + rec.CheckTime)
	t.AppendHeader(table.Row{"", "Route", "Date", "Flight", "Depart", "Arrive", "Price", "Offers", "Status"})

	best := overallCheapest(rec.Results)
	offers := 0
	for i, res := range rec.Results {
		offers += len(res.Flights)
		status := statusText(res)

		if res.Cheapest == nil {
			t.AppendRow(table.Row{"", res.Route, res.Date, "-", "-", "-", "-", 0, status})
			continue
		}

		rows := []fares.FlightOffer{*res.Cheapest}
		if w.details {
			rows = res.Flights
		}
		for j, o := range rows {
			mark := ""
			if i == best && j == 0 {
				mark = CheapestMarker
			}
			t.AppendRow(table.Row{mark, res.Route, res.Date, o.FlightNumber, o.DepartTime, o.ArriveTime, FormatPrice(o), len(res.Flights), status})
		}
	}

	t.AppendFooter(table.Row{"", fmt.Sprintf("%d routes", len(rec.Results)), "", "", "", "", "", offers, ""})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, AutoMerge: w.details},
		{Number: 3, AutoMerge: w.details},
		{Number: 7, Align: text.AlignRight},
		{Number: 8, Align: text.AlignRight, AutoMerge: w.details},
		{Number: 9, AutoMerge: w.details},
	})
	if w.color {
		t.SetStyle(table.StyleColoredBright)
	} else {
		t.SetStyle(table.StyleRounded)
	}
	t.Style().Format.Footer = text.FormatDefault
	t.Render()

	if best >= 0 {
		c := rec.Results[best].Cheapest
		_, err := fmt.Fprintf(w.w, "%s cheapest: %s on %s, %s at %s\n",
			CheapestMarker, rec.Results[best].Route, rec.Results[best].Date, FormatPrice(*c), c.DepartTime)
		return err
	}
	return nil
}

// FormatPrice renders "1,290 THB".
func FormatPrice(o fares.FlightOffer) string {
	p := humanize.Comma(int64(o.Price))
	if o.Currency == "" {
		return p
	}
	return p + " " + o.Currency
}

func statusText(res fares.RouteResult) string {
	switch res.Status() {
	case fares.StatusError:
		return "error: " + res.Error
	case fares.StatusNoFlights:
		if res.Challenge != "" && res.Challenge != "absent" && res.Challenge != "resolved" {
			return "no flights (challenge " + res.Challenge + ")"
		}
		return "no flights"
	default:
		return "ok"
	}
}

// overallCheapest returns the index of the result holding the lowest
// cheapest price, or -1.
func overallCheapest(results []fares.RouteResult) int {
	best := -1
	for i, res := range results {
		if res.Cheapest == nil {
			continue
		}
		if best < 0 || res.Cheapest.Price < results[best].Cheapest.Price {
			best = i
		}
	}
	return best
}
