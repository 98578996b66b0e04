package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/farewatch/internal/config"
	"github.com/jmylchreest/farewatch/internal/history"
	"github.com/jmylchreest/farewatch/internal/logger"
	"github.com/jmylchreest/farewatch/internal/output"
	"github.com/jmylchreest/farewatch/internal/pipeline"
	"github.com/jmylchreest/farewatch/pkg/fares"
)

// errAllFailed is returned when no route could be checked at all.
var errAllFailed = errors.New("every route check failed")

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check fares for the configured routes",
	Long: `Open the search page for each route, get past the challenge page if
one is served, wait for the listings and extract the offers.

The run is appended to the price history unless --no-history is given.
A route whose challenge was not cleared is reported with no flights; only
browser or navigation faults are reported as errors.

Examples:
  # Routes from config.yml
  farewatch check

  # Ad-hoc routes, detailed table
  farewatch check -r BKK:HKT:15/03/2026 -r DMK:CNX:20/03/2026 --details

  # JSON lines appended to a file
  farewatch check -f jsonl -o results.jsonl --no-history`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	flags := checkCmd.Flags()
	flags.StringSliceP("route", "r", nil, "route as ORIGIN:DEST:DD/MM/YYYY (repeatable, replaces the configured routes)")
	flags.StringP("format", "f", string(output.FormatTable), "output format: table, json, jsonl, yaml")
	flags.StringP("output", "o", "", "output file (default: stdout)")
	flags.Bool("details", false, "list every offer in the table, not just the cheapest")
	flags.Bool("compact", false, "single-line JSON")
	flags.Bool("no-color", false, "disable table colours")
	flags.Bool("no-history", false, "do not append the run to the price history")
	flags.String("history", "", "price history file (overrides history.path)")

	_ = viper.BindPFlag("history.path", flags.Lookup("history"))
	viper.SetDefault("history.path", config.Default().History.Path)
}

func runCheck(cmd *cobra.Command, _ []string) error {
	initLogger()

	ctx, cancel := signalContext()
	defer cancel()

	routeFlags, _ := cmd.Flags().GetStringSlice("route")
	if len(routeFlags) > 0 {
		routes, err := parseRoutes(routeFlags)
		if err != nil {
			logError("%v", err)
			return err
		}
		viper.Set("routes", routeSettings(routes))
	}

	cfg, err := loadConfig()
	if err != nil {
		logError("%v", err)
		return err
	}

	w, closeOut, err := openOutput(cmd)
	if err != nil {
		logError("%v", err)
		return err
	}
	defer closeOut()

	var opts []pipeline.Option
	if noHistory, _ := cmd.Flags().GetBool("no-history"); !noHistory {
		opts = append(opts, pipeline.WithHistory(history.Open(cfg.History.Path)))
	}
	runner, err := pipeline.New(cfg, opts...)
	if err != nil {
		logError("%v", err)
		return err
	}

	logInfo("Checking %d route(s) with the %s profile...", len(cfg.Routes), cfg.Profile)
	rec, runErr := runner.Run(ctx)
	if runErr != nil {
		logger.Error("run finished with an error", "error", runErr)
	}
	if err := w.WriteRecord(rec); err != nil {
		logError("writing output: %v", err)
		return err
	}

	if runErr != nil {
		return runErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return summarize(rec)
}

// summarize reports failed routes and returns errAllFailed when nothing succeeded.
func summarize(rec fares.CheckRecord) error {
	failed := 0
	for _, res := range rec.Results {
		if !res.OK() {
			failed++
		}
	}
	if failed == 0 {
		return nil
	}
	logInfo("%d of %d route(s) failed", failed, len(rec.Results))
	if failed == len(rec.Results) {
		return errAllFailed
	}
	return nil
}

// openOutput returns the configured writer and a function closing its file.
func openOutput(cmd *cobra.Command) (output.Writer, func(), error) {
	format, _ := cmd.Flags().GetString("format")
	path, _ := cmd.Flags().GetString("output")
	details, _ := cmd.Flags().GetBool("details")
	compact, _ := cmd.Flags().GetBool("compact")
	noColor, _ := cmd.Flags().GetBool("no-color")

	var out io.Writer = cmd.OutOrStdout()
	closeOut := func() {}
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open output %s: %w", path, err)
		}
		out = f
		closeOut = func() { _ = f.Close() }
		noColor = true
	}

	w, err := output.NewWriter(out, output.Format(format),
		output.WithPretty(!compact),
		output.WithDetails(details),
		output.WithColor(!noColor),
	)
	if err != nil {
		closeOut()
		return nil, nil, err
	}
	return w, closeOut, nil
}

// parseRoutes reads ORIGIN:DEST:DATE triples.
func parseRoutes(values []string) ([]fares.Route, error) {
	routes := make([]fares.Route, 0, len(values))
	for _, v := range values {
		parts := strings.SplitN(v, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid route %q: want ORIGIN:DEST:DD/MM/YYYY", v)
		}
		routes = append(routes, fares.Route{
			Origin:      strings.ToUpper(strings.TrimSpace(parts[0])),
			Destination: strings.ToUpper(strings.TrimSpace(parts[1])),
			Date:        strings.TrimSpace(parts[2]),
		})
	}
	return routes, nil
}

// routeSettings turns routes into the shape viper would read from a file.
func routeSettings(routes []fares.Route) []map[string]any {
	out := make([]map[string]any, 0, len(routes))
	for _, r := range routes {
		out = append(out, map[string]any{
			"origin":      r.Origin,
			"destination": r.Destination,
			"date":        r.Date,
		})
	}
	return out
}
