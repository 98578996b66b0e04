package commands

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/farewatch/internal/challenge"
	"github.com/jmylchreest/farewatch/internal/extract"
	"github.com/jmylchreest/farewatch/internal/probe"
)

var probeCmd = &cobra.Command{
	Use:   "probe [url]",
	Short: "Check whether the site is serving a challenge page",
	Long: `Request the search page once without a browser and report whether the
response is a challenge page. No JavaScript runs, so a clean response
means the edge is not challenging plain clients right now, not that a
browser check will succeed.

Without a URL the first configured route's search page is probed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)

	flags := probeCmd.Flags()
	flags.Duration("timeout", 30*time.Second, "request timeout")
	flags.Bool("json", false, "print the report as JSON")
}

func runProbe(cmd *cobra.Command, args []string) error {
	initLogger()

	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		logError("%v", err)
		return err
	}
	engine, err := extract.New(cfg.Selectors, cfg.Search.Currency)
	if err != nil {
		logError("%v", err)
		return err
	}

	url := cfg.Search.URL(cfg.Routes[0])
	if len(args) == 1 {
		url = args[0]
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")

	p := probe.New(challenge.NewDetector(cfg.Challenge.Signatures), engine, cfg.Browser.UserAgent, timeout)
	rep, err := p.Check(ctx, url)
	if err != nil {
		logError("%v", err)
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}

	fmt.Fprintf(out, "URL:        %s\n", rep.URL)
	fmt.Fprintf(out, "Status:     %d\n", rep.StatusCode)
	fmt.Fprintf(out, "Title:      %s\n", rep.Title)
	if rep.Server != "" {
		fmt.Fprintf(out, "Server:     %s\n", rep.Server)
	}
	if rep.Challenged {
		fmt.Fprintf(out, "Challenge:  yes (%s)\n", rep.Signal)
	} else {
		fmt.Fprintf(out, "Challenge:  no\n")
		fmt.Fprintf(out, "Listings:   %d\n", rep.Listings)
	}
	fmt.Fprintf(out, "Elapsed:    %s\n", rep.Elapsed.Round(time.Millisecond))
	return nil
}
