package commands

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/farewatch/internal/config"
	"github.com/jmylchreest/farewatch/internal/history"
	"github.com/jmylchreest/farewatch/internal/logger"
	"github.com/jmylchreest/farewatch/internal/metrics"
	"github.com/jmylchreest/farewatch/internal/pipeline"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run checks on the configured schedule",
	Long: `Run a fare check every time schedule.cron fires (UTC) until
interrupted. Runs never overlap: a tick that arrives while a check is still
running is skipped.

With --metrics-addr the latest prices, check outcomes and challenge states
are exported for Prometheus at /metrics.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	flags := watchCmd.Flags()
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	flags.Bool("now", false, "run one check immediately before waiting for the schedule")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	initLogger()

	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		logError("%v", err)
		return err
	}
	if cfg.Schedule.Cron == "" {
		err := errors.New("schedule.cron is not set; see 'farewatch schedule'")
		logError("%v", err)
		return err
	}
	sched, err := config.ParseCron(cfg.Schedule.Cron)
	if err != nil {
		logError("invalid schedule.cron: %v", err)
		return err
	}

	rec, err := metrics.New("", nil)
	if err != nil {
		logError("%v", err)
		return err
	}
	store := history.Open(cfg.History.Path)
	if last, ok, err := store.Latest(); err != nil {
		logger.Warn("reading history failed", "path", store.Path(), "error", err)
	} else if ok {
		logger.Info("last recorded check", "at", last.CheckTime, "routes", len(last.Results))
	}

	runner, err := pipeline.New(cfg,
		pipeline.WithHistory(store),
		pipeline.WithMetrics(rec),
	)
	if err != nil {
		logError("%v", err)
		return err
	}

	addr, _ := cmd.Flags().GetString("metrics-addr")
	if addr != "" {
		srv := metricsServer(addr, rec)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
		logger.Info("serving metrics", "addr", addr, "path", "/metrics")
	}

	check := func() {
		if _, err := runner.Run(ctx); err != nil {
			logger.Error("scheduled check failed", "error", err)
		}
	}

	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cronLogger{}),
		cron.WithChain(cron.Recover(cronLogger{}), cron.SkipIfStillRunning(cronLogger{})),
	)
	c.Schedule(sched, cron.FuncJob(check))

	if now, _ := cmd.Flags().GetBool("now"); now {
		check()
	}

	c.Start()
	logInfo("Watching %d route(s), next check at %s", len(cfg.Routes), sched.Next(time.Now().UTC()).Format(time.RFC3339))

	<-ctx.Done()
	logInfo("Stopping, waiting for a running check to finish...")
	<-c.Stop().Done()
	return nil
}

func metricsServer(addr string, rec *metrics.Recorder) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", rec.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// cronLogger routes scheduler messages to the process logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	logger.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	logger.Error("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}
