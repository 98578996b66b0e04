package commands

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/farewatch/internal/config"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule <hour> [days]",
	Short: "Set the daily check time",
	Long: `Convert a local hour into a UTC cron expression and write it to
schedule.cron in the config file. Comments and key order are kept.

days is a cron day-of-week field such as "*" or "1-5". The hour is read in
schedule.timezone (Asia/Bangkok by default). With --workflow, or
schedule.workflow set in the config, the first "- cron:" entry of that CI
workflow file is rewritten too.

Examples:
  # 08:00 Bangkok time every day -> '0 1 * * *'
  farewatch schedule 8

  # 07:00 on weekdays, also updating the CI workflow
  farewatch schedule 7 1-5 --workflow .github/workflows/check.yml`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)

	flags := scheduleCmd.Flags()
	flags.String("workflow", "", "CI workflow file to update (overrides schedule.workflow)")
	flags.String("timezone", "", "timezone of the hour (overrides schedule.timezone)")
	flags.Bool("dry-run", false, "print the expression without writing anything")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	initLogger()

	hour, err := strconv.Atoi(args[0])
	if err != nil {
		err = fmt.Errorf("invalid hour %q: %w", args[0], err)
		logError("%v", err)
		return err
	}
	days := "*"
	if len(args) == 2 {
		days = args[1]
	}

	cfg, err := loadConfig()
	if err != nil {
		logError("%v", err)
		return err
	}

	tz, _ := cmd.Flags().GetString("timezone")
	if tz == "" {
		tz = cfg.Schedule.Timezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		logError("unknown timezone %q: %v", tz, err)
		return err
	}

	expr, err := config.LocalCron(hour, days, loc, time.Now())
	if err != nil {
		logError("%v", err)
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%02d:00 %s = '%s' (UTC)\n", hour, tz, expr)

	if dry, _ := cmd.Flags().GetBool("dry-run"); dry {
		return nil
	}

	path := viper.ConfigFileUsed()
	if path == "" {
		err := errors.New("no config file to update; pass --config")
		logError("%v", err)
		return err
	}
	if err := config.SetScheduleCron(path, expr); err != nil {
		logError("%v", err)
		return err
	}
	fmt.Fprintf(out, "Updated %s\n", path)

	workflow, _ := cmd.Flags().GetString("workflow")
	if workflow == "" {
		workflow = cfg.Schedule.Workflow
	}
	if workflow == "" {
		return nil
	}
	if err := config.SetWorkflowCron(workflow, expr); err != nil {
		logError("%v", err)
		return err
	}
	fmt.Fprintf(out, "Updated %s\n", workflow)
	return nil
}
