package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/atlekbai/interview_registry/internal/views"
)

var (
	viewColumns    string
	viewSchedule   string
	refreshTimeout time.Duration
)

var viewsCmd = &cobra.Command{
	Use:   "views",
	Short: "Manage administrator materialized views",
}

// withViews runs fn with a view cache over a fresh pool.
func withViews(cmd *cobra.Command, fn func(*views.Cache) error) error {
	pool, err := connect(cmd.Context())
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(views.New(pool, logger))
}

func splitColumns(s string) []string {
	if s == "" {
		return nil
	}
	cols := strings.Split(s, ",")
	for i := range cols {
		cols[i] = strings.TrimSpace(cols[i])
	}
	return cols
}

var viewsRegisterCmd = &cobra.Command{
	Use:   "register NAME QUERY",
	Short: "Create a view, or recreate it when its query changed",
	Long: `Create a materialized view from QUERY. Prefix QUERY with @ to read it
from a file.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := readArg(args[1])
		if err != nil {
			return fmt.Errorf("read query: %w", err)
		}
		return withViews(cmd, func(c *views.Cache) error {
			return c.Register(cmd.Context(), args[0], string(q))
		})
	},
}

var viewsRefreshCmd = &cobra.Command{
	Use:   "refresh [NAME]",
	Short: "Refresh one view, or all of them",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withViews(cmd, func(c *views.Cache) error {
			if len(args) == 0 {
				return c.RefreshAll(cmd.Context())
			}
			return c.Refresh(cmd.Context(), args[0])
		})
	},
}

var viewsQueryCmd = &cobra.Command{
	Use:   "query NAME",
	Short: "Print the rows of a view",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withViews(cmd, func(c *views.Cache) error {
			rows, err := c.Query(cmd.Context(), args[0], splitColumns(viewColumns))
			if err != nil {
				return err
			}
			return printJSON(rows)
		})
	},
}

var viewsCountCmd = &cobra.Command{
	Use:   "count NAME GROUP_COLUMN[,GROUP_COLUMN...]",
	Short: "Count the rows of a view per group",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withViews(cmd, func(c *views.Cache) error {
			rows, err := c.CountBy(cmd.Context(), args[0], splitColumns(args[1]))
			if err != nil {
				return err
			}
			return printJSON(rows)
		})
	},
}

var viewsScheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Refresh every view on a cron schedule until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cronExpr := cfg.ViewsRefreshCron
		if viewSchedule != "" {
			cronExpr = viewSchedule
		}
		return withViews(cmd, func(c *views.Cache) error {
			s, err := views.NewScheduler(logger)
			if err != nil {
				return err
			}
			if err := s.ScheduleRefresh(c, cronExpr, refreshTimeout); err != nil {
				return err
			}
			s.Start()
			for _, j := range s.ListJobs() {
				logger.Info("job scheduled", "name", j.Name, "schedule", j.Schedule, "next_run", j.NextRun)
			}

			<-cmd.Context().Done()
			logger.Info("shutting down scheduler")
			return s.Stop()
		})
	},
}

func init() {
	viewsQueryCmd.Flags().StringVar(&viewColumns, "columns", "", "comma-separated columns, all when empty")
	viewsScheduleCmd.Flags().StringVar(&viewSchedule, "cron", "", "five-field cron expression (default VIEWS_REFRESH_CRON)")
	viewsScheduleCmd.Flags().DurationVar(&refreshTimeout, "timeout", 10*time.Minute, "limit for one refresh run")

	viewsCmd.AddCommand(viewsRegisterCmd, viewsRefreshCmd, viewsQueryCmd, viewsCountCmd, viewsScheduleCmd)
	rootCmd.AddCommand(viewsCmd)
}
