package main

import (
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/atlekbai/interview_registry/internal/db"
	"github.com/atlekbai/interview_registry/internal/query"
	"github.com/atlekbai/interview_registry/internal/store"
)

var (
	filtersFlag string
	sortFlag    string
	pageIndex   int
	pageSize    int
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the interview tables when missing",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		pool, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := db.EnsureSchema(cmd.Context(), pool); err != nil {
			return err
		}
		logger.Info("schema is up to date")
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print one page of active interviews and the total count",
	Long: `Print one page of active interviews matching --filters.

Filters are a JSON object of field path to value or {"value": ..., "op": ...},
for example '{"response.home.region": {"value": "north", "op": "like"}}'.
Prefix a flag value with @ to read it from a file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		filters, err := parseFilters(filtersFlag)
		if err != nil {
			return err
		}
		sort, err := parseSort(sortFlag)
		if err != nil {
			return err
		}

		st, closeDB, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeDB()

		res, err := st.List(cmd.Context(), query.ListParams{
			Filters:   filters,
			PageIndex: pageIndex,
			PageSize:  pageSize,
			Sort:      sort,
		})
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the interview count and audit statistics for --filters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		filters, err := parseFilters(filtersFlag)
		if err != nil {
			return err
		}

		st, closeDB, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeDB()

		var (
			total  int64
			audits store.AuditStats
		)
		g, ctx := errgroup.WithContext(cmd.Context())
		g.Go(func() error {
			res, err := st.List(ctx, query.ListParams{Filters: filters, PageSize: 1})
			total = res.TotalCount
			return err
		})
		g.Go(func() error {
			var err error
			audits, err = st.ValidationAuditStats(ctx, filters)
			return err
		})
		if err := g.Wait(); err != nil {
			return err
		}

		return printJSON(map[string]any{
			"totalCount": total,
			"audits":     audits,
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{listCmd, statsCmd} {
		c.Flags().StringVar(&filtersFlag, "filters", "", "filter specification as JSON, or @file")
	}
	listCmd.Flags().StringVar(&sortFlag, "sort", "", "sort keys as a JSON array, or @file")
	listCmd.Flags().IntVar(&pageIndex, "page", 0, "zero-based page index")
	listCmd.Flags().IntVar(&pageSize, "page-size", 50, "rows per page, 0 for all")

	rootCmd.AddCommand(migrateCmd, listCmd, statsCmd)
}
