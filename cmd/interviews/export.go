package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/atlekbai/interview_registry/internal/export"
	"github.com/atlekbai/interview_registry/internal/query"
)

var (
	exportDir       string
	exportFormat    string
	exportCompress  bool
	exportHighWater int

	payloadFlag      string
	noAudits         bool
	interviewerData  bool
	logInterviewID   int64
	logForCorrection string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Stream interviews or their edit logs to files",
}

func newExporter(cmd *cobra.Command, src export.Source) (*export.Exporter, error) {
	format, err := export.ParseFormat(exportFormat)
	if err != nil {
		return nil, err
	}
	dir := cfg.ExportDir
	if cmd.Flags().Changed("dir") {
		dir = exportDir
	}
	highWater := cfg.StreamHighWater
	if cmd.Flags().Changed("high-water") {
		highWater = exportHighWater
	}
	return export.New(src, export.Options{
		Dir:       dir,
		Format:    format,
		Compress:  exportCompress,
		HighWater: highWater,
		Logger:    logger,
	}), nil
}

var exportRecordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Export interviews matching --filters, with their audit counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		filters, err := parseFilters(filtersFlag)
		if err != nil {
			return err
		}
		sort, err := parseSort(sortFlag)
		if err != nil {
			return err
		}
		payload, err := query.ParsePayloadMode(payloadFlag)
		if err != nil {
			return err
		}
		includeAudits := !noAudits

		st, closeDB, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeDB()

		ex, err := newExporter(cmd, st)
		if err != nil {
			return err
		}
		res, err := ex.ExportRecords(cmd.Context(), query.StreamParams{
			Filters: filters,
			Sort:    sort,
			Select: query.Selection{
				IncludeAudits:          &includeAudits,
				IncludeInterviewerData: interviewerData,
				Payload:                payload,
			},
		})
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var exportLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Export the edit events of interviews matching --filters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		filters, err := parseFilters(filtersFlag)
		if err != nil {
			return err
		}
		p := query.LogStreamParams{Filters: filters}
		if cmd.Flags().Changed("interview-id") {
			p.InterviewID = &logInterviewID
		}
		if logForCorrection != "" {
			v, err := strconv.ParseBool(logForCorrection)
			if err != nil {
				return fmt.Errorf("invalid --for-correction %q: %w", logForCorrection, err)
			}
			p.ForCorrection = &v
		}

		st, closeDB, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeDB()

		ex, err := newExporter(cmd, st)
		if err != nil {
			return err
		}
		res, err := ex.ExportLogs(cmd.Context(), p)
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

func init() {
	for _, c := range []*cobra.Command{exportRecordsCmd, exportLogsCmd} {
		c.Flags().StringVar(&filtersFlag, "filters", "", "filter specification as JSON, or @file")
		c.Flags().StringVar(&exportDir, "dir", "", "output directory (default EXPORT_DIR)")
		c.Flags().StringVar(&exportFormat, "format", string(export.FormatJSONLines), "jsonl or msgpack")
		c.Flags().BoolVar(&exportCompress, "compress", false, "zstd-compress the files")
		c.Flags().IntVar(&exportHighWater, "high-water", 0, "rows buffered per file before the stream pauses (default STREAM_HIGH_WATER)")
	}

	exportRecordsCmd.Flags().StringVar(&sortFlag, "sort", "", "sort keys as a JSON array, or @file")
	exportRecordsCmd.Flags().StringVar(&payloadFlag, "payload", string(query.PayloadBoth), "both, original, corrected, correctedIfAvailable or none")
	exportRecordsCmd.Flags().BoolVar(&noAudits, "no-audits", false, "leave out audit counts")
	exportRecordsCmd.Flags().BoolVar(&interviewerData, "interviewer-data", false, "add interviewer columns")

	exportLogsCmd.Flags().Int64Var(&logInterviewID, "interview-id", 0, "only this interview")
	exportLogsCmd.Flags().StringVar(&logForCorrection, "for-correction", "", "true or false; keep events of that edit mode only")

	exportCmd.AddCommand(exportRecordsCmd, exportLogsCmd)
	rootCmd.AddCommand(exportCmd)
}
