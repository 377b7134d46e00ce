package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/atlekbai/interview_registry/internal/config"
	"github.com/atlekbai/interview_registry/internal/db"
	"github.com/atlekbai/interview_registry/internal/logging"
	"github.com/atlekbai/interview_registry/internal/query"
	"github.com/atlekbai/interview_registry/internal/schema"
	"github.com/atlekbai/interview_registry/internal/store"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	cfg    *config.Config
	logger *slog.Logger

	logLevel string
	survey   string
)

var rootCmd = &cobra.Command{
	Use:           "interviews",
	Short:         "Query, stream and export survey interviews",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		if cfg, err = config.Load(); err != nil {
			return err
		}
		if logLevel != "" {
			if err := cfg.LogLevel.UnmarshalText([]byte(logLevel)); err != nil {
				return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
			}
		}
		if survey != "" {
			cfg.SurveyShortname = survey
		}
		logger = logging.New(os.Stderr, cfg.LogLevel)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&survey, "survey", "", "override SURVEY_SHORTNAME")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// connect opens the pool. Callers close it.
func connect(ctx context.Context) (*pgxpool.Pool, error) {
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return pool, nil
}

// openStore connects and binds a store to the configured survey.
func openStore(ctx context.Context) (*store.Store, func(), error) {
	pool, err := connect(ctx)
	if err != nil {
		return nil, nil, err
	}
	sv, err := schema.ResolveSurvey(ctx, pool, cfg.SurveyShortname)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	logger.Debug("survey resolved", "survey", sv.Shortname, "id", sv.ID)

	st := store.New(pool, sv, store.Options{
		InterviewerPrefix: cfg.InterviewerPrefix,
		Logger:            logger,
	})
	return st, pool.Close, nil
}

// readArg returns raw, or the contents of the named file when raw starts
// with @.
func readArg(raw string) ([]byte, error) {
	if path, ok := strings.CutPrefix(raw, "@"); ok {
		return os.ReadFile(path)
	}
	return []byte(raw), nil
}

func parseFilters(raw string) (query.Filters, error) {
	if raw == "" {
		return nil, nil
	}
	data, err := readArg(raw)
	if err != nil {
		return nil, fmt.Errorf("read filters: %w", err)
	}
	return query.ParseFilters(data)
}

func parseSort(raw string) ([]query.SortKey, error) {
	if raw == "" {
		return nil, nil
	}
	data, err := readArg(raw)
	if err != nil {
		return nil, fmt.Errorf("read sort: %w", err)
	}
	return query.ParseSort(data)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build version",
	Args:  cobra.NoArgs,
	// Needs no configuration or database.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
