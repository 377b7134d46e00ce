// Package export writes interview streams to files, one file per kind of
// row. All files of one export share a single backpressure gate, so the
// database cursor advances only while every file keeps up.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/atlekbai/interview_registry/internal/logging"
	"github.com/atlekbai/interview_registry/internal/query"
	"github.com/atlekbai/interview_registry/internal/store"
	"github.com/atlekbai/interview_registry/internal/stream"
)

// Sink names, also the base names of the files.
const (
	SinkInterviews = "interviews"
	SinkAudits     = "audits"
	SinkLogs       = "logs"
)

// Source opens the streams an export reads. *store.Store implements it.
type Source interface {
	StreamInterviews(ctx context.Context, p query.StreamParams, gate *stream.Gate) (*stream.Stream[store.Record], error)
	StreamLogs(ctx context.Context, p query.LogStreamParams, gate *stream.Gate) (*stream.Stream[store.LogEntry], error)
}

// Options configures an Exporter.
type Options struct {
	Dir      string
	Format   Format
	Compress bool
	// HighWater is the number of queued rows at which a sink pauses the
	// stream. LowWater is where it resumes; it defaults to HighWater/4.
	HighWater int
	LowWater  int
	Logger    *slog.Logger
}

// Exporter runs exports from a Source.
type Exporter struct {
	src    Source
	opts   Options
	logger *slog.Logger
}

// New returns an exporter. Missing options get defaults.
func New(src Source, opts Options) *Exporter {
	if opts.Format == "" {
		opts.Format = FormatJSONLines
	}
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if opts.HighWater <= 0 {
		opts.HighWater = 256
	}
	if opts.LowWater <= 0 || opts.LowWater >= opts.HighWater {
		opts.LowWater = opts.HighWater / 4
	}
	return &Exporter{
		src:    src,
		opts:   opts,
		logger: logging.Component(opts.Logger, "export"),
	}
}

// Result reports the files written and their row counts.
type Result struct {
	Files    map[string]string `json:"files"`
	Rows     map[string]int64  `json:"rows"`
	Duration time.Duration     `json:"duration"`
}

// AuditRow is one line of the audits file: the count of one error code on
// one interview.
type AuditRow struct {
	InterviewID any    `json:"interviewId" msgpack:"interviewId"`
	UUID        any    `json:"uuid,omitempty" msgpack:"uuid,omitempty"`
	ErrorCode   string `json:"errorCode" msgpack:"errorCode"`
	Count       int64  `json:"count" msgpack:"count"`
}

// ExportRecords writes every interview matching p to the interviews file,
// and its audit counts to the audits file.
func (e *Exporter) ExportRecords(ctx context.Context, p query.StreamParams) (Result, error) {
	gate := stream.NewGate()
	return e.run(ctx, gate, []string{SinkInterviews, SinkAudits}, func(ctx context.Context, sinks map[string]*sink) error {
		st, err := e.src.StreamInterviews(ctx, p, gate)
		if err != nil {
			return err
		}
		return e.pump(ctx, st.Close, func() error {
			return st.Each(func(r store.Record) error {
				interview, audits := splitRecord(r)
				sinks[SinkInterviews].push(interview)
				for _, a := range audits {
					sinks[SinkAudits].push(a)
				}
				return nil
			})
		})
	})
}

// ExportLogs writes the paradata events selected by p to the logs file.
func (e *Exporter) ExportLogs(ctx context.Context, p query.LogStreamParams) (Result, error) {
	gate := stream.NewGate()
	return e.run(ctx, gate, []string{SinkLogs}, func(ctx context.Context, sinks map[string]*sink) error {
		st, err := e.src.StreamLogs(ctx, p, gate)
		if err != nil {
			return err
		}
		return e.pump(ctx, st.Close, func() error {
			return st.Each(func(l store.LogEntry) error {
				sinks[SinkLogs].push(l)
				return nil
			})
		})
	})
}

// pump runs each, closing the stream if ctx ends first so that a failed
// writer does not leave the producer waiting on the gate.
func (e *Exporter) pump(ctx context.Context, closeStream func(), each func() error) error {
	stop := context.AfterFunc(ctx, closeStream)
	defer stop()
	err := each()
	if errors.Is(err, stream.ErrClosed) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (e *Exporter) run(ctx context.Context, gate *stream.Gate, names []string, produce func(context.Context, map[string]*sink) error) (Result, error) {
	start := time.Now()
	if err := os.MkdirAll(e.opts.Dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create export dir: %w", err)
	}

	files := make(map[string]*file, len(names))
	sinks := make(map[string]*sink, len(names))
	for _, name := range names {
		f, err := createFile(e.opts.Dir, name, e.opts.Format, e.opts.Compress)
		if err != nil {
			for _, opened := range files {
				_ = opened.Close()
			}
			return Result{}, err
		}
		files[name] = f
		sinks[name] = newSink(name, gate, e.opts.HighWater, e.opts.LowWater)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		s, f := sinks[name], files[name]
		g.Go(func() error {
			if err := s.run(gctx, f); err != nil {
				return fmt.Errorf("write %s: %w", s.name, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		defer func() {
			for _, s := range sinks {
				s.close()
			}
		}()
		return produce(gctx, sinks)
	})

	e.logger.Info("export started", "sinks", names, "format", e.opts.Format, "compress", e.opts.Compress)
	err := g.Wait()

	res := Result{Files: map[string]string{}, Rows: map[string]int64{}, Duration: time.Since(start)}
	for _, name := range names {
		res.Files[name] = files[name].path
		res.Rows[name] = sinks[name].written()
	}
	if err != nil {
		e.logger.Error("export failed", "error", err)
		return res, err
	}
	e.logger.Info("export finished", "rows", res.Rows, "duration", res.Duration)
	return res, nil
}

// splitRecord separates the audit counts of a record into their own rows,
// sorted by error code.
func splitRecord(r store.Record) (store.Record, []AuditRow) {
	out := make(store.Record, len(r))
	for k, v := range r {
		if k != "audits" {
			out[k] = v
		}
	}

	counts, _ := r["audits"].(map[string]int64)
	if len(counts) == 0 {
		return out, nil
	}
	codes := make([]string, 0, len(counts))
	for code := range counts {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	rows := make([]AuditRow, len(codes))
	for i, code := range codes {
		rows[i] = AuditRow{InterviewID: r["id"], UUID: r["uuid"], ErrorCode: code, Count: counts[code]}
	}
	return out, rows
}
