package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/uni-timetable-api/internal/dto"
	"github.com/noah-isme/uni-timetable-api/internal/fixtures"
	"github.com/noah-isme/uni-timetable-api/internal/service"
	"github.com/noah-isme/uni-timetable-api/internal/timetable"
	"github.com/noah-isme/uni-timetable-api/pkg/config"
	"github.com/noah-isme/uni-timetable-api/pkg/export"
	"github.com/noah-isme/uni-timetable-api/pkg/logger"
)

// Exit codes.
const (
	exitOK        = 0
	exitFailure   = 1
	exitCancelled = 2
)

type options struct {
	dataDir         string
	programs        string
	start           string
	end             string
	includeWeekends bool
	maxPerDay       int
	grid            string
	sessionHours    float64
	priority        string
	noDeptPref      bool
	output          string
	exportDir       string
	formats         string
	timezone        string
	timeout         time.Duration
	logLevel        string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	opts := &options{}
	fs := flag.NewFlagSet("timetable-cli", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.dataDir, "data", "fixtures", "directory holding programs.csv, subjects.csv, teachers.csv, rooms.csv, availability.csv")
	fs.StringVar(&opts.programs, "programs", "", "comma separated program ids (default: every program in the data set)")
	fs.StringVar(&opts.start, "start", "", "first date, YYYY-MM-DD")
	fs.StringVar(&opts.end, "end", "", "last date, YYYY-MM-DD")
	fs.BoolVar(&opts.includeWeekends, "weekends", false, "schedule Saturday and Sunday slots")
	fs.IntVar(&opts.maxPerDay, "max-per-day", 4, "maximum sessions per program per day")
	fs.StringVar(&opts.grid, "grid", "", "slot grid, e.g. 0@08:00-09:30,0@10:00-11:30")
	fs.Float64Var(&opts.sessionHours, "session-hours", 0, "hours credited per session (default: modal slot length)")
	fs.StringVar(&opts.priority, "priority", string(timetable.PriorityRemaining), "subject priority: remaining or quota")
	fs.BoolVar(&opts.noDeptPref, "no-department-preference", false, "ignore department affinity when picking rooms")
	fs.StringVar(&opts.output, "out", "-", "report destination, - for stdout")
	fs.StringVar(&opts.exportDir, "export-dir", "", "write exports into this directory")
	fs.StringVar(&opts.formats, "formats", "csv", "comma separated export formats: csv, xlsx, ics")
	fs.StringVar(&opts.timezone, "timezone", "UTC", "IANA zone used for calendar exports")
	fs.DurationVar(&opts.timeout, "timeout", 0, "abort generation after this long")
	fs.StringVar(&opts.logLevel, "log-level", "info", "zap log level")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return exitFailure
	}
	logr, err := logger.New(&config.Config{Env: config.EnvDevelopment, Log: config.LogConfig{Level: opts.logLevel, Format: "console"}})
	if err != nil {
		fmt.Fprintf(stderr, "init logger: %v\n", err)
		return exitFailure
	}
	defer logr.Sync() //nolint:errcheck

	code, err := generate(ctx, opts, stdout, logr)
	if err != nil {
		logr.Error("timetable generation failed", zap.Error(err))
	}
	return code
}

func generate(ctx context.Context, opts *options, stdout io.Writer, logr *zap.Logger) (int, error) {
	data, err := fixtures.Load(opts.dataDir)
	if err != nil {
		return exitFailure, err
	}
	inputs, err := service.BuildInputs(data.Programs, data.Subjects, data.Teachers, data.Availability, data.Rooms, data.Departments)
	if err != nil {
		return exitFailure, err
	}
	cfg, err := generatorConfig(opts)
	if err != nil {
		return exitFailure, err
	}
	req, err := request(opts, data)
	if err != nil {
		return exitFailure, err
	}

	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	started := time.Now()
	_, report, runErr := timetable.Run(ctx, req, inputs, cfg)
	var cancelled *timetable.CancelledError
	if runErr != nil && !errors.As(runErr, &cancelled) {
		return exitFailure, runErr
	}
	logr.Info("timetable generated",
		zap.String("status", string(report.Status)),
		zap.Int("sessions", len(report.Sessions)),
		zap.Int("conflicts", len(report.Conflicts)),
		zap.Int("underserved", len(report.Underserved)),
		zap.Duration("elapsed", time.Since(started)),
	)

	if err := writeReport(opts.output, stdout, dto.NewGenerateTimetableResponse("", report)); err != nil {
		return exitFailure, err
	}
	if opts.exportDir != "" {
		if err := writeExports(opts, data, report, logr); err != nil {
			return exitFailure, err
		}
	}
	if cancelled != nil {
		return exitCancelled, runErr
	}
	return exitOK, nil
}

func generatorConfig(opts *options) (timetable.Config, error) {
	sched := config.SchedulerConfig{
		SessionHours:              opts.sessionHours,
		SubjectPriority:           opts.priority,
		PreferSameDepartment:      !opts.noDeptPref,
		AllowDepartmentRelaxation: true,
	}
	if opts.grid != "" {
		grid, err := config.ParseSlotGrid(opts.grid)
		if err != nil {
			return timetable.Config{}, err
		}
		sched.Grid = grid
	}
	return service.GeneratorConfig(sched)
}

func request(opts *options, data *fixtures.Dataset) (timetable.Request, error) {
	payload := dto.GenerateTimetableRequest{
		StartDate:         opts.start,
		EndDate:           opts.end,
		IncludeWeekends:   opts.includeWeekends,
		MaxSessionsPerDay: opts.maxPerDay,
	}
	if opts.programs == "" {
		payload.ProgramIDs = data.ProgramIDs()
	} else {
		for _, raw := range strings.Split(opts.programs, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
			if err != nil {
				return timetable.Request{}, fmt.Errorf("invalid program id %q", raw)
			}
			payload.ProgramIDs = append(payload.ProgramIDs, id)
		}
	}
	return payload.ToRequest()
}

func writeReport(dest string, stdout io.Writer, resp *dto.GenerateTimetableResponse) error {
	out := stdout
	if dest != "-" && dest != "" {
		f, err := os.Create(dest)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func writeExports(opts *options, data *fixtures.Dataset, report *timetable.Report, logr *zap.Logger) error {
	loc, err := time.LoadLocation(opts.timezone)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", opts.timezone, err)
	}
	rows, err := service.BuildExportRows(data.SessionDetails(report.Sessions), loc)
	if err != nil {
		return err
	}
	doc := export.Document{
		TimetableID: "cli",
		Title:       fmt.Sprintf("Timetable %s to %s", opts.start, opts.end),
		GeneratedAt: time.Now().UTC(),
		Rows:        rows,
	}
	if err := os.MkdirAll(opts.exportDir, 0o755); err != nil {
		return err
	}
	for _, raw := range strings.Split(opts.formats, ",") {
		format, err := export.ParseFormat(raw)
		if err != nil {
			return err
		}
		exporter, err := export.New(format)
		if err != nil {
			return err
		}
		payload, err := exporter.Render(doc)
		if err != nil {
			return fmt.Errorf("render %s: %w", format, err)
		}
		path := filepath.Join(opts.exportDir, export.Filename(doc, format))
		if err := os.WriteFile(path, payload, 0o644); err != nil {
			return err
		}
		logr.Info("export written", zap.String("path", path), zap.Int("rows", len(rows)))
	}
	return nil
}
