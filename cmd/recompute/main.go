// Package main is a one-shot CLI that recomputes evaluations for a student,
// a halaqa or every active student, then prints the outcome.
//
//	recompute -student <uuid> -date 2024-05-15
//	recompute -halaqa <uuid> -date 2024-05-15
//	recompute -all
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/halaqa-hub/evaluation-engine/config"
	"github.com/halaqa-hub/evaluation-engine/internal/application/command"
	"github.com/halaqa-hub/evaluation-engine/internal/application/query"
	"github.com/halaqa-hub/evaluation-engine/internal/bootstrap"
	"github.com/halaqa-hub/evaluation-engine/pkg/timeutil"
)

type options struct {
	configPath string
	studentIDs string
	halaqaID   string
	all        bool
	date       string
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("recompute", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&o.configPath, "config", os.Getenv("HALAQA_CONFIG"), "path to a YAML config file")
	fs.StringVar(&o.studentIDs, "student", "", "comma-separated student ids")
	fs.StringVar(&o.halaqaID, "halaqa", "", "halaqa id")
	fs.BoolVar(&o.all, "all", false, "recompute every active student")
	fs.StringVar(&o.date, "date", "", "reference date YYYY-MM-DD (default today)")

	if err := fs.Parse(args); err != nil {
		return o, err
	}

	selected := 0
	for _, set := range []bool{o.studentIDs != "", o.halaqaID != "", o.all} {
		if set {
			selected++
		}
	}
	if selected != 1 {
		return o, errors.New("exactly one of -student, -halaqa or -all is required")
	}
	return o, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "usage: recompute (-student ids | -halaqa id | -all) [-date YYYY-MM-DD] [-config path]\n%v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "recompute failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, logCloser := bootstrap.NewLogger(cfg.Log)
	defer logCloser.Close()

	engine, err := bootstrap.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer engine.Close()

	ref := engine.Clock.Now()
	if opts.date != "" {
		if ref, err = timeutil.ParseDate(opts.date); err != nil {
			return fmt.Errorf("invalid -date: %w", err)
		}
	}

	ids := splitIDs(opts.studentIDs)
	if len(ids) == 1 {
		return recomputeOne(ctx, engine, ids[0], ref)
	}

	stats, err := engine.RecomputeRoster.Handle(ctx, command.RecomputeRosterCommand{
		StudentIDs:    ids,
		HalaqaID:      opts.halaqaID,
		ReferenceDate: ref,
	})
	if stats != nil {
		fmt.Printf("week of %s: %d students, %d succeeded, %d failed, %d snapshots updated (%s)\n",
			timeutil.FormatDateStr(ref), stats.Total, stats.Succeeded, stats.Failed, stats.SnapshotUpdates,
			stats.Duration.Round(time.Millisecond))
		for _, f := range stats.Failures {
			fmt.Printf("  %s: %v\n", f.StudentID, f.Err)
		}
	}
	if err != nil {
		return err
	}
	if stats.Failed > 0 {
		return fmt.Errorf("%d students failed", stats.Failed)
	}
	return nil
}

func recomputeOne(ctx context.Context, engine *bootstrap.Engine, studentID string, ref time.Time) error {
	res, err := engine.RecomputeStudent.Handle(ctx, command.RecomputeStudentStatsCommand{
		StudentID:     studentID,
		ReferenceDate: ref,
	})
	if err != nil {
		var stageErr *command.StageError
		if errors.As(err, &stageErr) {
			return fmt.Errorf("stopped at %s stage (completed: %v): %w", stageErr.Stage, res.Completed, stageErr.Err)
		}
		return err
	}

	summary, err := engine.Summary.Handle(ctx, query.GetEvaluationSummaryQuery{StudentID: res.StudentID, ReferenceDate: ref})
	if err != nil {
		return err
	}
	printSummary(os.Stdout, summary, res.SnapshotUpdated)
	return nil
}

func printSummary(w io.Writer, s *query.EvaluationSummaryDTO, snapshotUpdated bool) {
	fmt.Fprintf(w, "student %s, week of %s\n", s.StudentID, timeutil.FormatDateStr(s.WeekStart))
	if s.Week != nil {
		fmt.Fprintf(w, "  week:  %3d pts  rating %4.1f  %d★\n", s.Week.TotalPoints, s.Week.Rating, s.Week.Stars)
	}
	if s.Month != nil {
		fmt.Fprintf(w, "  month: %3d pts  rating %4.1f  %d★  (%d weeks)\n", s.Month.TotalPoints, s.Month.Rating, s.Month.Stars, len(s.WeeksInMonth))
	}
	if s.Year != nil {
		fmt.Fprintf(w, "  year:  %3d pts  rating %4.1f  %d★\n", s.Year.TotalPoints, s.Year.Rating, s.Year.Stars)
	}
	fmt.Fprintf(w, "  snapshot updated: %t\n", snapshotUpdated)
}

func splitIDs(s string) []string {
	var ids []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			ids = append(ids, p)
		}
	}
	return ids
}
