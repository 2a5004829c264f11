package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fieldline/statline/internal/bootstrap"
	"github.com/fieldline/statline/internal/core"
	"github.com/fieldline/statline/internal/domain/model"
	"github.com/fieldline/statline/internal/service"
)

var errRunFailed = errors.New("collection run finished with failures")

const timeRound = 10 * time.Millisecond

func newCollectCmd() *cobra.Command {
	var (
		startStr    string
		endStr      string
		typeStr     string
		modeStr     string
		concurrency int
		resume      bool
		dryRun      bool
		metadata    string
	)

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Run a collection job over a date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			// SIGINT/SIGTERM pause the run with its checkpoint intact.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			req, err := buildCollectRequest(startStr, endStr, typeStr, modeStr, concurrency, resume, dryRun, metadata)
			if err != nil {
				return err
			}

			deps, err := initApp(ctx)
			if err != nil {
				return err
			}
			defer deps.close(context.Background())

			req.Environment = deps.cfg.Environment
			req.League = deps.cfg.Source.League
			if req.Concurrency <= 0 {
				req.Concurrency = deps.cfg.Collector.Concurrency
			}

			collector, err := bootstrap.NewCollector(deps.cfg, req.Type, deps.db, deps.redis, deps.logger)
			if err != nil {
				return err
			}
			defer closeMetrics(deps.logger, collector.Metrics)

			summary, err := collector.Orchestrator.Collect(ctx, req)
			if err != nil {
				return err
			}
			printSummary(summary)
			if summary.Status == model.JobStatusFailed || len(summary.Failed) > 0 {
				return errRunFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&startStr, "start", "", "first date to collect (YYYY-MM-DD)")
	cmd.Flags().StringVar(&endStr, "end", "", "last date to collect (YYYY-MM-DD)")
	cmd.Flags().StringVar(&typeStr, "type", string(model.JobTypeStats), "job type: stats or roster")
	cmd.Flags().StringVar(&modeStr, "mode", string(model.ModeMissing), "plan mode: missing, full, or refresh")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "worker count (default from config)")
	cmd.Flags().BoolVar(&resume, "resume", false, "resume from the lane's checkpoint")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "plan only: no job row, no fetches, no writes")
	cmd.Flags().StringVar(&metadata, "metadata", "", "opaque metadata stored on the job row")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func buildCollectRequest(
	startStr, endStr, typeStr, modeStr string,
	concurrency int,
	resume, dryRun bool,
	metadata string,
) (service.CollectRequest, error) {
	var req service.CollectRequest

	start, err := model.ParseDateUnit(startStr)
	if err != nil {
		return req, fmt.Errorf("--start: %w", err)
	}
	end, err := model.ParseDateUnit(endStr)
	if err != nil {
		return req, fmt.Errorf("--end: %w", err)
	}
	jobType, err := model.ParseJobType(typeStr)
	if err != nil {
		return req, fmt.Errorf("--type: %w", err)
	}
	mode, err := model.ParseMode(modeStr)
	if err != nil {
		return req, fmt.Errorf("--mode: %w", err)
	}

	req = service.CollectRequest{
		Type:        jobType,
		Range:       model.DateRange{Start: start, End: end},
		Mode:        mode,
		Concurrency: concurrency,
		Resume:      resume,
		DryRun:      dryRun,
		Metadata:    metadata,
	}
	if err := req.Range.Validate(); err != nil {
		return req, err
	}
	return req, nil
}

func printSummary(s *service.Summary) {
	if s.DryRun {
		fmt.Printf("dry run: %d unit(s) planned across %d item(s)\n", s.PlannedUnits, len(s.Plan.Items))
		for _, item := range s.Plan.Items {
			fmt.Printf("  %s (%d day(s))\n", item.Range, item.Cost)
		}
		return
	}

	fmt.Printf("job %s %s: %d/%d unit(s) succeeded, %d record(s) processed, %d inserted, in %s\n",
		s.JobID, s.Status, s.SucceededUnits, s.PlannedUnits,
		s.RecordsProcessed, s.RecordsInserted, s.Elapsed.Round(timeRound))
	for _, r := range s.Failed {
		fmt.Fprintf(os.Stderr, "  failed %s: %s: %v\n", r.Unit, core.KindOf(r.Err), errors.Unwrap(r.Err))
	}
}
