package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fieldline/statline/internal/data"
	"github.com/fieldline/statline/internal/domain/model"
)

func newStatusCmd() *cobra.Command {
	var (
		jobID   string
		typeStr string
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show a collection job and its checkpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			deps, err := initApp(ctx)
			if err != nil {
				return err
			}
			defer deps.close(context.Background())

			ledger := data.NewLedgerRepo(deps.db, data.LedgerRepoConfig{Logger: deps.logger})
			checkpoints := data.NewCheckpointRepo(deps.redis)

			var job *model.CollectionJob
			if jobID != "" {
				job, err = ledger.Get(ctx, jobID)
				if err != nil {
					return err
				}
			} else {
				jobType, err := model.ParseJobType(typeStr)
				if err != nil {
					return fmt.Errorf("--type: %w", err)
				}
				lane := model.Lane{Type: jobType, Environment: deps.cfg.Environment}
				job, err = ledger.FindRunning(ctx, lane)
				if err != nil {
					return err
				}
				if job == nil {
					fmt.Printf("no running %s job in %s\n", lane.Type, lane.Environment)
					return nil
				}
			}
			printJob(job)

			checkpoint, err := checkpoints.Load(ctx, job.Lane())
			if err != nil {
				return err
			}
			printCheckpoint(job, checkpoint)
			return nil
		},
	}

	cmd.Flags().StringVar(&jobID, "job-id", "", "job ID to inspect (default: the lane's running job)")
	cmd.Flags().StringVar(&typeStr, "type", string(model.JobTypeStats), "job type used when --job-id is omitted")
	return cmd
}

func printJob(job *model.CollectionJob) {
	fmt.Printf("job:         %s\n", job.ID)
	fmt.Printf("type:        %s\n", job.Type)
	fmt.Printf("environment: %s\n", job.Environment)
	fmt.Printf("league:      %s\n", job.League)
	fmt.Printf("status:      %s\n", job.Status)
	fmt.Printf("range:       %s\n", job.Range)
	fmt.Printf("progress:    %.1f%%\n", job.ProgressPct)
	fmt.Printf("processed:   %d record(s), %d inserted, %d failed unit(s)\n",
		job.RecordsProcessed, job.RecordsInserted, job.FailedUnits)
	fmt.Printf("created:     %s\n", job.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	if job.EndedAt != nil {
		fmt.Printf("ended:       %s\n", job.EndedAt.Format("2006-01-02 15:04:05 MST"))
	}
	if job.ErrorMessage != nil {
		fmt.Printf("error:       %s\n", *job.ErrorMessage)
	}
	if job.Metadata != "" {
		fmt.Printf("metadata:    %s\n", job.Metadata)
	}
}

func printCheckpoint(job *model.CollectionJob, checkpoint *model.Checkpoint) {
	if checkpoint == nil {
		fmt.Println("checkpoint:  none")
		return
	}
	owner := ""
	if checkpoint.JobID != job.ID {
		owner = fmt.Sprintf(" (belongs to job %s)", checkpoint.JobID)
	}
	fmt.Printf("checkpoint:  %d unit(s) completed, current %s%s\n",
		len(checkpoint.UnitsCompleted), checkpoint.CurrentUnit, owner)
}
