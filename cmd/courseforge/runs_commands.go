package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"courseforge/internal/run"
	"courseforge/internal/store"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var history bool
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List active runs, or persisted history with --history",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if history {
				summaries, err := ctx.client().History(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if len(summaries) == 0 {
					fmt.Fprintln(out, "No run history")
					return nil
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Run", "Video", "Status", "Course", "Finished"},
					buildHistoryRows(summaries),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			}

			runs, err := ctx.client().Runs(cmd.Context())
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No active runs")
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Run", "Video", "Status", "Age", "Error"},
				buildRunRows(runs, time.Now()),
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&history, "history", false, "Show persisted run history instead of live runs")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum history rows")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a run's stages and provider attempts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := ctx.client().Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run:    %s\n", record.ID)
			fmt.Fprintf(out, "Video:  %s (%s)\n", record.Reference.VideoID, record.Reference.URL)
			fmt.Fprintf(out, "Status: %s\n", record.Status)
			if record.Error != "" {
				fmt.Fprintf(out, "Error:  %s\n", record.Error)
			}
			if record.CourseID != 0 {
				fmt.Fprintf(out, "Course: %d\n", record.CourseID)
			}
			if len(record.Stages) == 0 {
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Stage", "Status", "Provider", "Attempts", "Detail"},
				buildStageRows(record.Stages),
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <run-id>",
		Short: "Cancel a running pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.client().Cancel(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cancellation requested for run %s\n", args[0])
			return nil
		},
	}
}

func buildRunRows(runs []*run.Run, now time.Time) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			shortID(r.ID),
			r.Reference.VideoID,
			string(r.Status),
			formatAge(now.Sub(r.CreatedAt)),
			truncate(r.Error, 48),
		})
	}
	return rows
}

func buildHistoryRows(summaries []store.RunSummary) [][]string {
	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		courseID := ""
		if s.CourseID != 0 {
			courseID = fmt.Sprintf("%d", s.CourseID)
		}
		finished := ""
		if !s.FinishedAt.IsZero() {
			finished = s.FinishedAt.Local().Format("2006-01-02 15:04")
		}
		rows = append(rows, []string{
			shortID(s.ID),
			s.VideoID,
			string(s.Status),
			courseID,
			finished,
		})
	}
	return rows
}

func buildStageRows(stages []run.StageResult) [][]string {
	rows := make([][]string, 0, len(stages))
	for _, sr := range stages {
		detail := sr.Error
		if detail == "" && sr.Status == run.StageSucceededViaFallback {
			detail = "via fallback"
		}
		rows = append(rows, []string{
			sr.Stage,
			string(sr.Status),
			sr.Provider,
			fmt.Sprintf("%d", len(sr.Attempts)),
			truncate(detail, 48),
		})
	}
	return rows
}
