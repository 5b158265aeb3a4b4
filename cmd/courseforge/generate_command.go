package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"courseforge/internal/run"
)

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var follow bool

	cmd := &cobra.Command{
		Use:   "generate <youtube-url>",
		Short: "Submit a video and generate a course from it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := ctx.client()
			accepted, err := client.Generate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s accepted for video %s\n", accepted.ID, accepted.Reference.VideoID)
			if !follow {
				fmt.Fprintf(out, "Follow progress with `courseforge logs %s --follow`\n", accepted.ID)
				return nil
			}
			if err := streamLogs(cmd.Context(), ctx, accepted.ID, 0, true, out); err != nil {
				return err
			}
			return printRunOutcome(cmd.Context(), ctx, accepted.ID, out)
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Stream run progress until the run finishes")
	return cmd
}

func printRunOutcome(cmdCtx context.Context, ctx *commandContext, id string, out io.Writer) error {
	record, err := ctx.client().Run(cmdCtx, id)
	if err != nil {
		return err
	}
	switch record.Status {
	case run.StatusCompleted:
		fmt.Fprintf(out, "Run completed; course saved as id %d\n", record.CourseID)
	case run.StatusDegraded:
		fmt.Fprintf(out, "Run completed with fallbacks; course saved as id %d\n", record.CourseID)
	case run.StatusFailed:
		fmt.Fprintf(out, "Run failed: %s\n", record.Error)
	default:
		fmt.Fprintf(out, "Run is %s\n", record.Status)
	}
	if !record.FinishedAt.IsZero() && !record.StartedAt.IsZero() {
		fmt.Fprintf(out, "Elapsed: %s\n", record.FinishedAt.Sub(record.StartedAt).Round(time.Millisecond))
	}
	return nil
}
