package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"courseforge/internal/runlog"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var since uint64

	cmd := &cobra.Command{
		Use:   "logs <run-id>",
		Short: "Print a run's progress log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return streamLogs(cmd.Context(), ctx, args[0], since, follow, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep streaming until the run finishes")
	cmd.Flags().Uint64Var(&since, "since", 0, "Start after this sequence number")
	return cmd
}

// streamLogs pages through a run's log. With follow it keeps long-polling the
// daemon until the stream closes.
func streamLogs(cmdCtx context.Context, ctx *commandContext, id string, since uint64, follow bool, out io.Writer) error {
	client := ctx.client()
	cursor := since
	for {
		page, err := client.Logs(cmdCtx, id, cursor, 0, follow)
		if err != nil {
			return err
		}
		for _, evt := range page.Events {
			fmt.Fprintln(out, formatEvent(evt))
		}
		cursor = page.Next
		if page.Closed || !follow {
			return nil
		}
	}
}

func formatEvent(evt runlog.Event) string {
	var b strings.Builder
	b.WriteString(evt.Timestamp.Local().Format("15:04:05"))
	b.WriteString(" ")
	b.WriteString(strings.ToUpper(evt.Level))
	if evt.Stage != "" {
		b.WriteString(" [")
		b.WriteString(evt.Stage)
		if evt.Provider != "" {
			b.WriteString("/")
			b.WriteString(evt.Provider)
		}
		b.WriteString("]")
	}
	b.WriteString(" ")
	b.WriteString(evt.Message)
	return b.String()
}
