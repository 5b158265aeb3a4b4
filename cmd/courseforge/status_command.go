package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := ctx.client().Status(cmd.Context())
			if err != nil {
				return err
			}
			uptime := ""
			if !status.StartedAt.IsZero() {
				uptime = formatAge(time.Since(status.StartedAt))
			}
			rows := [][]string{
				{"Running", yesNo(status.Running)},
				{"PID", strconv.Itoa(status.PID)},
				{"Uptime", uptime},
				{"Active runs", strconv.Itoa(status.ActiveRuns)},
				{"Total courses", strconv.FormatInt(status.TotalCourses, 10)},
				{"Database", status.DBPath},
				{"Lock file", status.LockFilePath},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Field", "Value"},
				rows,
				[]columnAlignment{alignLeft, alignLeft},
			))
			return nil
		},
	}
}
