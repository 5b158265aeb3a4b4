package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"courseforge/internal/course"
)

func newCoursesCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "courses",
		Short: "List generated courses",
		RunE: func(cmd *cobra.Command, args []string) error {
			courses, err := ctx.client().Courses(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(courses) == 0 {
				fmt.Fprintln(out, "No courses yet")
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Title", "Channel", "Days", "Grade"},
				buildCourseRows(courses),
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum rows")
	return cmd
}

func newCourseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "course <id>",
		Short: "Show a generated course day by day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid course id %q", args[0])
			}
			artifact, err := ctx.client().Course(cmd.Context(), id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\n", artifact.Title)
			if artifact.Description != "" {
				fmt.Fprintf(out, "%s\n", artifact.Description)
			}
			fmt.Fprintf(out, "Source: %s (%s)\n", artifact.VideoTitle, artifact.VideoURL)
			fmt.Fprintf(out, "Grade:  %s", artifact.Metrics.QualityGrade)
			if artifact.Metrics.FallbacksUsed > 0 {
				fmt.Fprintf(out, " (%d fallback(s) used)", artifact.Metrics.FallbacksUsed)
			}
			fmt.Fprintln(out)
			if artifact.MediaURL != "" {
				fmt.Fprintf(out, "Media:  %s\n", artifact.MediaURL)
			}
			for _, day := range artifact.Days {
				fmt.Fprintf(out, "\nDay %d: %s\n", day.Number, day.Title)
				if day.Description != "" {
					fmt.Fprintf(out, "  %s\n", day.Description)
				}
				for _, topic := range day.Topics {
					fmt.Fprintf(out, "  - %s\n", topic)
				}
			}
			return nil
		},
	}
}

func buildCourseRows(courses []*course.Course) [][]string {
	rows := make([][]string, 0, len(courses))
	for _, c := range courses {
		rows = append(rows, []string{
			strconv.FormatInt(c.ID, 10),
			truncate(c.Title, 56),
			truncate(c.ChannelTitle, 24),
			strconv.Itoa(c.Metrics.DayCount),
			c.Metrics.QualityGrade,
		})
	}
	return rows
}
