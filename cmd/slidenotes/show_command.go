package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"slidenotes/internal/services"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show JOB",
		Short: "Show a job and its notes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := ctx.manager(false)
			if err != nil {
				return err
			}
			job, err := mgr.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			result, err := mgr.Result(cmd.Context(), job.ID)
			if err != nil && !errors.Is(err, services.ErrNotFound) {
				return err
			}
			if jsonOutput {
				if result == nil {
					return err
				}
				return writeJSON(cmd, result)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader("Job "+job.ID, colorize) {
				fmt.Fprintln(out, line)
			}
			if job.Title != "" {
				fmt.Fprintln(out, renderStatusLine("Title", statusInfo, job.Title, colorize))
			}
			fmt.Fprintln(out, renderStatusLine("Status", jobStatusKind(job.Status), formatStatusLabel(job.Status), colorize))
			fmt.Fprintln(out, renderStatusLine("Progress", statusInfo, fmt.Sprintf("%s %s", formatProgress(job), job.ProgressMessage), colorize))
			fmt.Fprintln(out, renderStatusLine("Inputs", statusInfo,
				fmt.Sprintf("%d segments, %d slides, %d batches", job.SegmentCount, job.SlideCount, job.BatchCount), colorize))
			if job.SkippedBatches > 0 {
				fmt.Fprintln(out, renderStatusLine("Skipped", statusWarn, fmt.Sprintf("%d batch(es) routed to slide 0", job.SkippedBatches), colorize))
			}
			if job.ErrorMessage != "" {
				fmt.Fprintln(out, renderStatusLine("Error", statusError, fmt.Sprintf("(%s) %s", job.ErrorKind, job.ErrorMessage), colorize))
			}
			if result == nil {
				fmt.Fprintln(out, renderStatusLine("Result", statusInfo, "not assembled yet", colorize))
				return nil
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, renderTable([]string{"Slide", "Segments", "Text"}, buildSlideRows(result),
				[]columnAlignment{alignRight, alignRight, alignLeft}, 0))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result document as JSON")
	return cmd
}
