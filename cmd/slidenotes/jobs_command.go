package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"slidenotes/internal/jobs"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var statusFilters []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List alignment jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := make([]jobs.Status, 0, len(statusFilters))
			for _, raw := range statusFilters {
				status, ok := jobs.ParseStatus(raw)
				if !ok {
					return fmt.Errorf("unknown status %q (want one of %s)", raw, joinStatuses(jobs.AllStatuses()))
				}
				statuses = append(statuses, status)
			}

			mgr, err := ctx.manager(false)
			if err != nil {
				return err
			}
			list, err := mgr.List(cmd.Context(), statuses...)
			if err != nil {
				return err
			}
			if jsonOutput {
				if list == nil {
					list = []*jobs.Job{}
				}
				return writeJSON(cmd, list)
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No jobs found")
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Title", "Status", "Progress", "Segments", "Slides", "Created"},
				buildJobRows(list),
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
				40,
			))
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&statusFilters, "status", "s", nil, "Filter by status (repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print jobs as JSON")
	return cmd
}

func joinStatuses(statuses []jobs.Status) string {
	parts := make([]string, len(statuses))
	for i, s := range statuses {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}
