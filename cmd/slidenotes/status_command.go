package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"slidenotes/internal/jobs"
	"slidenotes/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check paths, job store and classifier readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			for _, line := range renderSectionHeader("Readiness", colorize) {
				fmt.Fprintln(out, line)
			}
			results := preflight.RunAll(cmd.Context(), cfg)
			for _, r := range results {
				kind := statusOK
				if !r.Passed {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
			}

			mgr, err := ctx.manager(false)
			if err != nil {
				return err
			}
			summary := mgr.Summary(cmd.Context())
			fmt.Fprintln(out)
			for _, line := range renderSectionHeader("Jobs", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, status := range jobs.AllStatuses() {
				if n := summary.JobStats[status]; n > 0 {
					fmt.Fprintln(out, renderStatusLine(formatStatusLabel(status), jobStatusKind(status), fmt.Sprintf("%d", n), colorize))
				}
			}
			if len(summary.JobStats) == 0 {
				fmt.Fprintln(out, renderStatusLine("Jobs", statusInfo, "none", colorize))
			}

			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d readiness check(s) failed", len(failed))
			}
			return nil
		},
	}
}
