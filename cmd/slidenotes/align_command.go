package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"slidenotes/internal/workflow"
)

func newAlignCommand(ctx *commandContext) *cobra.Command {
	var segmentsPath string
	var slidesPath string
	var title string
	var detach bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "align",
		Short: "Map transcript segments to slides",
		Long: `Create an alignment job from a segments file and a slide captions file.

Segments are [{"id": 1, "text": "..."}] (or {"segments": [...]}); slides are
[{"slide_number": 1, "type": "content", "title_keywords": [...],
"secondary_keywords": [...]}] (or {"slides": [...]}).

Without --detach the job runs immediately and the result is printed. With
--detach the job is only stored for slidenotesd to pick up.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(segmentsPath) == "" || strings.TrimSpace(slidesPath) == "" {
				return errors.New("--segments and --slides are required")
			}
			segments, err := readSegments(segmentsPath)
			if err != nil {
				return err
			}
			slides, err := readSlides(slidesPath)
			if err != nil {
				return err
			}

			mgr, err := ctx.manager(!detach)
			if err != nil {
				return err
			}
			job, err := mgr.Submit(cmd.Context(), workflow.SubmitRequest{Title: title, Segments: segments, Slides: slides})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if detach {
				if jsonOutput {
					return writeJSON(cmd, job)
				}
				fmt.Fprintf(out, "Queued job %s (%d segments, %d slides)\n", job.ID, job.SegmentCount, job.SlideCount)
				fmt.Fprintln(out, "slidenotesd will run it; check progress with 'slidenotes jobs'.")
				return nil
			}

			job, err = mgr.Run(cmd.Context(), job.ID)
			if err != nil {
				if job != nil {
					return fmt.Errorf("job %s: %w", job.ID, err)
				}
				return err
			}
			result, err := mgr.Result(cmd.Context(), job.ID)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, result)
			}
			colorize := shouldColorize(out)
			fmt.Fprintln(out, renderStatusLine("Job", jobStatusKind(job.Status), job.ID, colorize))
			fmt.Fprintln(out, renderStatusLine("Progress", statusInfo, job.ProgressMessage, colorize))
			if job.SkippedBatches > 0 {
				fmt.Fprintln(out, renderStatusLine("Skipped", statusWarn,
					fmt.Sprintf("%d batch(es) routed to slide 0", job.SkippedBatches), colorize))
			}
			fmt.Fprintln(out, renderTable([]string{"Slide", "Segments", "Text"}, buildSlideRows(result),
				[]columnAlignment{alignRight, alignRight, alignLeft}, 0))
			return nil
		},
	}

	cmd.Flags().StringVar(&segmentsPath, "segments", "", "Segments JSON file")
	cmd.Flags().StringVar(&slidesPath, "slides", "", "Slide captions JSON file")
	cmd.Flags().StringVar(&title, "title", "", "Job title")
	cmd.Flags().BoolVar(&detach, "detach", false, "Store the job for slidenotesd instead of running it")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result document (or queued job) as JSON")
	return cmd
}
