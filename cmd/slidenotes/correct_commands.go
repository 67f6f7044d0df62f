package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"slidenotes/internal/alignment"
)

func newPostProcessCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "post-process JOB SLIDE",
		Short: "Re-classify one slide's text against its neighbours",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			slide, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid slide number %q", args[1])
			}
			mgr, err := ctx.manager(true)
			if err != nil {
				return err
			}
			result, err := mgr.PostProcess(cmd.Context(), args[0], slide)
			if err != nil {
				return err
			}
			return printCorrection(cmd, result, jsonOutput, fmt.Sprintf("Post-processed slide %d", slide))
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the corrected document as JSON")
	return cmd
}

func newMoveSegmentCommand(ctx *commandContext) *cobra.Command {
	var from, to int
	var text string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "move-segment JOB",
		Short: "Move literal text from one slide to another",
		Long: `Remove the first occurrence of --text from slide --from and splice it into
slide --to. Text moved to an earlier slide is appended there; text moved to a
later slide is prepended. --to 0 deletes the text.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("from") || !cmd.Flags().Changed("to") {
				return errors.New("--from and --to are required")
			}
			if strings.TrimSpace(text) == "" {
				return errors.New("--text is required")
			}
			mgr, err := ctx.manager(false)
			if err != nil {
				return err
			}
			result, err := mgr.MoveSegment(cmd.Context(), args[0], from, to, text)
			if err != nil {
				return err
			}
			msg := fmt.Sprintf("Moved text from slide %d to slide %d", from, to)
			if to == 0 {
				msg = fmt.Sprintf("Deleted text from slide %d", from)
			}
			return printCorrection(cmd, result, jsonOutput, msg)
		},
	}
	cmd.Flags().IntVar(&from, "from", 0, "Source slide number")
	cmd.Flags().IntVar(&to, "to", 0, "Target slide number (0 deletes)")
	cmd.Flags().StringVar(&text, "text", "", "Literal text to move")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the corrected document as JSON")
	return cmd
}

func printCorrection(cmd *cobra.Command, result *alignment.Result, jsonOutput bool, message string) error {
	if jsonOutput {
		return writeJSON(cmd, result)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderStatusLine("Correction", statusOK, message, shouldColorize(out)))
	fmt.Fprintln(out, renderTable([]string{"Slide", "Segments", "Text"}, buildSlideRows(result),
		[]columnAlignment{alignRight, alignRight, alignLeft}, 0))
	return nil
}
