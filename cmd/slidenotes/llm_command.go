package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"slidenotes/internal/workflow"
)

const healthTimeout = 30 * time.Second

func newLLMCommand(ctx *commandContext) *cobra.Command {
	llmCmd := &cobra.Command{
		Use:   "llm",
		Short: "Classifier utilities",
	}
	llmCmd.AddCommand(&cobra.Command{
		Use:   "health",
		Short: "Check that the configured classifier answers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			classifier, err := workflow.NewClassifier(cfg, logger)
			if err != nil {
				return err
			}
			checkCtx, cancel := context.WithTimeout(cmd.Context(), healthTimeout)
			defer cancel()

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			label := fmt.Sprintf("%s %s", cfg.LLM.Provider, classifier.Model())
			if err := classifier.HealthCheck(checkCtx); err != nil {
				fmt.Fprintln(out, renderStatusLine("Classifier", statusError, label, colorize))
				return fmt.Errorf("classifier health check: %w", err)
			}
			fmt.Fprintln(out, renderStatusLine("Classifier", statusOK, label, colorize))
			return nil
		},
	})
	return llmCmd
}
