package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"slidenotes/internal/alignment"
	"slidenotes/internal/config"
	"slidenotes/internal/services"
	"slidenotes/internal/services/llm"
	"slidenotes/internal/services/openaifn"
)

// Classifier is an alignment oracle that can also report its own health.
type Classifier interface {
	alignment.Oracle
	HealthCheck(ctx context.Context) error
	Model() string
}

// NewClassifier builds the classifier selected by llm.provider.
func NewClassifier(cfg *config.Config, logger *slog.Logger) (Classifier, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "classify", "init", "config is nil", nil)
	}
	settings := cfg.GetLLM()
	if settings.APIKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "classify", "init",
			"llm.api_key is not set (or export SLIDENOTES_LLM_API_KEY)", nil)
	}
	switch strings.ToLower(settings.Provider) {
	case config.ProviderOpenRouter, "":
		return llm.NewClient(llm.Config{
			APIKey:         settings.APIKey,
			BaseURL:        settings.BaseURL,
			Model:          settings.Model,
			Referer:        settings.Referer,
			Title:          settings.Title,
			TimeoutSeconds: settings.TimeoutSeconds,
		},
			llm.WithLogger(logger),
			llm.WithRetryMaxAttempts(settings.RetryAttempts),
		), nil
	case config.ProviderOpenAI:
		return openaifn.NewClient(openaifn.Config{
			APIKey:         settings.APIKey,
			BaseURL:        settings.BaseURL,
			Model:          settings.Model,
			TimeoutSeconds: settings.TimeoutSeconds,
			RetryAttempts:  settings.RetryAttempts,
		}), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "classify", "init",
			fmt.Sprintf("unknown llm provider %q", settings.Provider), nil)
	}
}
