package testsupport

import (
	"path/filepath"
	"testing"

	"slidenotes/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.LLM.APIKey = "test"
	cfgVal.LLM.Model = "test-model"
	cfgVal.LLM.BaseURL = "http://127.0.0.1:0/v1/chat/completions"
	cfgVal.LLM.RetryAttempts = 1
	cfgVal.Workflow.PollInterval = 1

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithStorage selects the job store backend.
func WithStorage(backend string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Storage.Backend = backend
	}
}

// WithFailurePolicy sets alignment.on_batch_failure.
func WithFailurePolicy(policy string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Alignment.OnBatchFailure = policy
	}
}

// WithLLMEndpoint points the classifier at a test server.
func WithLLMEndpoint(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LLM.BaseURL = url
	}
}
