package config

const (
	defaultConfigPath       = "~/.config/slidenotes/config.toml"
	defaultDataDir          = "~/.local/share/slidenotes"
	defaultLogDir           = "~/.local/share/slidenotes/logs"
	defaultStorageBackend   = StorageSQLite
	defaultLLMProvider      = ProviderOpenRouter
	defaultOpenRouterURL    = "https://openrouter.ai/api/v1/chat/completions"
	defaultOpenAIURL        = "https://api.openai.com/v1"
	defaultLLMModel         = "openai/gpt-4o"
	defaultOpenAIModel      = "gpt-4o"
	defaultLLMReferer       = "https://github.com/slidenotes/slidenotes"
	defaultLLMTitle         = "slidenotes alignment"
	defaultLLMTimeout       = 60
	defaultLLMRetryAttempts = 2
	defaultSlideWindow      = 6
	defaultMaxBatchChars    = 2000
	defaultMinBatchChars    = 500
	defaultCorrectionRadius = 1
	defaultOnBatchFailure   = FailureAbort
	defaultResplitMaxChars  = 2000
	defaultResplitMinChars  = 200
	defaultPollInterval     = 5
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
)

// Storage backends.
const (
	StorageSQLite     = "sqlite"
	StorageFilesystem = "filesystem"
)

// LLM providers.
const (
	ProviderOpenRouter = "openrouter"
	ProviderOpenAI     = "openai"
)

// Batch failure policies.
const (
	FailureAbort = "abort"
	FailureSkip  = "skip"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Storage: Storage{
			Backend: defaultStorageBackend,
		},
		LLM: LLM{
			Provider:       defaultLLMProvider,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeout,
			RetryAttempts:  defaultLLMRetryAttempts,
		},
		Alignment: Alignment{
			SlideWindow:      defaultSlideWindow,
			MaxBatchChars:    defaultMaxBatchChars,
			MinBatchChars:    defaultMinBatchChars,
			CorrectionRadius: defaultCorrectionRadius,
			OnBatchFailure:   defaultOnBatchFailure,
			ResplitMaxChars:  defaultResplitMaxChars,
			ResplitMinChars:  defaultResplitMinChars,
		},
		Workflow: Workflow{
			PollInterval: defaultPollInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
