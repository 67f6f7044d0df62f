package workflow

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"slidenotes/internal/alignment"
	"slidenotes/internal/config"
	"slidenotes/internal/jobs"
	"slidenotes/internal/logging"
	"slidenotes/internal/segmenter"
)

// Manager coordinates alignment jobs over a jobs.Store.
type Manager struct {
	cfg          *config.Config
	store        jobs.Store
	oracle       alignment.Oracle
	splitter     alignment.Splitter
	logger       *slog.Logger
	pollInterval time.Duration
	now          func() time.Time

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	bg      sync.WaitGroup
	lastErr error
	lastJob *jobs.Job
	live    map[string]*jobs.Job

	writeMu sync.Mutex
	writers map[string]*sync.Mutex
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithSplitter overrides the post-process re-splitter.
func WithSplitter(splitter alignment.Splitter) ManagerOption {
	return func(m *Manager) {
		if splitter != nil {
			m.splitter = splitter
		}
	}
}

// WithClock overrides the time source used for job ids.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithPollInterval overrides workflow.poll_interval.
func WithPollInterval(interval time.Duration) ManagerOption {
	return func(m *Manager) {
		if interval > 0 {
			m.pollInterval = interval
		}
	}
}

// NewManager constructs a workflow manager.
func NewManager(cfg *config.Config, store jobs.Store, oracle alignment.Oracle, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	poll := time.Duration(cfg.Workflow.PollInterval) * time.Second
	if poll <= 0 {
		poll = 5 * time.Second
	}
	m := &Manager{
		cfg:          cfg,
		store:        store,
		oracle:       oracle,
		splitter:     segmenter.New(cfg.Alignment.ResplitMaxChars, cfg.Alignment.ResplitMinChars),
		logger:       logging.NewComponentLogger(logger, "workflow"),
		pollInterval: poll,
		now:          time.Now,
		live:         make(map[string]*jobs.Job),
		writers:      make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewJobID returns an id of the form YYYYMMDD_HHMMSS_<8 hex>.
func NewJobID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return now.Format("20060102_150405") + "_" + suffix
}

func (m *Manager) aligner() *alignment.Aligner {
	return alignment.NewAligner(alignment.NewAdapter(m.oracle, m.logger), m.logger)
}

func (m *Manager) corrector() *alignment.Corrector {
	return alignment.NewCorrector(alignment.NewAdapter(m.oracle, m.logger), m.splitter, m.cfg.Alignment.CorrectionRadius, m.logger)
}

func (m *Manager) alignOptions() alignment.Options {
	policy := alignment.FailAbort
	if strings.EqualFold(m.cfg.Alignment.OnBatchFailure, config.FailureSkip) {
		policy = alignment.FailSkip
	}
	return alignment.Options{
		SlideWindow:   m.cfg.Alignment.SlideWindow,
		MaxBatchChars: m.cfg.Alignment.MaxBatchChars,
		MinBatchChars: m.cfg.Alignment.MinBatchChars,
		OnFailure:     policy,
	}
}

// writerFor returns the in-process write mutex for one job.
func (m *Manager) writerFor(id string) *sync.Mutex {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	mu, ok := m.writers[id]
	if !ok {
		mu = &sync.Mutex{}
		m.writers[id] = mu
	}
	return mu
}

// withJobWrite runs fn while holding both the in-process mutex and the
// store's file lock for id.
func (m *Manager) withJobWrite(ctx context.Context, id string, fn func() error) error {
	mu := m.writerFor(id)
	mu.Lock()
	defer mu.Unlock()

	lock, err := m.store.LockJob(ctx, id)
	if err != nil {
		return err
	}
	defer func() {
		if unlockErr := lock.Unlock(); unlockErr != nil {
			m.logger.Warn("failed to release job lock",
				logging.JobID(id),
				logging.String("lock", lock.Path()),
				logging.Error(unlockErr),
			)
		}
	}()
	return fn()
}
