package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"slidenotes/internal/config"
	"slidenotes/internal/jobs"
	"slidenotes/internal/workflow"
)

const classifierTimeout = 30 * time.Second

// CheckClassifier verifies that the configured classifier is reachable and
// the key is valid. It uses a 30-second timeout and a single attempt.
func CheckClassifier(ctx context.Context, name string, cfg *config.Config) Result {
	single := *cfg
	single.LLM.RetryAttempts = 1
	classifier, err := workflow.NewClassifier(&single, nil)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}

	checkCtx, cancel := context.WithTimeout(ctx, classifierTimeout)
	defer cancel()

	label := fmt.Sprintf("%s %s", cfg.LLM.Provider, classifier.Model())
	if err := classifier.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s: %s", label, summarizeLLMError(err))}
	}
	return Result{Name: name, Passed: true, Detail: label + " reachable"}
}

// CheckStore opens the configured job store and counts its jobs.
func CheckStore(ctx context.Context, cfg *config.Config) Result {
	const name = "Job store"

	store, err := jobs.Open(cfg)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", cfg.Storage.Backend, err)}
	}
	defer store.Close()

	list, err := store.List(ctx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: list jobs: %v)", store.Location(), err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s %s (%d jobs)", cfg.Storage.Backend, store.Location(), len(list))}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// summarizeLLMError produces a human-readable summary for classifier health check failures.
func summarizeLLMError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (classifier unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (classifier unreachable)"
	}
	return err.Error()
}
