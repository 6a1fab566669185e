package worktree

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/agusx1211/cli-worker/internal/debug"
)

// ErrInvalidAge is returned by ValidateAge for thresholds that are negative,
// not finite, or too large to express as a time.Duration.
var ErrInvalidAge = errors.New("age threshold must be a finite, non-negative number of hours")

const maxAgeHours = float64(math.MaxInt64) / float64(time.Hour)

// ValidateAge checks a cleanup threshold given in hours.
func ValidateAge(hours float64) error {
	if math.IsNaN(hours) || math.IsInf(hours, 0) || hours < 0 || hours >= maxAgeHours {
		return fmt.Errorf("%v: %w", hours, ErrInvalidAge)
	}
	return nil
}

// CleanupResult summarizes one reclamation pass.
type CleanupResult struct {
	Removed  int      `json:"removed"`
	Failures []string `json:"failures"`
}

// Cleanup removes every sandbox whose directory mtime is strictly older than
// olderThanHours. Age is taken from the directory itself because a sandbox
// carries no completion marker once the tool exits.
//
// A failure on one sandbox never stops the rest: it is recorded as
// "Failed to remove <path>: <message>" and the pass continues. Cleanup never
// returns an error; an invalid threshold or a listing failure shows up in
// Failures and nothing is removed.
func (m *Manager) Cleanup(ctx context.Context, olderThanHours float64) CleanupResult {
	res := CleanupResult{Failures: []string{}}

	if err := ValidateAge(olderThanHours); err != nil {
		res.Failures = append(res.Failures, err.Error())
		return res
	}

	wts, err := m.List(ctx)
	if err != nil {
		res.Failures = append(res.Failures, fmt.Sprintf("Failed to list worktrees: %v", err))
		return res
	}

	cutoff := m.now().Add(-time.Duration(olderThanHours * float64(time.Hour)))
	for _, wt := range wts {
		info, err := os.Stat(wt.Path)
		if err != nil {
			// Missing directories are left to `git worktree prune`.
			debug.LogKV("worktree", "cleanup: stat failed", "path", wt.Path, "error", err)
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := m.Remove(ctx, wt.Path); err != nil {
			res.Failures = append(res.Failures, fmt.Sprintf("Failed to remove %s: %v", wt.Path, err))
			continue
		}
		res.Removed++
	}

	if res.Removed > 0 {
		if _, err := m.git(ctx, m.repoRoot, "worktree", "prune"); err != nil {
			debug.LogKV("worktree", "cleanup: prune failed", "error", err)
		}
	}
	debug.LogKV("worktree", "cleanup done", "removed", res.Removed, "failures", len(res.Failures), "cutoff", cutoff.Format(time.RFC3339))
	return res
}
