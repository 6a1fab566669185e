// Package worktree manages the git worktrees used as per-task sandboxes.
//
// Sandboxes live under a configured base directory, one directory per task:
//
//	<base>/<task id>
//
// The package never mutates state in memory; every listing is a fresh
// snapshot taken from `git worktree list`.
package worktree

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/agusx1211/cli-worker/internal/debug"
)

// ErrSandboxInUse is returned by Create when the task's sandbox directory
// already exists.
var ErrSandboxInUse = errors.New("sandbox directory already exists")

// Worktree is a task sandbox discovered under the base directory.
type Worktree struct {
	Path   string `json:"path" yaml:"path"`
	TaskID string `json:"task_id" yaml:"task_id"`
}

// gitFunc runs git with args in dir and returns its standard output.
type gitFunc func(ctx context.Context, dir string, args ...string) (string, error)

// Manager lists, creates and removes task sandboxes for one repository.
type Manager struct {
	repoRoot string
	basePath string

	git gitFunc
	now func() time.Time
}

// NewManager creates a Manager for the repository at repoRoot whose task
// sandboxes live under basePath.
func NewManager(repoRoot, basePath string) *Manager {
	return &Manager{
		repoRoot: repoRoot,
		basePath: basePath,
		git:      runGit,
		now:      time.Now,
	}
}

// RepoRoot returns the repository the manager operates on.
func (m *Manager) RepoRoot() string { return m.repoRoot }

// BasePath returns the sandbox base directory.
func (m *Manager) BasePath() string { return m.basePath }

// ResolveRepoPath returns explicit resolved against cwd when set, otherwise
// cwd. The result is not checked for existence.
func ResolveRepoPath(cwd, explicit string) string {
	explicit = strings.TrimSpace(explicit)
	if explicit == "" {
		return cwd
	}
	if filepath.IsAbs(explicit) {
		return filepath.Clean(explicit)
	}
	return filepath.Join(cwd, explicit)
}

// List returns the sandboxes registered with git that sit under the base
// directory. Errors from git are returned unchanged.
func (m *Manager) List(ctx context.Context) ([]Worktree, error) {
	out, err := m.git(ctx, m.repoRoot, "worktree", "list")
	if err != nil {
		return nil, err
	}
	wts := ParseListOutput(out, m.repoRoot, m.basePath)
	debug.LogKV("worktree", "listed", "repo", m.repoRoot, "base", m.basePath, "count", len(wts))
	return wts, nil
}

// ParseListOutput parses the tabular output of `git worktree list`. The first
// whitespace-delimited token of each line is taken as the worktree path;
// relative paths are resolved against repoPath. Only paths strictly below
// basePath are kept, and each gets the first path segment below basePath as
// its task ID.
func ParseListOutput(output, repoPath, basePath string) []Worktree {
	bases := normalizedBases(basePath)

	var result []Worktree
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		p := fields[0]
		if !filepath.IsAbs(p) {
			p = filepath.Join(repoPath, p)
		}
		p = filepath.Clean(p)

		for _, base := range bases {
			if taskID, ok := taskIDUnder(base, p); ok {
				result = append(result, Worktree{Path: p, TaskID: taskID})
				break
			}
		}
	}
	return result
}

// taskIDUnder returns the first segment of p relative to base, and false
// when p is base itself or lies outside it.
func taskIDUnder(base, p string) (string, bool) {
	rel, err := filepath.Rel(base, p)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	seg, _, _ := strings.Cut(filepath.ToSlash(rel), "/")
	if seg == "" {
		return "", false
	}
	return seg, true
}

// normalizedBases returns basePath made absolute and, when it differs, its
// symlink-resolved form. git reports real paths, so a base behind a symlink
// (e.g. /tmp on macOS) must match either spelling.
func normalizedBases(basePath string) []string {
	base := filepath.Clean(basePath)
	if abs, err := filepath.Abs(base); err == nil {
		base = abs
	}
	bases := []string{base}
	if real, err := filepath.EvalSymlinks(base); err == nil && real != base {
		bases = append(bases, real)
	}
	return bases
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// SandboxName turns a task ID into a safe single path segment.
func SandboxName(taskID string) string {
	name := unsafeChars.ReplaceAllString(strings.TrimSpace(taskID), "_")
	if name == "" || name == "." || name == ".." {
		name = "_" + name
	}
	return name
}

// SandboxPath returns the sandbox directory for taskID.
func (m *Manager) SandboxPath(taskID string) string {
	return filepath.Join(m.basePath, SandboxName(taskID))
}

// Create checks out a detached worktree for taskID under the base
// directory. The sandbox directory is claimed with an exclusive mkdir first,
// so two tasks racing for the same ID cannot share a sandbox: the loser gets
// ErrSandboxInUse.
func (m *Manager) Create(ctx context.Context, taskID string) (Worktree, error) {
	if strings.TrimSpace(taskID) == "" {
		return Worktree{}, fmt.Errorf("task id is empty")
	}
	if err := os.MkdirAll(m.basePath, 0755); err != nil {
		return Worktree{}, fmt.Errorf("creating worktree base: %w", err)
	}

	wtPath := m.SandboxPath(taskID)
	if err := os.Mkdir(wtPath, 0755); err != nil {
		if errors.Is(err, os.ErrExist) {
			return Worktree{}, fmt.Errorf("%s: %w", wtPath, ErrSandboxInUse)
		}
		return Worktree{}, fmt.Errorf("claiming sandbox: %w", err)
	}

	if _, err := m.git(ctx, m.repoRoot, "worktree", "add", "--detach", wtPath); err != nil {
		os.RemoveAll(wtPath)
		return Worktree{}, fmt.Errorf("worktree add: %w", err)
	}

	debug.LogKV("worktree", "created", "task_id", taskID, "path", wtPath)
	return Worktree{Path: wtPath, TaskID: SandboxName(taskID)}, nil
}

// Remove force-removes the worktree at path.
func (m *Manager) Remove(ctx context.Context, path string) error {
	_, err := m.git(ctx, m.repoRoot, "worktree", "remove", "--force", path)
	if err != nil {
		debug.LogKV("worktree", "remove failed", "path", path, "error", err)
		return err
	}
	debug.LogKV("worktree", "removed", "path", path)
	return nil
}

// runGit runs git in dir, returning stdout. On failure the error carries
// the trimmed stderr.
func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	debug.LogKV("worktree", "git exec", "cmd", "git "+strings.Join(args, " "), "dir", dir)
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stdout.String(), fmt.Errorf("git %s: %s: %w", strings.Join(args, " "), strings.TrimSpace(stderr.String()), err)
	}
	return stdout.String(), nil
}
