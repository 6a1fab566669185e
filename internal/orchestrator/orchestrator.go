// Package orchestrator turns a task manifest into one isolated execution of
// the kimi CLI: it resolves the sandbox, builds the prompt, runs the tool,
// recovers the final assistant text from the transcript and picks up the
// task report if one was written.
//
// Concurrent RunTask calls are allowed. Each must target its own sandbox;
// sandboxes created here are claimed exclusively (see worktree.Create), but
// an explicit worktree_path shared by two manifests is not detected.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/agusx1211/cli-worker/internal/agent"
	"github.com/agusx1211/cli-worker/internal/debug"
	"github.com/agusx1211/cli-worker/internal/hexid"
	"github.com/agusx1211/cli-worker/internal/prompt"
	"github.com/agusx1211/cli-worker/internal/recording"
	"github.com/agusx1211/cli-worker/internal/stream"
	"github.com/agusx1211/cli-worker/internal/worktree"
	"github.com/agusx1211/cli-worker/pkg/protocol"
)

// ErrSandboxMissing is returned when the manifest names a worktree path
// that does not exist.
var ErrSandboxMissing = errors.New("sandbox does not exist")

// Runner runs the CLI once. *agent.Runner satisfies it.
type Runner interface {
	Run(ctx context.Context, prompt, cwd string, opts agent.RunOptions) (*agent.SpawnResult, error)
}

// SandboxCreator creates and removes task sandboxes. *worktree.Manager
// satisfies it.
type SandboxCreator interface {
	Create(ctx context.Context, taskID string) (worktree.Worktree, error)
	Remove(ctx context.Context, path string) error
	RepoRoot() string
}

// Orchestrator runs tasks.
type Orchestrator struct {
	Sandboxes SandboxCreator
	Runner    Runner
	Timeout   time.Duration

	// Lines, when set, receives stdout lines as they arrive.
	Lines chan<- string

	// Record keeps an event log of the run under the sandbox's
	// .cli-worker/runs/<run id>/ directory.
	Record bool
}

// Outcome is everything learned from one task run.
type Outcome struct {
	RunID          string             `json:"run_id"`
	TaskID         string             `json:"task_id"`
	Worktree       string             `json:"worktree"`
	CreatedSandbox bool               `json:"created_sandbox"`
	Spawn          *agent.SpawnResult `json:"spawn"`
	FinalText      string             `json:"final_text"`
	Records        int                `json:"records"`
	ReportPath     string             `json:"report_path"`
	Report         *protocol.Report   `json:"report,omitempty"`
	ReportError    string             `json:"report_error,omitempty"`
	RecordingPath  string             `json:"recording_path,omitempty"`
}

// RunManifestFile loads, validates and runs the manifest at path.
func (o *Orchestrator) RunManifestFile(ctx context.Context, path string) (*Outcome, error) {
	m, err := protocol.LoadManifest(path)
	if err != nil {
		return nil, err
	}
	return o.RunTask(ctx, m)
}

// RunTask executes one task. The manifest is re-validated here since
// callers may build it by hand. A failing tool (non-zero exit, signal,
// timeout) is reported in the Outcome, not as an error; errors are reserved
// for an invalid manifest, a missing sandbox and spawn failures. A sandbox
// created for the run is removed again when RunTask returns an error, so
// the task can be retried.
func (o *Orchestrator) RunTask(ctx context.Context, m *protocol.Manifest) (*Outcome, error) {
	if m == nil || !protocol.ValidateManifest(manifestDoc(m)) {
		return nil, protocol.ErrInvalidManifest
	}
	if o.Runner == nil {
		return nil, fmt.Errorf("orchestrator: no runner configured")
	}

	out := &Outcome{RunID: hexid.NewN(3), TaskID: m.TaskID}
	debug.LogKV("orchestrator", "task starting", "run_id", out.RunID, "task_id", m.TaskID, "context_keys", prompt.ContextKeys(m.Context))

	sandbox, created, err := o.resolveSandbox(ctx, m)
	if err != nil {
		return nil, err
	}
	out.Worktree = sandbox
	out.CreatedSandbox = created
	out.ReportPath = filepath.Join(sandbox, protocol.ReportRelPath)

	fail := func(err error) (*Outcome, error) {
		if created {
			o.discardSandbox(ctx, out)
		}
		return nil, err
	}

	if err := prepareReportSlot(out.ReportPath); err != nil {
		return fail(err)
	}

	text, err := prompt.Build(prompt.BuildOpts{Manifest: m, Sandbox: sandbox, ReportPath: out.ReportPath})
	if err != nil {
		return fail(err)
	}

	rec := o.startRecording(out, text)

	res, err := o.Runner.Run(ctx, text, sandbox, agent.RunOptions{Timeout: o.Timeout, Lines: o.Lines})
	if err != nil {
		debug.LogKV("orchestrator", "spawn failed", "run_id", out.RunID, "error", err)
		if rec != nil {
			rec.RecordMeta("spawn_error", err.Error())
			rec.Close()
		}
		return fail(fmt.Errorf("task %s: %w", m.TaskID, err))
	}
	out.Spawn = res
	finishRecording(rec, res)

	tr := stream.ParseTranscript(res.StdoutLines)
	out.FinalText = tr.FinalText
	out.Records = len(tr.Raw)

	report, err := protocol.ParseReport(out.ReportPath)
	switch {
	case err == nil:
		out.Report = report
	case errors.Is(err, protocol.ErrReportNotFound):
	default:
		out.ReportError = err.Error()
	}

	debug.LogKV("orchestrator", "task finished",
		"run_id", out.RunID,
		"task_id", m.TaskID,
		"succeeded", res.Succeeded(),
		"signal", res.Signal,
		"timed_out", res.TimedOut,
		"records", out.Records,
		"final_text_len", len(out.FinalText),
		"report", out.Report != nil,
		"report_error", out.ReportError,
	)
	return out, nil
}

// discardSandbox removes a sandbox created for a run that never got to
// spawn the tool. It runs even when ctx is already cancelled.
func (o *Orchestrator) discardSandbox(ctx context.Context, out *Outcome) {
	if err := o.Sandboxes.Remove(context.WithoutCancel(ctx), out.Worktree); err != nil {
		debug.LogKV("orchestrator", "sandbox cleanup failed", "run_id", out.RunID, "path", out.Worktree, "error", err)
		return
	}
	debug.LogKV("orchestrator", "sandbox removed after failure", "run_id", out.RunID, "path", out.Worktree)
}

// startRecording opens the run's event log when recording is enabled. A
// log that cannot be opened is logged and skipped.
func (o *Orchestrator) startRecording(out *Outcome, prompt string) *recording.Recorder {
	if !o.Record {
		return nil
	}
	rec, err := recording.New(recording.Dir(out.Worktree, out.RunID))
	if err != nil {
		debug.LogKV("orchestrator", "recording disabled", "run_id", out.RunID, "error", err)
		return nil
	}
	out.RecordingPath = rec.Path()
	rec.RecordMeta("run_id", out.RunID)
	rec.RecordMeta("task_id", out.TaskID)
	rec.RecordPrompt(prompt)
	return rec
}

func finishRecording(rec *recording.Recorder, res *agent.SpawnResult) {
	if rec == nil {
		return
	}
	for _, line := range res.StdoutLines {
		rec.RecordStdout(line)
	}
	rec.RecordStderr(res.Stderr)
	if res.ExitCode != nil {
		rec.RecordMeta("exit_code", strconv.Itoa(*res.ExitCode))
	}
	if res.Signal != "" {
		rec.RecordMeta("signal", res.Signal)
	}
	rec.RecordMeta("timed_out", strconv.FormatBool(res.TimedOut))
	if err := rec.Close(); err != nil {
		debug.LogKV("orchestrator", "recording incomplete", "path", rec.Path(), "error", err)
	}
}

// resolveSandbox returns the directory the task runs in. An empty
// worktree_path gets a freshly created sandbox keyed by task ID; a
// relative one is resolved against the repository root.
func (o *Orchestrator) resolveSandbox(ctx context.Context, m *protocol.Manifest) (string, bool, error) {
	wp := m.ExecutionContext.WorktreePath
	if wp == "" {
		if o.Sandboxes == nil {
			return "", false, fmt.Errorf("task %s: no worktree_path and no sandbox manager", m.TaskID)
		}
		wt, err := o.Sandboxes.Create(ctx, m.TaskID)
		if err != nil {
			return "", false, fmt.Errorf("task %s: %w", m.TaskID, err)
		}
		return wt.Path, true, nil
	}

	if !filepath.IsAbs(wp) && o.Sandboxes != nil {
		wp = worktree.ResolveRepoPath(o.Sandboxes.RepoRoot(), wp)
	}
	info, err := os.Stat(wp)
	if err != nil || !info.IsDir() {
		return "", false, fmt.Errorf("task %s: %s: %w", m.TaskID, wp, ErrSandboxMissing)
	}
	return wp, false, nil
}

// prepareReportSlot removes a report left by an earlier run and makes sure
// its directory exists.
func prepareReportSlot(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clearing stale report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating report dir: %w", err)
	}
	return nil
}

// manifestDoc converts a typed manifest back to its generic document form
// for validation.
func manifestDoc(m *protocol.Manifest) map[string]any {
	ctx := m.Context
	if ctx == nil {
		ctx = map[string]any{}
	}
	return map[string]any{
		"protocol_version": m.ProtocolVersion,
		"task_id":          m.TaskID,
		"context":          ctx,
		"execution_context": map[string]any{
			"worktree_path": m.ExecutionContext.WorktreePath,
		},
	}
}
