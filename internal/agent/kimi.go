package agent

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/agusx1211/cli-worker/internal/config"
	"github.com/agusx1211/cli-worker/internal/debug"
)

const (
	// DefaultKillGrace is how long a process gets between SIGTERM and
	// SIGKILL.
	DefaultKillGrace = 2 * time.Second

	// NoBrowserEnv disables the CLI's interactive browser login.
	NoBrowserEnv = "KIMI_NO_BROWSER"

	waitDelay = 5 * time.Second
)

// printFlags select print-once mode with a line-delimited JSON transcript.
// The prompt follows as the last argument.
var printFlags = []string{"--print", "--output-format", "stream-json", "--command"}

// Runner launches the kimi CLI.
type Runner struct {
	Command   string
	Args      []string          // placed before the fixed print flags
	Env       map[string]string // overlaid on the inherited environment
	KillGrace time.Duration     // 0 = DefaultKillGrace
}

// NewRunner builds a Runner from the kimi section of the config.
func NewRunner(cfg config.KimiConfig) *Runner {
	return &Runner{
		Command: cfg.Command,
		Args:    append([]string(nil), cfg.Args...),
		Env:     cfg.Env,
	}
}

// BuildArgs returns the argv (without the executable) for prompt. The
// prompt is sanitized first.
func (r *Runner) BuildArgs(prompt string) []string {
	args := make([]string, 0, len(r.Args)+len(printFlags)+1)
	args = append(args, r.Args...)
	args = append(args, printFlags...)
	return append(args, SanitizePrompt(prompt))
}

// Run starts the CLI in cwd with prompt and blocks until it exits.
//
// A non-zero exit or a signal death is not an error: it is reported in the
// SpawnResult for the caller to weigh against the transcript. Only a
// failure to start the process (missing executable, permissions) returns
// an error. Cancelling ctx follows the same SIGTERM-then-SIGKILL path as
// the timeout.
func (r *Runner) Run(ctx context.Context, prompt, cwd string, opts RunOptions) (*SpawnResult, error) {
	if strings.TrimSpace(r.Command) == "" {
		return nil, ErrNoCommand
	}
	args := r.BuildArgs(prompt)

	debug.LogKV("agent", "building command",
		"binary", r.Command,
		"flags", strings.Join(append(append([]string(nil), r.Args...), printFlags...), " "),
		"workdir", cwd,
		"prompt_len", len(prompt),
		"timeout", opts.Timeout,
	)

	cmd := exec.Command(r.Command, args...)
	cmd.Dir = cwd
	cmd.Env = r.environ()
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.WaitDelay = waitDelay

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		pw.Close()
		pr.Close()
		debug.LogKV("agent", "spawn failed", "binary", r.Command, "error", err)
		return nil, fmt.Errorf("starting %s: %w", r.Command, err)
	}
	pid := cmd.Process.Pid
	debug.LogKV("agent", "process started", "pid", pid)

	term := newTerminator(pid, r.killGrace(), signalGroup)
	term.arm(opts.Timeout)

	waitDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			term.terminate("context: " + ctx.Err().Error())
		case <-waitDone:
		}
	}()

	linesDone := make(chan []string, 1)
	go func() {
		linesDone <- readLines(pr, opts.Lines)
	}()

	waitErr := cmd.Wait()
	term.exited()
	close(waitDone)
	pw.Close()
	lines := <-linesDone

	res := &SpawnResult{
		StdoutLines: lines,
		Stderr:      stderr.String(),
		TimedOut:    term.didTimeOut(),
		Duration:    time.Since(start),
	}
	if err := fillExitStatus(res, cmd.ProcessState, waitErr); err != nil {
		return nil, fmt.Errorf("waiting for %s: %w", r.Command, err)
	}

	debug.LogKV("agent", "process finished",
		"pid", pid,
		"exit_code", exitCodeString(res.ExitCode),
		"signal", res.Signal,
		"timed_out", res.TimedOut,
		"duration", res.Duration,
		"stdout_lines", len(res.StdoutLines),
		"stderr_len", len(res.Stderr),
	)
	return res, nil
}

func (r *Runner) killGrace() time.Duration {
	if r.KillGrace > 0 {
		return r.KillGrace
	}
	return DefaultKillGrace
}

// environ inherits the current environment, disables browser login and
// overlays r.Env. Later entries win, so the overlay order matters.
func (r *Runner) environ() []string {
	env := os.Environ()
	env = append(env, NoBrowserEnv+"=1")
	keys := make([]string, 0, len(r.Env))
	for k := range r.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+r.Env[k])
	}
	return env
}

// readLines splits r on '\n', trimming a trailing '\r', with no limit on
// line length. A final unterminated line is kept.
func readLines(r io.Reader, sink chan<- string) []string {
	br := bufio.NewReader(r)
	var lines []string
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			line = strings.TrimSuffix(line, "\n")
			line = strings.TrimSuffix(line, "\r")
			if err == nil || line != "" {
				lines = append(lines, line)
				offer(sink, line)
			}
		}
		if err != nil {
			// Drain so the writer side never blocks after a read error.
			io.Copy(io.Discard, br)
			return lines
		}
	}
}

// offer performs a non-blocking send. ch must stay open until Run returns.
func offer(ch chan<- string, v string) {
	if ch == nil {
		return
	}
	select {
	case ch <- v:
	default:
	}
}

// fillExitStatus sets ExitCode or Signal from the finished process.
func fillExitStatus(res *SpawnResult, ps *os.ProcessState, waitErr error) error {
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) && !errors.Is(waitErr, exec.ErrWaitDelay) {
			return waitErr
		}
	}
	if ps == nil {
		return waitErr
	}
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		res.Signal = signalName(ws.Signal())
		return nil
	}
	code := ps.ExitCode()
	res.ExitCode = &code
	return nil
}

func signalName(sig syscall.Signal) string {
	if name := unix.SignalName(sig); name != "" {
		return name
	}
	return fmt.Sprintf("SIG%d", int(sig))
}

func exitCodeString(code *int) string {
	if code == nil {
		return "none"
	}
	return fmt.Sprint(*code)
}
