package agent

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func writeStub(t *testing.T, name, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script helper not supported on windows")
	}
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("#!/usr/bin/env sh\n"+script), 0755); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestRunCapturesLinesAndExit(t *testing.T) {
	stub := writeStub(t, "fake-kimi", `echo '{"role":"user","content":"hi"}'
printf 'noise line\r\n'
echo '{"role":"assistant","content":"done"}'
echo "warn" >&2
printf 'tail-without-newline'
exit 3
`)
	res, err := (&Runner{Command: stub}).Run(context.Background(), "prompt", t.TempDir(), RunOptions{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.ExitCode == nil || *res.ExitCode != 3 {
		t.Fatalf("ExitCode = %v, want 3", res.ExitCode)
	}
	if res.Signal != "" {
		t.Fatalf("Signal = %q, want empty", res.Signal)
	}
	want := []string{
		`{"role":"user","content":"hi"}`,
		"noise line",
		`{"role":"assistant","content":"done"}`,
		"tail-without-newline",
	}
	if strings.Join(res.StdoutLines, "\n") != strings.Join(want, "\n") {
		t.Fatalf("StdoutLines = %q, want %q", res.StdoutLines, want)
	}
	if res.Stderr != "warn\n" {
		t.Fatalf("Stderr = %q", res.Stderr)
	}
	if res.Succeeded() {
		t.Fatal("Succeeded() = true for exit 3")
	}
}

func TestRunPassesSanitizedPromptAndEnv(t *testing.T) {
	stub := writeStub(t, "fake-kimi-args", `for arg in "$@"; do
	printf 'ARG:%s\n' "$arg"
done
printf 'ENV:%s\n' "$KIMI_NO_BROWSER"
printf 'EXTRA:%s\n' "$EXTRA_FLAG"
printf 'PWD:%s\n' "$(pwd -P)"
`)
	dir := t.TempDir()
	r := &Runner{Command: stub, Env: map[string]string{"EXTRA_FLAG": "on"}}
	res, err := r.Run(context.Background(), "fix\x00 the\x07bug", dir, RunOptions{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	out := strings.Join(res.StdoutLines, "\n")
	for _, want := range []string{
		"ARG:--print",
		"ARG:stream-json",
		"ARG:fix the bug",
		"ENV:1",
		"EXTRA:on",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	realDir, _ := filepath.EvalSymlinks(dir)
	if !strings.Contains(out, "PWD:"+realDir) {
		t.Errorf("process did not run in %s:\n%s", realDir, out)
	}
}

func TestRunStreamsLinesToSink(t *testing.T) {
	stub := writeStub(t, "fake-kimi-sink", `echo one
echo two
`)
	sink := make(chan string, 8)
	res, err := (&Runner{Command: stub}).Run(context.Background(), "p", t.TempDir(), RunOptions{Lines: sink})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	close(sink)
	var got []string
	for line := range sink {
		got = append(got, line)
	}
	if strings.Join(got, ",") != "one,two" {
		t.Fatalf("sink received %q", got)
	}
	if len(res.StdoutLines) != 2 {
		t.Fatalf("StdoutLines = %q", res.StdoutLines)
	}
}

func TestRunTimeoutSendsSIGTERM(t *testing.T) {
	stub := writeStub(t, "fake-kimi-slow", `echo started
exec sleep 30
`)
	start := time.Now()
	res, err := (&Runner{Command: stub}).Run(context.Background(), "p", t.TempDir(), RunOptions{Timeout: 200 * time.Millisecond})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Fatalf("Run() took %s, timeout not enforced", elapsed)
	}
	if res.ExitCode != nil {
		t.Fatalf("ExitCode = %d, want nil after signal", *res.ExitCode)
	}
	if res.Signal != "SIGTERM" {
		t.Fatalf("Signal = %q, want SIGTERM", res.Signal)
	}
	if !res.TimedOut {
		t.Fatal("TimedOut = false")
	}
	if len(res.StdoutLines) != 1 || res.StdoutLines[0] != "started" {
		t.Fatalf("StdoutLines = %q", res.StdoutLines)
	}
}

func TestRunTimeoutEscalatesToSIGKILL(t *testing.T) {
	stub := writeStub(t, "fake-kimi-stubborn", `trap '' TERM
sleep 30
`)
	r := &Runner{Command: stub, KillGrace: 300 * time.Millisecond}
	res, err := r.Run(context.Background(), "p", t.TempDir(), RunOptions{Timeout: 200 * time.Millisecond})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Signal != "SIGKILL" {
		t.Fatalf("Signal = %q, want SIGKILL", res.Signal)
	}
	if res.ExitCode != nil {
		t.Fatalf("ExitCode = %d, want nil", *res.ExitCode)
	}
}

func TestRunContextCancelTerminates(t *testing.T) {
	stub := writeStub(t, "fake-kimi-cancel", `exec sleep 30
`)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	res, err := (&Runner{Command: stub}).Run(ctx, "p", t.TempDir(), RunOptions{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Signal != "SIGTERM" {
		t.Fatalf("Signal = %q, want SIGTERM", res.Signal)
	}
	if res.TimedOut {
		t.Fatal("TimedOut = true for a context cancellation")
	}
}

func TestRunFastExitIgnoresTimeout(t *testing.T) {
	stub := writeStub(t, "fake-kimi-fast", `echo ok
`)
	res, err := (&Runner{Command: stub}).Run(context.Background(), "p", t.TempDir(), RunOptions{Timeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !res.Succeeded() || res.TimedOut {
		t.Fatalf("result = %+v, want clean exit", res)
	}
}

func TestRunSpawnErrorIsReturned(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "does-not-exist")
	res, err := (&Runner{Command: missing}).Run(context.Background(), "p", t.TempDir(), RunOptions{})
	if err == nil {
		t.Fatalf("Run() error = nil, result = %+v", res)
	}
	if res != nil {
		t.Fatalf("Run() result = %+v, want nil on spawn error", res)
	}
}

func TestRunWithoutCommand(t *testing.T) {
	if _, err := (&Runner{}).Run(context.Background(), "p", t.TempDir(), RunOptions{}); err != ErrNoCommand {
		t.Fatalf("Run() error = %v, want ErrNoCommand", err)
	}
}

func TestOfferNeverBlocks(t *testing.T) {
	offer(nil, "ignored")

	sink := make(chan string, 1)
	offer(sink, "first")
	offer(sink, "dropped")
	if got := <-sink; got != "first" {
		t.Fatalf("sink received %q, want first", got)
	}
	select {
	case extra := <-sink:
		t.Fatalf("full sink still received %q", extra)
	default:
	}
}
