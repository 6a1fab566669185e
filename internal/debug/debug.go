// Package debug provides a verbose structured logger for diagnostics.
//
// When enabled via --debug (or CLI_WORKER_DEBUG=1), every significant event
// in a task run is appended to a single log file, by default
// ~/.cli-worker/logs/cli-worker.log. Lines carry nanosecond timestamps,
// goroutine IDs, caller locations and key=value context so a run can be
// reconstructed afterwards. The file is rotated by size: once a write would
// push it past MaxSize, it is renamed to <path>.1 (older generations shift
// up to MaxBackups) and a fresh file is started.
//
// When disabled (the default), all logging functions are no-ops.
package debug

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/agusx1211/cli-worker/internal/hexid"
)

var (
	logger   *Logger
	loggerMu sync.RWMutex
)

const (
	// EnvEnabled toggles debug logging for this process and its children.
	EnvEnabled = "CLI_WORKER_DEBUG"
	// EnvLogPath forces logs to a specific file.
	EnvLogPath = "CLI_WORKER_DEBUG_LOG"

	defaultMaxSize    = 5 << 20
	defaultMaxBackups = 3
)

// Options configures the log sink.
type Options struct {
	Path       string // log file; required
	MaxSize    int64  // rotate once the file would exceed this many bytes
	MaxBackups int    // number of rotated generations kept
}

// Logger appends structured debug lines to a size-rotated file.
type Logger struct {
	mu         sync.Mutex
	file       *os.File
	size       int64
	path       string
	maxSize    int64
	maxBackups int
	startedAt  time.Time
	pid        int
	runID      string
}

// Init opens the global debug logger. If a logger is already active its
// path is returned and opts are ignored.
func Init(opts Options) (string, error) {
	loggerMu.RLock()
	if logger != nil {
		p := logger.path
		loggerMu.RUnlock()
		return p, nil
	}
	loggerMu.RUnlock()

	if p := strings.TrimSpace(os.Getenv(EnvLogPath)); p != "" {
		opts.Path = p
	}
	if strings.TrimSpace(opts.Path) == "" {
		return "", fmt.Errorf("debug: no log path configured")
	}
	if opts.MaxSize <= 0 {
		opts.MaxSize = defaultMaxSize
	}
	if opts.MaxBackups <= 0 {
		opts.MaxBackups = defaultMaxBackups
	}

	l := &Logger{
		path:       opts.Path,
		maxSize:    opts.MaxSize,
		maxBackups: opts.MaxBackups,
		startedAt:  time.Now(),
		pid:        os.Getpid(),
		runID:      hexid.New(),
	}
	if err := l.open(); err != nil {
		return "", err
	}
	l.writeRaw(fmt.Sprintf("\n=== CLI-WORKER DEBUG LOG ===\nStarted: %s\nPID: %d\nRun ID: %s\nGOMAXPROCS: %d\n===\n",
		l.startedAt.Format(time.RFC3339Nano), l.pid, l.runID, runtime.GOMAXPROCS(0)))

	loggerMu.Lock()
	if logger != nil {
		p := logger.path
		loggerMu.Unlock()
		_ = l.file.Close()
		return p, nil
	}
	logger = l
	loggerMu.Unlock()
	return opts.Path, nil
}

// Close flushes and closes the debug log. Safe to call when not initialized.
func Close() {
	loggerMu.Lock()
	l := logger
	logger = nil
	loggerMu.Unlock()

	if l == nil {
		return
	}
	l.writeRaw(fmt.Sprintf("=== DEBUG LOG CLOSED === (pid=%d run=%s duration=%s)\n",
		l.pid, l.runID, time.Since(l.startedAt)))

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
}

// Enabled reports whether the debug logger is active.
func Enabled() bool {
	loggerMu.RLock()
	e := logger != nil
	loggerMu.RUnlock()
	return e
}

// Path returns the log file path, or "" if not enabled.
func Path() string {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	if logger == nil {
		return ""
	}
	return logger.path
}

// ShouldEnableFromEnv reports whether the environment asks for debug logging.
func ShouldEnableFromEnv() bool {
	toggle := strings.TrimSpace(strings.ToLower(os.Getenv(EnvEnabled)))
	switch toggle {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return strings.TrimSpace(os.Getenv(EnvLogPath)) != ""
}

// Log writes a debug line. No-op when debug is disabled.
func Log(component, msg string) {
	if l := current(); l != nil {
		l.write(component, msg, 2)
	}
}

// Logf writes a formatted debug line. No-op when debug is disabled.
func Logf(component, format string, args ...any) {
	if l := current(); l != nil {
		l.write(component, fmt.Sprintf(format, args...), 2)
	}
}

// LogKV writes a debug line with key-value context pairs.
// Usage: debug.LogKV("agent", "process started", "pid", 4242, "cwd", dir)
func LogKV(component, msg string, kvs ...any) {
	l := current()
	if l == nil {
		return
	}
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i+1 < len(kvs); i += 2 {
		fmt.Fprintf(&b, " %v=%v", kvs[i], kvs[i+1])
	}
	l.write(component, b.String(), 2)
}

func current() *Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

func (l *Logger) write(component, msg string, callerSkip int) {
	now := time.Now()

	_, file, line, ok := runtime.Caller(callerSkip)
	caller := "??:0"
	if ok {
		if idx := strings.LastIndex(file, "/internal/"); idx >= 0 {
			file = file[idx+1:]
		} else if idx := strings.LastIndex(file, "/cmd/"); idx >= 0 {
			file = file[idx+1:]
		}
		caller = fmt.Sprintf("%s:%d", file, line)
	}

	// TIMESTAMP +ELAPSED [PID] [GID] [COMPONENT] CALLER | MESSAGE
	l.writeRaw(fmt.Sprintf("%s +%12s [P%-6d] [G%-6d] [%-12s] %-36s | %s\n",
		now.Format("15:04:05.000000000"),
		now.Sub(l.startedAt).Truncate(time.Microsecond),
		l.pid,
		goroutineID(),
		component,
		caller,
		msg,
	))
}

func (l *Logger) writeRaw(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return
	}
	if l.size > 0 && l.size+int64(len(s)) > l.maxSize {
		if err := l.rotate(); err != nil {
			fmt.Fprintf(os.Stderr, "debug: rotate %s: %v\n", l.path, err)
		}
		if l.file == nil {
			return
		}
	}
	n, _ := l.file.WriteString(s)
	l.size += int64(n)
}

// open opens (or creates) the log file in append mode. Caller holds l.mu or
// has exclusive access.
func (l *Logger) open() error {
	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("debug: create dir %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("debug: open log %s: %w", l.path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("debug: stat log %s: %w", l.path, err)
	}
	l.file = f
	l.size = info.Size()
	return nil
}

// rotate shifts path.N-1 -> path.N ... path -> path.1 and reopens path.
// Caller holds l.mu.
func (l *Logger) rotate() error {
	l.file.Close()
	l.file = nil

	for i := l.maxBackups - 1; i >= 1; i-- {
		src := fmt.Sprintf("%s.%d", l.path, i)
		if _, err := os.Stat(src); err == nil {
			os.Rename(src, fmt.Sprintf("%s.%d", l.path, i+1))
		}
	}
	if err := os.Rename(l.path, l.path+".1"); err != nil && !os.IsNotExist(err) {
		return err
	}
	return l.open()
}

// goroutineID extracts the goroutine ID from runtime.Stack output.
func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	s := string(buf[:n])
	if !strings.HasPrefix(s, "goroutine ") {
		return 0
	}
	s = s[len("goroutine "):]
	var id int64
	for _, c := range s {
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + int64(c-'0')
	}
	return id
}
