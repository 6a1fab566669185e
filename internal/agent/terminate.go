package agent

import (
	"sync"
	"syscall"
	"time"

	"github.com/agusx1211/cli-worker/internal/debug"
)

// termState is the lifecycle of a spawned process as seen by the
// terminator:
//
//	running --(timeout/cancel)--> terminating --(grace expired)--> killed
//	running|terminating|killed --(exit)--> done
type termState int

const (
	stateRunning termState = iota
	stateTerminating
	stateKilled
	stateDone
)

func (s termState) String() string {
	switch s {
	case stateRunning:
		return "running"
	case stateTerminating:
		return "terminating"
	case stateKilled:
		return "killed"
	case stateDone:
		return "done"
	}
	return "unknown"
}

// signalFunc delivers sig to the process (group) identified by pid.
type signalFunc func(pid int, sig syscall.Signal) error

// terminator owns the pending timers for one process and escalates from
// SIGTERM to SIGKILL. All transitions happen under mu; exited() cancels
// every pending timer so nothing fires after the process is gone.
type terminator struct {
	mu       sync.Mutex
	state    termState
	pid      int
	grace    time.Duration
	signal   signalFunc
	timedOut bool

	timeoutTimer *time.Timer
	killTimer    *time.Timer
}

func newTerminator(pid int, grace time.Duration, signal signalFunc) *terminator {
	return &terminator{pid: pid, grace: grace, signal: signal}
}

// arm schedules a graceful stop after timeout. Non-positive timeouts are
// ignored.
func (t *terminator) arm(timeout time.Duration) {
	if timeout <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != stateRunning {
		return
	}
	t.timeoutTimer = time.AfterFunc(timeout, func() { t.terminate(reasonTimeout) })
}

// reasonTimeout marks a stop caused by the run's own timeout.
const reasonTimeout = "timeout"

// terminate sends SIGTERM and starts the grace timer. Only the first call
// from the running state has any effect, and only that call decides
// whether the run timed out.
func (t *terminator) terminate(reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != stateRunning {
		return
	}
	t.state = stateTerminating
	t.timedOut = reason == reasonTimeout
	debug.LogKV("agent", "sending SIGTERM", "pid", t.pid, "reason", reason, "grace", t.grace)
	if err := t.signal(t.pid, syscall.SIGTERM); err != nil {
		debug.LogKV("agent", "SIGTERM failed", "pid", t.pid, "error", err)
	}
	t.killTimer = time.AfterFunc(t.grace, t.kill)
}

func (t *terminator) kill() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != stateTerminating {
		return
	}
	t.state = stateKilled
	debug.LogKV("agent", "grace expired, sending SIGKILL", "pid", t.pid)
	if err := t.signal(t.pid, syscall.SIGKILL); err != nil {
		debug.LogKV("agent", "SIGKILL failed", "pid", t.pid, "error", err)
	}
}

// exited records process exit (or spawn failure) and cancels all timers.
func (t *terminator) exited() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = stateDone
	if t.timeoutTimer != nil {
		t.timeoutTimer.Stop()
	}
	if t.killTimer != nil {
		t.killTimer.Stop()
	}
}

func (t *terminator) current() termState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *terminator) didTimeOut() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timedOut
}

// signalGroup signals the whole process group led by pid, falling back to
// the single process when the group is already gone.
func signalGroup(pid int, sig syscall.Signal) error {
	if err := syscall.Kill(-pid, sig); err != nil {
		return syscall.Kill(pid, sig)
	}
	return nil
}
