// Package verify reports whether the kimi CLI is usable before tasks are
// dispatched to it.
package verify

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/agusx1211/cli-worker/internal/debug"
	"github.com/agusx1211/cli-worker/internal/detect"
)

// Reason codes reported by checks.
const (
	ReasonOK           = "ok"
	ReasonNotInstalled = "not_installed"
	ReasonNotLoggedIn  = "not_logged_in"
	ReasonProbeFailed  = "probe_failed"
)

const probeTimeout = 5 * time.Second

// AuthStatus is what an auth check returns. The gate does not interpret
// Detail.
type AuthStatus struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// CheckFunc inspects the CLI and reports its status.
type CheckFunc func(ctx context.Context) AuthStatus

// Outcome is the gate's verdict plus the steps a user can take to fix a
// failure.
type Outcome struct {
	AuthStatus
	Remediation []string `json:"remediation,omitempty"`
}

// Gate passes a check result through and attaches remediation steps.
type Gate struct {
	Check   CheckFunc
	Command string // shown in remediation text
}

// Verify runs the check.
func (g *Gate) Verify(ctx context.Context) Outcome {
	if g.Check == nil {
		return Outcome{AuthStatus: AuthStatus{Reason: ReasonProbeFailed, Detail: "no auth check configured"}}
	}
	st := g.Check(ctx)
	if st.OK && st.Reason == "" {
		st.Reason = ReasonOK
	}
	out := Outcome{AuthStatus: st}
	if !st.OK {
		out.Remediation = remediation(st.Reason, g.command())
	}
	debug.LogKV("verify", "gate result", "ok", st.OK, "reason", st.Reason)
	return out
}

func (g *Gate) command() string {
	if strings.TrimSpace(g.Command) == "" {
		return "kimi"
	}
	return g.Command
}

func remediation(reason, cmd string) []string {
	switch reason {
	case ReasonNotInstalled:
		return []string{
			"Install the kimi CLI and make sure `" + cmd + "` is on PATH.",
			"Or set kimi.command in ~/.cli-worker/config.json to the executable's absolute path.",
		}
	case ReasonNotLoggedIn:
		return []string{
			"Run `" + cmd + "` interactively once and complete the login flow.",
			"Then re-run `cli-worker verify`.",
		}
	default:
		return []string{
			"Run `" + cmd + " --version` by hand and check its error output.",
			"Re-run with --debug and inspect the log for the probe command.",
		}
	}
}

// ProbeCheck returns a CheckFunc that locates command and runs it with
// --version. It cannot see login state; callers that can should wrap
// it with their own check.
func ProbeCheck(command string) CheckFunc {
	return func(ctx context.Context) AuthStatus {
		path, ok := detect.Locate(command)
		if !ok {
			return AuthStatus{Reason: ReasonNotInstalled, Detail: command + " not found on PATH or in the usual install directories"}
		}

		ctx, cancel := context.WithTimeout(ctx, probeTimeout)
		defer cancel()
		cmd := exec.CommandContext(ctx, path, "--version")
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		out, err := cmd.Output()
		if err != nil {
			detail := strings.TrimSpace(stderr.String())
			if detail == "" {
				detail = err.Error()
			}
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				detail = "version probe timed out"
			}
			return AuthStatus{Reason: ReasonProbeFailed, Detail: detail}
		}
		version := detect.ParseVersion(string(out))
		if version == "" {
			version = "unknown version"
		}
		return AuthStatus{OK: true, Reason: ReasonOK, Detail: version + " (" + path + ")"}
	}
}
