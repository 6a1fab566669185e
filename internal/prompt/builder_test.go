package prompt

import (
	"strings"
	"testing"

	"github.com/agusx1211/cli-worker/pkg/protocol"
)

func TestBuildPutsStatementOutsideContextBlock(t *testing.T) {
	m := &protocol.Manifest{
		ProtocolVersion: protocol.Version,
		TaskID:          "task-9",
		Context: map[string]any{
			"instructions": "Fix the flaky test in auth_test.go",
			"ticket":       "AUTH-12",
		},
	}
	got, err := Build(BuildOpts{Manifest: m, Sandbox: "/sb/task-9", ReportPath: "/sb/task-9/.cli-worker/report.json"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	closing := strings.LastIndex(got, "`````")
	if closing < 0 {
		t.Fatalf("prompt has no context block:\n%s", got)
	}
	if !strings.HasSuffix(got, "Fix the flaky test in auth_test.go") {
		t.Fatalf("statement should close the prompt:\n%s", got)
	}
	ctxBlock := got[:closing]
	for _, want := range []string{`"task-9"`, "/sb/task-9", `"ticket": "AUTH-12"`, "/sb/task-9/.cli-worker/report.json"} {
		if !strings.Contains(ctxBlock, want) {
			t.Errorf("context block missing %q:\n%s", want, ctxBlock)
		}
	}
	if strings.Contains(ctxBlock, `"instructions"`) {
		t.Errorf("statement key duplicated inside context JSON:\n%s", ctxBlock)
	}
}

func TestBuildStatementPriority(t *testing.T) {
	m := &protocol.Manifest{TaskID: "t", Context: map[string]any{
		"goal":   "the goal",
		"prompt": "the prompt",
	}}
	got, err := Build(BuildOpts{Manifest: m, Sandbox: "/sb"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.HasSuffix(got, "the prompt") {
		t.Fatalf("prompt key should win:\n%s", got)
	}
	if !strings.Contains(got, `"goal": "the goal"`) {
		t.Fatalf("remaining context missing:\n%s", got)
	}
	if strings.Contains(got, "Task Report") {
		t.Fatalf("report instructions present without a report path:\n%s", got)
	}
}

func TestBuildFallbackStatement(t *testing.T) {
	m := &protocol.Manifest{TaskID: "t-1", Context: map[string]any{}}
	got, err := Build(BuildOpts{Manifest: m, Sandbox: "/sb"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.HasSuffix(got, "Complete task t-1 as described in the context above.") {
		t.Fatalf("unexpected fallback:\n%s", got)
	}
	if strings.Contains(got, "Task Context") {
		t.Fatalf("empty context rendered:\n%s", got)
	}
}

func TestBuildNilManifest(t *testing.T) {
	if _, err := Build(BuildOpts{}); err == nil {
		t.Fatal("Build(nil manifest) error = nil")
	}
}

func TestContextKeysSorted(t *testing.T) {
	got := ContextKeys(map[string]any{"b": 1, "a": 2, "c": 3})
	if strings.Join(got, ",") != "a,b,c" {
		t.Fatalf("ContextKeys = %v", got)
	}
}
