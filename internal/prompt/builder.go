// Package prompt builds the prompt handed to the kimi CLI for a task.
package prompt

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/agusx1211/cli-worker/pkg/protocol"
)

// instructionKeys are context fields treated as the task statement, in
// priority order.
var instructionKeys = []string{"prompt", "instructions", "task", "goal"}

// BuildOpts holds the inputs for a task prompt.
type BuildOpts struct {
	Manifest   *protocol.Manifest
	Sandbox    string // absolute sandbox path
	ReportPath string // absolute report path; empty skips report instructions
}

// Build returns the full prompt for a task.
//
// The orchestration context goes inside a supra-code block so the model can
// tell it apart from the task statement, which follows outside the block.
func Build(opts BuildOpts) (string, error) {
	m := opts.Manifest
	if m == nil {
		return "", fmt.Errorf("prompt: manifest is nil")
	}

	statement, key := taskStatement(m.Context)
	rest := make(map[string]any, len(m.Context))
	for k, v := range m.Context {
		if k != key {
			rest[k] = v
		}
	}

	var b strings.Builder
	b.WriteString("Context: `````\n")
	fmt.Fprintf(&b, "You are running task %q in an isolated git worktree at %s.\n", m.TaskID, opts.Sandbox)
	b.WriteString("Only modify files inside that worktree. Commit your work when you finish.\n\n")

	if len(rest) > 0 {
		data, err := json.MarshalIndent(rest, "", "  ")
		if err != nil {
			return "", fmt.Errorf("prompt: encoding context: %w", err)
		}
		b.WriteString("## Task Context\n\n")
		b.WriteString("```json\n")
		b.Write(data)
		b.WriteString("\n```\n\n")
	}

	if opts.ReportPath != "" {
		b.WriteString(protocol.ReportInstructions(opts.ReportPath))
	}
	b.WriteString("`````\n\n")

	if statement == "" {
		statement = fmt.Sprintf("Complete task %s as described in the context above.", m.TaskID)
	}
	b.WriteString(statement)
	return b.String(), nil
}

// taskStatement returns the first non-empty string among instructionKeys
// and the key it came from.
func taskStatement(ctx map[string]any) (string, string) {
	for _, k := range instructionKeys {
		if s, ok := ctx[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s), k
		}
	}
	return "", ""
}

// ContextKeys returns the context keys in sorted order. Used for logging.
func ContextKeys(ctx map[string]any) []string {
	keys := make([]string, 0, len(ctx))
	for k := range ctx {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
