// Package protocol defines the documents exchanged between cli-worker and
// the tasks it runs.
//
// A task is described by a manifest written by the orchestrator and may
// leave behind a report written by the tool running inside the sandbox:
//
//	manifest (in)  strict: any structural deviation rejects the document
//	report   (out) lenient: each section is kept only if it is an object
//
// Both are versioned with the same protocol_version string.
package protocol

import (
	"path/filepath"
	"strings"
)

// Version is the only protocol_version accepted in manifests.
const Version = "1.0"

// ReportRelPath is where a task writes its report, relative to its sandbox.
var ReportRelPath = filepath.Join(".cli-worker", "report.json")

// ReportInstructions returns the prompt fragment that tells the tool where
// and how to write its report.
func ReportInstructions(reportPath string) string {
	var b strings.Builder
	b.WriteString("## Task Report\n\n")
	b.WriteString("When you finish, write a JSON report to `" + reportPath + "`:\n\n")
	b.WriteString("```json\n")
	b.WriteString(`{
  "protocol_version": "` + Version + `",
  "execution": {"status": "success|failure|partial", "summary": "..."},
  "cognitive_state": {"confidence": 0.0, "open_questions": []},
  "artifacts": {"git_sha": "...", "files_changed": []}
}
`)
	b.WriteString("```\n\n")
	b.WriteString("Every section is optional. Omit what you cannot fill in rather than guessing.\n")
	return b.String()
}
