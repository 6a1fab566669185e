package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/agusx1211/cli-worker/internal/agent"
	"github.com/agusx1211/cli-worker/internal/orchestrator"
	"github.com/agusx1211/cli-worker/internal/runtui"
	"github.com/agusx1211/cli-worker/internal/theme"
	"github.com/agusx1211/cli-worker/pkg/protocol"
)

// errToolFailed marks a run whose tool did not exit cleanly. The details
// have already been printed.
var errToolFailed = errors.New("kimi did not exit cleanly")

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a task manifest in its sandbox",
	Long: `Run a task described by a manifest (JSON, or YAML for .yaml/.yml files).

The task runs in execution_context.worktree_path. When that is empty, a fresh
sandbox is created under the configured worktree base, named after task_id.

Examples:
  cli-worker run --manifest task.json
  cli-worker run --manifest task.yaml --timeout 20m --format json`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().String("manifest", "", "Path to the task manifest (required)")
	runCmd.Flags().Duration("timeout", 0, "Kill the tool after this long (default: kimi.timeoutMs from config, 0 = none)")
	runCmd.Flags().Bool("no-tui", false, "Disable the live progress view")
	runCmd.Flags().Bool("record", true, "Keep an event log of the run under <sandbox>/.cli-worker/runs/")
	addFormatFlag(runCmd)
	_ = runCmd.MarkFlagRequired("manifest")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	path, _ := cmd.Flags().GetString("manifest")
	m, err := protocol.LoadManifest(path)
	if err != nil {
		return err
	}

	mgr, err := newManager(cmd)
	if err != nil {
		return err
	}
	record, _ := cmd.Flags().GetBool("record")
	o := &orchestrator.Orchestrator{
		Sandboxes: mgr,
		Runner:    newRunner(),
		Timeout:   taskTimeout(cmd),
		Record:    record,
	}

	ctx := cmdContext(cmd)

	var out *orchestrator.Outcome
	noTUI, _ := cmd.Flags().GetBool("no-tui")
	if !noTUI && stderrIsTerminal() {
		out, err = runtui.Run(ctx, o, m)
	} else {
		out, err = o.RunTask(ctx, m)
	}
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if format != formatText {
		if err := writeStructured(w, format, outcomeView(out)); err != nil {
			return err
		}
	} else {
		printOutcome(w, out)
	}
	if !out.Spawn.Succeeded() {
		return errToolFailed
	}
	return nil
}

// taskTimeout prefers --timeout, falling back to kimi.timeoutMs.
func taskTimeout(cmd *cobra.Command) time.Duration {
	if d, _ := cmd.Flags().GetDuration("timeout"); d > 0 {
		return d
	}
	return time.Duration(currentConfig().Kimi.TimeoutMs) * time.Millisecond
}

// outcomeDoc is the structured form of an outcome. The full stdout
// capture is left out; Records gives its size.
type outcomeDoc struct {
	RunID          string           `json:"run_id"`
	TaskID         string           `json:"task_id"`
	Worktree       string           `json:"worktree"`
	CreatedSandbox bool             `json:"created_sandbox"`
	Status         string           `json:"status"`
	ExitCode       *int             `json:"exit_code"`
	Signal         string           `json:"signal,omitempty"`
	TimedOut       bool             `json:"timed_out"`
	DurationMs     int64            `json:"duration_ms"`
	Records        int              `json:"records"`
	FinalText      string           `json:"final_text"`
	Stderr         string           `json:"stderr,omitempty"`
	ReportPath     string           `json:"report_path"`
	Report         *protocol.Report `json:"report,omitempty"`
	ReportError    string           `json:"report_error,omitempty"`
	RecordingPath  string           `json:"recording_path,omitempty"`
}

func outcomeView(out *orchestrator.Outcome) outcomeDoc {
	doc := outcomeDoc{
		RunID:          out.RunID,
		TaskID:         out.TaskID,
		Worktree:       out.Worktree,
		CreatedSandbox: out.CreatedSandbox,
		Records:        out.Records,
		FinalText:      out.FinalText,
		ReportPath:     out.ReportPath,
		Report:         out.Report,
		ReportError:    out.ReportError,
		RecordingPath:  out.RecordingPath,
	}
	if s := out.Spawn; s != nil {
		doc.Status = spawnStatus(s)
		doc.ExitCode = s.ExitCode
		doc.Signal = s.Signal
		doc.TimedOut = s.TimedOut
		doc.DurationMs = s.Duration.Milliseconds()
		doc.Stderr = cleanStderr(s.Stderr)
	}
	return doc
}

// spawnStatus condenses a spawn result into one word.
func spawnStatus(s *agent.SpawnResult) string {
	switch {
	case s == nil:
		return "unknown"
	case s.TimedOut:
		return "timed_out"
	case s.Succeeded():
		return "ok"
	case s.Signal != "":
		return "killed"
	default:
		return "failed"
	}
}

func exitSummary(s *agent.SpawnResult) string {
	switch {
	case s.ExitCode != nil:
		return "exit " + strconv.Itoa(*s.ExitCode)
	case s.Signal != "":
		return "signal " + s.Signal
	}
	return "unknown"
}

func printOutcome(w io.Writer, out *orchestrator.Outcome) {
	printHeader(w, "Task "+out.TaskID)
	printField(w, "Run", out.RunID)
	sandbox := out.Worktree
	if out.CreatedSandbox {
		sandbox += " " + theme.Dim.Render("(created)")
	}
	printField(w, "Sandbox", sandbox)
	if s := out.Spawn; s != nil {
		printField(w, "Status", theme.Badge(spawnStatus(s))+" "+exitSummary(s))
		printField(w, "Duration", s.Duration.Truncate(time.Millisecond).String())
		if stderr := cleanStderr(s.Stderr); stderr != "" && !s.Succeeded() {
			printField(w, "Stderr", truncate(firstLine(stderr), 100))
		}
	}
	printField(w, "Records", strconv.Itoa(out.Records))
	if out.RecordingPath != "" {
		printField(w, "Recording", out.RecordingPath)
	}

	switch {
	case out.Report != nil:
		printField(w, "Report", out.ReportPath)
		if status, ok := out.Report.Execution.Text("status"); ok && status != "" {
			printField(w, "Report status", theme.Badge(status))
		}
	case out.ReportError != "":
		printField(w, "Report", theme.Error.Render(out.ReportError))
	default:
		printField(w, "Report", theme.Dim.Render("(not written)"))
	}

	printHeader(w, "Final answer")
	if strings.TrimSpace(out.FinalText) == "" {
		fmt.Fprintln(w, theme.Dim.Render("  (no assistant output)"))
		return
	}
	fmt.Fprintln(w, out.FinalText)
}
