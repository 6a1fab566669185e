package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/agusx1211/cli-worker/internal/agent"
	"github.com/agusx1211/cli-worker/internal/stream"
	"github.com/agusx1211/cli-worker/internal/theme"
)

var execCmd = &cobra.Command{
	Use:   "exec [PROMPT...]",
	Short: "Send a single prompt to kimi and print the final answer",
	Long: `Run kimi once with PROMPT in --cwd, without a manifest or sandbox, and
print the text of the last assistant message.

Examples:
  cli-worker exec "summarize the README"
  cli-worker exec --file prompt.md --cwd ../other-repo
  git diff | cli-worker exec -`,
	RunE: runExec,
}

func init() {
	execCmd.Flags().String("file", "", "Read the prompt from this file")
	execCmd.Flags().String("cwd", "", "Working directory for kimi (default: current directory)")
	execCmd.Flags().Duration("timeout", 0, "Kill the tool after this long (default: kimi.timeoutMs from config, 0 = none)")
	addFormatFlag(execCmd)
	rootCmd.AddCommand(execCmd)
}

// execDoc is the structured output of exec.
type execDoc struct {
	Status     string `json:"status"`
	ExitCode   *int   `json:"exit_code"`
	Signal     string `json:"signal,omitempty"`
	TimedOut   bool   `json:"timed_out"`
	DurationMs int64  `json:"duration_ms"`
	Records    int    `json:"records"`
	FinalText  string `json:"final_text"`
	Stderr     string `json:"stderr,omitempty"`
}

func runExec(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	file, _ := cmd.Flags().GetString("file")
	prompt, err := readPrompt(args, file, cmd.InOrStdin())
	if err != nil {
		return err
	}

	cwd, _ := cmd.Flags().GetString("cwd")
	if cwd == "" {
		if cwd, err = os.Getwd(); err != nil {
			return fmt.Errorf("getting working directory: %w", err)
		}
	}

	ctx := cmdContext(cmd)
	runner := newRunner()
	res, err := runner.Run(ctx, prompt, cwd, agent.RunOptions{Timeout: taskTimeout(cmd)})
	if err != nil {
		return err
	}
	tr := stream.ParseTranscript(res.StdoutLines)

	w := cmd.OutOrStdout()
	if format != formatText {
		doc := execDoc{
			Status:     spawnStatus(res),
			ExitCode:   res.ExitCode,
			Signal:     res.Signal,
			TimedOut:   res.TimedOut,
			DurationMs: res.Duration.Milliseconds(),
			Records:    len(tr.Raw),
			FinalText:  tr.FinalText,
			Stderr:     cleanStderr(res.Stderr),
		}
		if err := writeStructured(w, format, doc); err != nil {
			return err
		}
	} else {
		if tr.FinalText != "" {
			fmt.Fprintln(w, tr.FinalText)
		}
		if !res.Succeeded() {
			errOut := cmd.ErrOrStderr()
			fmt.Fprintf(errOut, "%s %s after %s\n", theme.Badge(spawnStatus(res)), exitSummary(res), res.Duration.Truncate(time.Millisecond))
			if stderr := cleanStderr(res.Stderr); stderr != "" {
				fmt.Fprintln(errOut, theme.Dim.Render(stderr))
			}
		}
	}
	if !res.Succeeded() {
		return errToolFailed
	}
	return nil
}
