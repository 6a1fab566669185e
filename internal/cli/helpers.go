package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/agusx1211/cli-worker/internal/agent"
	"github.com/agusx1211/cli-worker/internal/detect"
	"github.com/agusx1211/cli-worker/internal/theme"
	"github.com/agusx1211/cli-worker/internal/worktree"
)

// Output formats accepted by --format.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

func addFormatFlag(cmd *cobra.Command) {
	cmd.Flags().String("format", formatText, "Output format: text, json or yaml")
}

func outputFormat(cmd *cobra.Command) (string, error) {
	f, _ := cmd.Flags().GetString("format")
	switch f = strings.ToLower(strings.TrimSpace(f)); f {
	case "", formatText:
		return formatText, nil
	case formatJSON, formatYAML:
		return f, nil
	}
	return "", fmt.Errorf("unknown format %q (want text, json or yaml)", f)
}

// writeStructured renders v as JSON or YAML.
func writeStructured(w io.Writer, format string, v any) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(toYAMLValue(v)); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("writeStructured: unsupported format %q", format)
}

// toYAMLValue round-trips v through JSON so YAML output uses the json tag
// names and omitempty rules of the types being printed.
func toYAMLValue(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

// repoRoot resolves --repo against the working directory.
func repoRoot(cmd *cobra.Command) (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}
	explicit, _ := cmd.Flags().GetString("repo")
	return worktree.ResolveRepoPath(cwd, explicit), nil
}

func newManager(cmd *cobra.Command) (*worktree.Manager, error) {
	root, err := repoRoot(cmd)
	if err != nil {
		return nil, err
	}
	return worktree.NewManager(root, currentConfig().WorktreeBase()), nil
}

// newRunner builds the kimi runner from config, resolving the command the
// same way verify does.
func newRunner() *agent.Runner {
	k := currentConfig().Kimi
	k.Command = detect.ResolveCommand(k.Command)
	return agent.NewRunner(k)
}

func stderrIsTerminal() bool {
	return isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
}

// printHeader prints a formatted section header.
func printHeader(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s\n", theme.Title.Render(title))
	fmt.Fprintln(w, theme.Dim.Render(strings.Repeat("-", ansi.StringWidth(title)+2)))
}

// printField prints a labeled field.
func printField(w io.Writer, label, value string) {
	fmt.Fprintf(w, "  %s %s\n", theme.Label.Render(fmt.Sprintf("%-14s", label+":")), value)
}

// printTable prints rows under headers, padding by display width so styled
// cells stay aligned.
func printTable(w io.Writer, headers []string, rows [][]string) {
	if len(rows) == 0 {
		fmt.Fprintln(w, theme.Dim.Render("  (none)"))
		return
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = ansi.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) {
				if cw := ansi.StringWidth(cell); cw > widths[i] {
					widths[i] = cw
				}
			}
		}
	}

	var line strings.Builder
	line.WriteString("  ")
	for i, h := range headers {
		line.WriteString(theme.Label.Render(h) + pad(h, widths[i]+2))
	}
	fmt.Fprintln(w, strings.TrimRight(line.String(), " "))

	line.Reset()
	line.WriteString("  ")
	for _, wd := range widths {
		line.WriteString(theme.Dim.Render(strings.Repeat("-", wd+2)))
	}
	fmt.Fprintln(w, line.String())

	for _, row := range rows {
		line.Reset()
		line.WriteString("  ")
		for i, cell := range row {
			if i < len(widths) {
				line.WriteString(cell + pad(cell, widths[i]+2))
			}
		}
		fmt.Fprintln(w, strings.TrimRight(line.String(), " "))
	}
}

func pad(s string, width int) string {
	n := width - ansi.StringWidth(s)
	if n < 0 {
		n = 0
	}
	return strings.Repeat(" ", n)
}

// truncate shortens s to maxLen display cells, ending with "...".
func truncate(s string, maxLen int) string {
	return ansi.Truncate(s, maxLen, "...")
}

// firstLine returns the first line of a multi-line string.
func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}

// cleanStderr strips escape sequences the child may have written to its
// stderr, so captured output prints safely.
func cleanStderr(s string) string {
	return strings.TrimSpace(ansi.Strip(s))
}

// readPrompt returns the prompt from args, --file, or stdin when the
// argument is "-".
func readPrompt(args []string, file string, stdin io.Reader) (string, error) {
	if file != "" {
		if len(args) > 0 {
			return "", fmt.Errorf("pass the prompt as an argument or with --file, not both")
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading prompt file: %w", err)
		}
		return string(data), nil
	}
	if len(args) == 0 {
		return "", fmt.Errorf("missing prompt (pass it as an argument, with --file, or '-' for stdin)")
	}
	if len(args) == 1 && args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading prompt from stdin: %w", err)
		}
		return string(data), nil
	}
	return strings.Join(args, " "), nil
}
