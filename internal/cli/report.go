package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/agusx1211/cli-worker/pkg/protocol"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Inspect task reports",
}

var reportShowCmd = &cobra.Command{
	Use:   "show [FILE]",
	Short: "Print the sections of a task report",
	Long: `Print a task report. FILE defaults to ` + protocol.ReportRelPath + ` inside
--sandbox (or the current directory). Sections that are missing or malformed
are shown as absent; the rest of the report is still printed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReportShow,
}

func init() {
	reportShowCmd.Flags().String("sandbox", "", "Sandbox directory holding the report")
	addFormatFlag(reportShowCmd)
	reportCmd.AddCommand(reportShowCmd)
	rootCmd.AddCommand(reportCmd)
}

func runReportShow(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	path := ""
	if len(args) == 1 {
		path = args[0]
	} else {
		sandbox, _ := cmd.Flags().GetString("sandbox")
		if sandbox == "" {
			sandbox = "."
		}
		path = filepath.Join(sandbox, protocol.ReportRelPath)
	}

	r, err := protocol.ParseReport(path)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if format != formatText {
		return writeStructured(w, format, r)
	}
	printHeader(w, "Report "+path)
	if r.ProtocolVersion != "" {
		printField(w, "Protocol", r.ProtocolVersion)
	}
	printSection(w, "Execution", r.Execution)
	printSection(w, "Cognitive state", r.CognitiveState)
	printSection(w, "Artifacts", r.Artifacts)
	return nil
}

func printSection(w io.Writer, title string, s protocol.Section) {
	printHeader(w, title)
	if s == nil {
		fmt.Fprintln(w, "  (absent)")
		return
	}
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		printField(w, k, truncate(firstLine(fmt.Sprint(s[k])), 120))
	}
}
