package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agusx1211/cli-worker/internal/theme"
	"github.com/agusx1211/cli-worker/pkg/protocol"
)

var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Inspect task manifests",
}

var manifestValidateCmd = &cobra.Command{
	Use:   "validate FILE...",
	Short: "Check manifests against the task protocol",
	Long: `Check that each FILE is a structurally valid task manifest: protocol_version
"` + protocol.Version + `", a non-empty task_id, a context object and an
execution_context with a worktree_path string. Files ending in .yaml or .yml
are read as YAML.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runManifestValidate,
}

func init() {
	manifestCmd.AddCommand(manifestValidateCmd)
	rootCmd.AddCommand(manifestCmd)
}

func runManifestValidate(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	invalid := 0
	for _, path := range args {
		m, err := protocol.LoadManifest(path)
		if err != nil {
			invalid++
			fmt.Fprintf(w, "%s %s\n  %s\n", theme.Badge("invalid"), path, theme.Dim.Render(err.Error()))
			continue
		}
		fmt.Fprintf(w, "%s %s %s\n", theme.Badge("ok"), path, theme.Dim.Render("task "+m.TaskID))
	}
	if invalid > 0 {
		return fmt.Errorf("%d of %d manifest(s) invalid", invalid, len(args))
	}
	return nil
}
