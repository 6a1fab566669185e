package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agusx1211/cli-worker/internal/buildinfo"
	"github.com/agusx1211/cli-worker/internal/config"
	"github.com/agusx1211/cli-worker/internal/debug"
	"github.com/agusx1211/cli-worker/internal/theme"
)

var rootCmd = &cobra.Command{
	Use:   "cli-worker",
	Short: "Run tasks through the kimi CLI in isolated git worktrees",
	Long: `cli-worker executes task manifests by handing them to the kimi CLI inside
a dedicated git worktree, then collects the final answer and the task report.

Getting Started:
  cli-worker verify                       Check that kimi is installed and usable
  cli-worker run --manifest task.json     Run one task
  cli-worker worktree list                Show task sandboxes
  cli-worker worktree cleanup             Reclaim sandboxes older than a day

Configuration lives in ~/.cli-worker/config.json (override with CLI_WORKER_CONFIG).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// cfg is loaded once per invocation by the root pre-run hook.
var cfg *config.Config

func init() {
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.PersistentFlags().Bool("debug", false, "Enable verbose debug logging to ~/.cli-worker/logs/")
	rootCmd.PersistentFlags().String("repo", "", "Repository root (default: current directory)")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded

		debugFlag, _ := cmd.Flags().GetBool("debug")
		if !debugFlag && !debug.ShouldEnableFromEnv() {
			return nil
		}
		logPath, err := debug.Init(debug.Options{
			Path:       config.ExpandHome(cfg.Logging.Path),
			MaxSize:    cfg.Logging.MaxSizeBytes,
			MaxBackups: cfg.Logging.MaxBackups,
		})
		if err != nil {
			return fmt.Errorf("initializing debug logger: %w", err)
		}
		fmt.Fprintf(os.Stderr, "%s logging to %s\n", theme.Dim.Render("[debug]"), logPath)
		bi := buildinfo.Current()
		debug.LogKV("cli", "cli-worker starting",
			"version", bi.Version,
			"commit", bi.CommitHash,
			"pid", os.Getpid(),
			"command", cmd.CommandPath(),
			"args", args,
			"config", config.Path(),
		)
		return nil
	}
}

// Execute runs the root command.
func Execute() {
	defer debug.Close()
	if err := rootCmd.Execute(); err != nil {
		debug.Logf("cli", "exit with error: %v", err)
		fmt.Fprintf(os.Stderr, "%s %s\n", theme.Error.Render("Error:"), err)
		debug.Close()
		os.Exit(1)
	}
	debug.Log("cli", "exit success")
}

// currentConfig returns the loaded config, or defaults when the pre-run
// hook did not run (tests calling RunE directly).
func currentConfig() *config.Config {
	if cfg == nil {
		return config.Default()
	}
	return cfg
}
