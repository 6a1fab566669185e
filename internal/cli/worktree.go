package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agusx1211/cli-worker/internal/theme"
	"github.com/agusx1211/cli-worker/internal/worktree"
)

var worktreeCmd = &cobra.Command{
	Use:     "worktree",
	Aliases: []string{"worktrees", "wt"},
	Short:   "Manage task sandboxes (git worktrees)",
}

var worktreeListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List task sandboxes registered with git",
	Args:    cobra.NoArgs,
	RunE:    runWorktreeList,
}

var worktreeCleanupCmd = &cobra.Command{
	Use:     "cleanup",
	Aliases: []string{"clean", "gc"},
	Short:   "Remove sandboxes older than --older-than-hours",
	Long: `Remove task sandboxes whose directory was last modified more than
--older-than-hours ago. Failures are reported per sandbox; the command keeps
going and exits non-zero if any removal failed.`,
	Args: cobra.NoArgs,
	RunE: runWorktreeCleanup,
}

var worktreeCreateCmd = &cobra.Command{
	Use:   "create TASK_ID",
	Short: "Create a detached sandbox for a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorktreeCreate,
}

var worktreeRemoveCmd = &cobra.Command{
	Use:     "remove PATH",
	Aliases: []string{"rm"},
	Short:   "Remove one sandbox",
	Args:    cobra.ExactArgs(1),
	RunE:    runWorktreeRemove,
}

func init() {
	addFormatFlag(worktreeListCmd)
	worktreeCleanupCmd.Flags().Float64("older-than-hours", 24, "Age threshold in hours")
	worktreeCmd.AddCommand(worktreeListCmd, worktreeCleanupCmd, worktreeCreateCmd, worktreeRemoveCmd)
	rootCmd.AddCommand(worktreeCmd)
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func runWorktreeList(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	mgr, err := newManager(cmd)
	if err != nil {
		return err
	}
	wts, err := mgr.List(cmdContext(cmd))
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if format != formatText {
		if wts == nil {
			wts = []worktree.Worktree{}
		}
		return writeStructured(w, format, wts)
	}
	if len(wts) == 0 {
		fmt.Fprintf(w, "No sandboxes under %s.\n", mgr.BasePath())
		return nil
	}
	printHeader(w, "Sandboxes")
	rows := make([][]string, 0, len(wts))
	for _, wt := range wts {
		rows = append(rows, []string{wt.TaskID, wt.Path})
	}
	printTable(w, []string{"TASK", "PATH"}, rows)
	return nil
}

func runWorktreeCleanup(cmd *cobra.Command, args []string) error {
	hours, _ := cmd.Flags().GetFloat64("older-than-hours")
	if err := worktree.ValidateAge(hours); err != nil {
		return fmt.Errorf("--older-than-hours: %w", err)
	}
	mgr, err := newManager(cmd)
	if err != nil {
		return err
	}
	res := mgr.Cleanup(cmdContext(cmd), hours)

	w := cmd.OutOrStdout()
	if res.Removed == 0 {
		fmt.Fprintln(w, "No stale sandboxes removed.")
	} else {
		fmt.Fprintf(w, "Removed %d stale sandbox(es).\n", res.Removed)
	}
	for _, f := range res.Failures {
		fmt.Fprintln(cmd.ErrOrStderr(), theme.Error.Render("  "+f))
	}
	if len(res.Failures) > 0 {
		return fmt.Errorf("%d cleanup failure(s)", len(res.Failures))
	}
	return nil
}

func runWorktreeCreate(cmd *cobra.Command, args []string) error {
	taskID := strings.TrimSpace(args[0])
	mgr, err := newManager(cmd)
	if err != nil {
		return err
	}
	wt, err := mgr.Create(cmdContext(cmd), taskID)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), wt.Path)
	return nil
}

func runWorktreeRemove(cmd *cobra.Command, args []string) error {
	mgr, err := newManager(cmd)
	if err != nil {
		return err
	}
	if err := mgr.Remove(cmdContext(cmd), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
	return nil
}
