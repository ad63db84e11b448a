package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Joseda-hg/lazytime/internal/core"
	"github.com/Joseda-hg/lazytime/internal/model"
)

var startCmd = &cobra.Command{
	Use:     "start <task>...",
	Aliases: []string{"run"},
	Short:   "Start a new task or continue an existing one",
	Long:    `Start a task. Nested tasks are delimited by "::", e.g. "work :: client :: call".`,
	Args:    cobra.MinimumNArgs(1),
	RunE:    runStart,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running task",
	Args:  cobra.NoArgs,
	RunE:  runStop,
}

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the last task",
	Args:  cobra.NoArgs,
	RunE:  runRestart,
}

var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel the running interval",
	Args:  cobra.NoArgs,
	RunE:  runCancel,
}

var stateCmd = &cobra.Command{
	Use:     "state",
	Aliases: []string{"status"},
	Short:   "Show the running or the last task",
	Args:    cobra.NoArgs,
	RunE:    runState,
}

func init() {
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(restartCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(stateCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	path := model.ParsePath(strings.Join(args, " "))
	return update(cmd, func(ctx context.Context, tr *core.Tracker) error {
		a, err := tr.Start(ctx, path)
		if err != nil {
			return err
		}
		printActivity(cmd.OutOrStdout(), "Starting...", a, a.Interval.Begin)
		return nil
	})
}

func runStop(cmd *cobra.Command, _ []string) error {
	return update(cmd, func(ctx context.Context, tr *core.Tracker) error {
		a, err := tr.Stop(ctx)
		if err != nil {
			return err
		}
		printActivity(cmd.OutOrStdout(), "Stopping...", a, *a.Interval.End)
		return nil
	})
}

func runRestart(cmd *cobra.Command, _ []string) error {
	return update(cmd, func(ctx context.Context, tr *core.Tracker) error {
		a, err := tr.Restart(ctx)
		if err != nil {
			return err
		}
		printActivity(cmd.OutOrStdout(), "Restarting...", a, a.Interval.Begin)
		return nil
	})
}

func runCancel(cmd *cobra.Command, _ []string) error {
	return update(cmd, func(ctx context.Context, tr *core.Tracker) error {
		a, err := tr.Cancel(ctx)
		if err != nil {
			return err
		}
		printActivity(cmd.OutOrStdout(), "Current interval canceled...", a, *a.Interval.End)
		return nil
	})
}

func runState(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()
	return view(cmd, func(ctx context.Context, tr *core.Tracker) error {
		node, interval, err := tr.LastRunning(ctx)
		if err != nil {
			return err
		}
		if interval == nil {
			fmt.Fprintln(w, "Nothing tracked yet.")
			return nil
		}
		path, err := tr.Ancestors(ctx, node.ID)
		if errors.Is(err, core.ErrTaskNotFound) {
			return fmt.Errorf("interval %d points at a missing task: %w", interval.ID, err)
		}
		if err != nil {
			return err
		}

		title := "Last task:"
		if interval.Running() {
			title = "Running:"
		}
		printActivity(w, title, &core.Activity{Path: path, Interval: interval}, clock())
		return nil
	})
}
