package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Joseda-hg/lazytime/internal/core"
)

var deleteYes bool

var deleteCmd = &cobra.Command{
	Use:     "delete",
	Aliases: []string{"rm"},
	Short:   "Delete tasks or intervals",
}

var deleteTaskCmd = &cobra.Command{
	Use:   "task <task-id>",
	Short: "Delete a task with its subtasks and intervals",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeleteTask,
}

var deleteIntervalCmd = &cobra.Command{
	Use:   "interval <interval-id|-offset>",
	Short: "Delete an interval",
	Long: `Delete an interval by id, or by a negative offset counting back from the
latest finished interval. Put offsets after "--".`,
	Example: "  lazytime delete interval 42\n  lazytime delete interval -- -1",
	Args:    cobra.ExactArgs(1),
	RunE:    runDeleteInterval,
}

func init() {
	deleteCmd.PersistentFlags().BoolVarP(&deleteYes, "yes", "y", false, "do not ask for confirmation")

	deleteCmd.AddCommand(deleteTaskCmd)
	deleteCmd.AddCommand(deleteIntervalCmd)
	rootCmd.AddCommand(deleteCmd)
}

// confirm asks question on w and reads a yes/no answer from r.
func confirm(r io.Reader, w io.Writer, question string) bool {
	if deleteYes {
		return true
	}
	fmt.Fprintf(w, "%s [y/N] ", question)
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func runDeleteTask(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()

	var plan *core.DeletePlan
	err = view(cmd, func(ctx context.Context, tr *core.Tracker) error {
		plan, err = tr.PlanDeleteTask(ctx, id)
		return err
	})
	if err != nil {
		return err
	}

	question := fmt.Sprintf("Delete task %s?", formatPath(plan.Path))
	if plan.IsGroup {
		question = fmt.Sprintf("Delete task %s with all of its subtasks?", formatPath(plan.Path))
	}
	if !confirm(cmd.InOrStdin(), w, question) {
		fmt.Fprintln(w, "Aborted.")
		return nil
	}

	return update(cmd, func(ctx context.Context, tr *core.Tracker) error {
		res, err := tr.DeleteTask(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Deleted %d tasks and %d intervals\n", res.Nodes, res.Intervals)
		return nil
	})
}

func runDeleteInterval(cmd *cobra.Command, args []string) error {
	ref, err := parseID(args[0])
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()

	var found *core.Activity
	err = view(cmd, func(ctx context.Context, tr *core.Tracker) error {
		found, err = tr.FindInterval(ctx, ref)
		return err
	})
	if err != nil {
		return err
	}

	printActivity(w, "", found, clock())
	if !confirm(cmd.InOrStdin(), w, "Delete this interval?") {
		fmt.Fprintln(w, "Aborted.")
		return nil
	}

	return update(cmd, func(ctx context.Context, tr *core.Tracker) error {
		a, err := tr.DeleteInterval(ctx, found.Interval.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Deleted interval %d\n", a.Interval.ID)
		return nil
	})
}
