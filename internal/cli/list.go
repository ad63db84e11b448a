package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Joseda-hg/lazytime/internal/core"
	"github.com/Joseda-hg/lazytime/internal/model"
	"github.com/Joseda-hg/lazytime/internal/orm"
)

var (
	listTag    string
	listClosed bool
	listLimit  int
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tasks or intervals",
}

var listTasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Print the task tree",
	Args:  cobra.NoArgs,
	RunE:  runListTasks,
}

var listIntervalsCmd = &cobra.Command{
	Use:   "intervals",
	Short: "Print the latest intervals, newest first",
	Args:  cobra.NoArgs,
	RunE:  runListIntervals,
}

func init() {
	listTasksCmd.Flags().StringVarP(&listTag, "tag", "t", "", "only tasks with this tag")
	listTasksCmd.Flags().BoolVar(&listClosed, "closed", false, "include closed tasks")
	listIntervalsCmd.Flags().IntVarP(&listLimit, "limit", "n", 10, "number of intervals, 0 for all")

	listCmd.AddCommand(listTasksCmd)
	listCmd.AddCommand(listIntervalsCmd)
	rootCmd.AddCommand(listCmd)
}

// taskFilter selects the tasks listed by "list tasks".
func taskFilter(tag string, closed bool) orm.Filter {
	var open, tagged orm.Filter
	if !closed {
		open = orm.Eq(model.NodeClosed, orm.Bool(false))
	}
	if tag = strings.TrimSpace(tag); tag != "" {
		tagged = model.TagFilter(tag)
	}
	return orm.AllOf(core.LiveNodes, open, tagged)
}

func runListTasks(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()
	return view(cmd, func(ctx context.Context, tr *core.Tracker) error {
		forest, err := tr.FilteredForest(ctx, taskFilter(listTag, listClosed))
		if err != nil {
			return err
		}
		if forest.Len() == 0 {
			fmt.Fprintln(w, "No tasks.")
			return nil
		}
		forest.SortFunc(core.ByLabel)
		for depth, tree := range forest.Walk() {
			n := tree.Node
			line := fmt.Sprintf("%s%s (id %d)", strings.Repeat("  ", depth), n.Label, n.ID)
			if tags := n.TagList(); len(tags) > 0 {
				line += " [" + strings.Join(tags, ", ") + "]"
			}
			fmt.Fprintln(w, line)
		}
		return nil
	})
}

func runListIntervals(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()
	now := clock()
	return view(cmd, func(ctx context.Context, tr *core.Tracker) error {
		activities, err := tr.Intervals(ctx, listLimit)
		if err != nil {
			return err
		}
		if len(activities) == 0 {
			fmt.Fprintln(w, "No intervals.")
			return nil
		}
		for _, a := range activities {
			end := "running"
			if a.Interval.End != nil {
				end = formatTime(*a.Interval.End)
			}
			fmt.Fprintf(w, "%5d  %s  %-19s  %8s  %s\n", a.Interval.ID,
				formatTime(a.Interval.Begin), end, formatDuration(a.Interval.Duration(now)),
				model.PathString(a.Path))
		}
		return nil
	})
}
