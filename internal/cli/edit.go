package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Joseda-hg/lazytime/internal/core"
	"github.com/Joseda-hg/lazytime/internal/model"
)

var renameCmd = &cobra.Command{
	Use:   "rename <task-id> <name>...",
	Short: "Rename a task",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runRename,
}

var moveCmd = &cobra.Command{
	Use:   "move <task-id> <parent-id>",
	Short: "Move a task under another one, 0 makes it top-level",
	Args:  cobra.ExactArgs(2),
	RunE:  runMove,
}

var tagCmd = &cobra.Command{
	Use:   "tag <task-ids|cur> <tags>",
	Short: "Add comma separated tags to tasks",
	Long:  `Add tags to tasks. Task ids are comma separated; "cur" is the running task.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRetag(cmd, args, (*core.Tracker).Tag)
	},
}

var untagCmd = &cobra.Command{
	Use:   "untag <task-ids|cur> <tags>",
	Short: "Remove comma separated tags from tasks",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRetag(cmd, args, (*core.Tracker).Untag)
	},
}

var mergeCmd = &cobra.Command{
	Use:   "merge <from-id> <to-id>",
	Short: "Move every interval of one task onto another",
	Args:  cobra.ExactArgs(2),
	RunE:  runMerge,
}

func init() {
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(moveCmd)
	rootCmd.AddCommand(tagCmd)
	rootCmd.AddCommand(untagCmd)
	rootCmd.AddCommand(mergeCmd)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

// parseTaskIDs reads a comma separated id list. "cur" maps to 0, the running
// task.
func parseTaskIDs(s string) ([]int64, error) {
	var ids []int64
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if part == "cur" {
			ids = append(ids, 0)
			continue
		}
		id, err := parseID(part)
		if err != nil {
			return nil, err
		}
		if id <= 0 {
			return nil, fmt.Errorf("invalid id %q", part)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no task ids in %q", s)
	}
	return ids, nil
}

func runRename(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	name := strings.Join(args[1:], " ")
	return update(cmd, func(ctx context.Context, tr *core.Tracker) error {
		path, err := tr.Rename(ctx, id, name)
		if err != nil {
			return err
		}
		printPath(cmd.OutOrStdout(), "Renamed to", path)
		return nil
	})
}

func runMove(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	parent, err := parseID(args[1])
	if err != nil {
		return err
	}
	return update(cmd, func(ctx context.Context, tr *core.Tracker) error {
		path, err := tr.Move(ctx, id, parent)
		if err != nil {
			return err
		}
		printPath(cmd.OutOrStdout(), "Moved to", path)
		return nil
	})
}

func runRetag(cmd *cobra.Command, args []string, apply func(*core.Tracker, context.Context, []int64, []string) ([]*model.Node, error)) error {
	ids, err := parseTaskIDs(args[0])
	if err != nil {
		return err
	}
	tags := model.SplitTags(args[1])
	if len(tags) == 0 {
		return fmt.Errorf("no tags in %q", args[1])
	}

	w := cmd.OutOrStdout()
	return update(cmd, func(ctx context.Context, tr *core.Tracker) error {
		nodes, err := apply(tr, ctx, ids, tags)
		if err != nil {
			return err
		}
		for _, n := range nodes {
			fmt.Fprintf(w, "%d %s [%s]\n", n.ID, n.Label, strings.Join(n.TagList(), ", "))
		}
		return nil
	})
}

func runMerge(cmd *cobra.Command, args []string) error {
	from, err := parseID(args[0])
	if err != nil {
		return err
	}
	to, err := parseID(args[1])
	if err != nil {
		return err
	}
	return update(cmd, func(ctx context.Context, tr *core.Tracker) error {
		res, err := tr.Merge(ctx, from, to)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Moved %d intervals from %s to %s\n",
			res.Moved, formatPath(res.From), formatPath(res.To))
		return nil
	})
}
