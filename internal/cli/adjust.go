package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Joseda-hg/lazytime/internal/core"
)

var adjustTask int64

var addCmd = &cobra.Command{
	Use:   "add <duration>",
	Short: "Add time to the last interval or create one ending now",
	Long: `Add time, e.g. "25m" or "1h 30m". By default the running or last interval
is extended; --task picks the latest interval of a task instead.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

var truncateCmd = &cobra.Command{
	Use:     "truncate <duration>",
	Aliases: []string{"trunc"},
	Short:   "Cut time from the end of the last finished interval",
	Args:    cobra.MinimumNArgs(1),
	RunE:    runTruncate,
}

func init() {
	addCmd.Flags().Int64VarP(&adjustTask, "task", "t", 0, "task id")
	truncateCmd.Flags().Int64VarP(&adjustTask, "task", "t", 0, "task id")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(truncateCmd)
}

func parseDuration(args []string) (time.Duration, error) {
	s := strings.Join(strings.Fields(strings.Join(args, "")), "")
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", strings.Join(args, " "))
	}
	return d, nil
}

func runAdd(cmd *cobra.Command, args []string) error {
	d, err := parseDuration(args)
	if err != nil {
		return err
	}
	return update(cmd, func(ctx context.Context, tr *core.Tracker) error {
		a, extended, err := tr.Add(ctx, adjustTask, d)
		if err != nil {
			return err
		}
		title := "New interval created"
		if extended {
			title = "Interval extended"
		}
		printActivity(cmd.OutOrStdout(), title, a, clock())
		return nil
	})
}

func runTruncate(cmd *cobra.Command, args []string) error {
	d, err := parseDuration(args)
	if err != nil {
		return err
	}
	return update(cmd, func(ctx context.Context, tr *core.Tracker) error {
		a, err := tr.Truncate(ctx, adjustTask, d)
		if err != nil {
			return err
		}
		printActivity(cmd.OutOrStdout(), "Interval truncated", a, clock())
		return nil
	})
}
