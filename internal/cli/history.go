package cli

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Joseda-hg/lazytime/internal/history"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect or enable the change journal",
}

var historyEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Create the history database and journal existing tasks",
	Args:  cobra.NoArgs,
	RunE:  runHistoryEnable,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the latest journal records",
	Args:  cobra.NoArgs,
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <uuid>",
	Short: "Print every record of one entity",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

func init() {
	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of records, 0 for all")

	historyCmd.AddCommand(historyEnableCmd)
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	rootCmd.AddCommand(historyCmd)
}

func runHistoryEnable(cmd *cobra.Command, _ []string) error {
	n, err := env.EnableHistory(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "History enabled, journaled %s existing rows\n", humanize.Comma(int64(n)))
	return nil
}

func runHistoryList(cmd *cobra.Command, _ []string) error {
	return env.Journal(cmd.Context(), func(j *history.Journal) error {
		records, err := j.Records(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		printRecords(cmd.OutOrStdout(), records)
		return nil
	})
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid uuid %q: %w", args[0], err)
	}
	ctx := cmd.Context()
	return env.Journal(ctx, func(j *history.Journal) error {
		records, err := j.Entity(ctx, id)
		if err != nil {
			return err
		}
		printRecords(cmd.OutOrStdout(), records)
		return nil
	})
}

func printRecords(w io.Writer, records []*history.Record) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No records.")
		return
	}
	now := clock()
	for _, r := range records {
		fmt.Fprintf(w, "%s  %-6s  %-8s %5d  %s (%s)\n", r.UUID, r.Type, r.EntityType, r.EntityID,
			formatTime(r.Date), humanize.RelTime(r.Date, now, "ago", "from now"))
	}
}
