package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Joseda-hg/lazytime/internal/core"
)

var (
	reportFrom string
	reportTo   string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize tracked time",
}

var reportTotalCmd = &cobra.Command{
	Use:   "total",
	Short: "Time per task in a period, today by default",
	Long: `Time per task between --from and --to. Dates are local and may be given as
"2006-01-02", "2006-01-02 15:04" or "today"/"yesterday".`,
	Args: cobra.NoArgs,
	RunE: runReportTotal,
}

func init() {
	reportTotalCmd.Flags().StringVar(&reportFrom, "from", "today", "start of the period")
	reportTotalCmd.Flags().StringVar(&reportTo, "to", "", "end of the period (default now)")

	reportCmd.AddCommand(reportTotalCmd)
	rootCmd.AddCommand(reportCmd)
}

var dateLayouts = []string{"2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02"}

// parseDate reads a local date or date-time relative to now.
func parseDate(s string, now time.Time) (time.Time, error) {
	local := now.Local()
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.Local)
	switch s = strings.TrimSpace(s); s {
	case "", "now":
		return now, nil
	case "today":
		return midnight.UTC(), nil
	case "yesterday":
		return midnight.AddDate(0, 0, -1).UTC(), nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

func runReportTotal(cmd *cobra.Command, _ []string) error {
	now := clock()
	from, err := parseDate(reportFrom, now)
	if err != nil {
		return err
	}
	to, err := parseDate(reportTo, now)
	if err != nil {
		return err
	}
	if !to.After(from) {
		return fmt.Errorf("empty period: %s is not before %s", formatTime(from), formatTime(to))
	}

	w := cmd.OutOrStdout()
	return view(cmd, func(ctx context.Context, tr *core.Tracker) error {
		report, err := tr.Total(ctx, from, to)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "From %s to %s\n", formatTime(report.From), formatTime(report.To))
		if len(report.Rows) == 0 {
			fmt.Fprintln(w, "Nothing tracked.")
			return nil
		}
		for _, row := range report.Rows {
			label := strings.Repeat("  ", row.Depth) + row.Node.Label
			fmt.Fprintf(w, "%-40s %10s\n", label, formatDuration(row.Total))
		}
		fmt.Fprintf(w, "%-40s %10s\n", "Total", formatDuration(report.Total))
		return nil
	})
}
