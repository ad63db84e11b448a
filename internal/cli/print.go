package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Joseda-hg/lazytime/internal/core"
	"github.com/Joseda-hg/lazytime/internal/model"
)

const timeLayout = "2006-01-02 15:04:05"

// clock is shared by the tracker and the printers so relative times agree.
var clock = func() time.Time { return time.Now().UTC() }

func formatTime(t time.Time) string {
	return t.Local().Format(timeLayout)
}

// formatDuration renders d as "2h05m", "12m30s" or "45s".
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	switch {
	case h > 0:
		return fmt.Sprintf("%dh%02dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm%02ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

func formatPath(path []model.Node) string {
	if len(path) == 0 {
		return ""
	}
	return fmt.Sprintf("%s (id %d)", model.PathString(path), path[len(path)-1].ID)
}

func printActivity(w io.Writer, title string, a *core.Activity, now time.Time) {
	if title != "" {
		fmt.Fprintln(w, title)
	}
	i := a.Interval
	fmt.Fprintf(w, "  Task:     %s\n", formatPath(a.Path))
	task := a.Task()
	if tags := task.TagList(); len(tags) > 0 {
		fmt.Fprintf(w, "  Tags:     %s\n", strings.Join(tags, ", "))
	}
	fmt.Fprintf(w, "  Interval: %d\n", i.ID)
	fmt.Fprintf(w, "  Started:  %s (%s)\n", formatTime(i.Begin), humanize.RelTime(i.Begin, now, "ago", "from now"))
	if i.End != nil {
		fmt.Fprintf(w, "  Stopped:  %s (%s)\n", formatTime(*i.End), humanize.RelTime(*i.End, now, "ago", "from now"))
	}
	fmt.Fprintf(w, "  Duration: %s\n", formatDuration(i.Duration(now)))
}

func printPath(w io.Writer, title string, path []model.Node) {
	fmt.Fprintf(w, "%s %s\n", title, formatPath(path))
}
