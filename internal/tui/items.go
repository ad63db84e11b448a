package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/Joseda-hg/lazytime/internal/core"
	"github.com/Joseda-hg/lazytime/internal/model"
)

// taskRow is one visible line of the task pane.
type taskRow struct {
	Node        model.Node
	Depth       int
	HasChildren bool
}

func formatTags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	return " [" + strings.Join(tags, ",") + "]"
}

func formatTaskSummary(n model.Node, running bool) string {
	mark := ""
	if running {
		mark = " *"
	}
	return fmt.Sprintf("%s%s%s", n.Label, mark, formatTags(n.TagList()))
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	if h > 0 {
		return fmt.Sprintf("%dh%02dm", h, m)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

// buildVisibleTaskTree flattens forest depth first, skipping the children of
// collapsed tasks.
func buildVisibleTaskTree(forest core.Forest, collapsed map[int64]bool) []taskRow {
	var rows []taskRow
	var walk func(trees []*core.Tree, depth int)
	walk = func(trees []*core.Tree, depth int) {
		for _, tree := range trees {
			rows = append(rows, taskRow{Node: tree.Node, Depth: depth, HasChildren: len(tree.Children) > 0})
			if collapsed[tree.Node.ID] {
				continue
			}
			walk(tree.Children, depth+1)
		}
	}
	walk(forest, 0)
	return rows
}
