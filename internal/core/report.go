package core

import (
	"context"
	"time"

	"github.com/Joseda-hg/lazytime/internal/model"
	"github.com/Joseda-hg/lazytime/internal/orm"
)

// ReportRow is one task line of a total report.
type ReportRow struct {
	Node  model.Node
	Depth int
	// Own is time logged on the task itself, Total includes its subtasks.
	Own   time.Duration
	Total time.Duration
}

type Report struct {
	From  time.Time
	To    time.Time
	Rows  []ReportRow
	Total time.Duration
}

// Total sums the time logged between from and to per task. Intervals are
// clipped to the period, an open interval counting up to now. Tasks under a
// deleted ancestor are skipped.
func (t *Tracker) Total(ctx context.Context, from, to time.Time) (*Report, error) {
	now := t.clock()
	intervals, err := orm.Query[*model.Interval](ctx, t.st, orm.Where(orm.AllOf(
		orm.Or(orm.Gt(model.IntervalEnd, orm.Time(from)), orm.Eq(model.IntervalEnd, orm.Null())),
		orm.Lt(model.IntervalBegin, orm.Time(to)),
		orm.Not(orm.Gt(model.IntervalDeleted, orm.Int(0))),
	)).Sort(model.IntervalBegin, orm.Asc))
	if err != nil {
		return nil, err
	}

	own := map[int64]time.Duration{}
	for _, interval := range intervals {
		if interval.NodeID == nil {
			continue
		}
		begin := interval.Begin
		if begin.Before(from) {
			begin = from
		}
		end := now
		if interval.End != nil {
			end = *interval.End
		}
		if end.After(to) {
			end = to
		}
		if end.After(begin) {
			own[*interval.NodeID] += end.Sub(begin)
		}
	}

	seen := map[int64]bool{}
	var nodes []model.Node
	for id := range own {
		path, err := t.Ancestors(ctx, id)
		if err != nil {
			return nil, err
		}
		if anyDeleted(path) {
			continue
		}
		for _, n := range path {
			if !seen[n.ID] {
				seen[n.ID] = true
				nodes = append(nodes, n)
			}
		}
	}

	forest := BuildForest(nodes)
	forest.SortFunc(ByLabel)

	report := &Report{From: from, To: to}
	for _, tree := range forest {
		report.Total += report.add(tree, 0, own)
	}
	return report, nil
}

// add appends tree's rows in depth-first order and returns its total.
func (r *Report) add(tree *Tree, depth int, own map[int64]time.Duration) time.Duration {
	idx := len(r.Rows)
	r.Rows = append(r.Rows, ReportRow{Node: tree.Node, Depth: depth, Own: own[tree.Node.ID]})
	total := own[tree.Node.ID]
	for _, child := range tree.Children {
		total += r.add(child, depth+1, own)
	}
	r.Rows[idx].Total = total
	return total
}

func anyDeleted(path []model.Node) bool {
	for _, n := range path {
		if n.Deleted {
			return true
		}
	}
	return false
}
