package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Joseda-hg/lazytime/internal/model"
	"github.com/Joseda-hg/lazytime/internal/orm"
)

func validateLabel(label string) error {
	switch {
	case strings.TrimSpace(label) == "":
		return fmt.Errorf("%w: empty name", ErrInvalidLabel)
	case strings.Contains(label, model.PathSeparator):
		return fmt.Errorf("%w: %q contains %q", ErrInvalidLabel, label, model.PathSeparator)
	}
	return nil
}

func (t *Tracker) rejectRunning(ctx context.Context) error {
	running, err := t.Running(ctx)
	if err != nil {
		return err
	}
	if running != nil {
		return &RunningError{Path: running.Path, Interval: running.Interval}
	}
	return nil
}

// Start opens an interval on path, creating the missing tasks. It fails with
// a *RunningError while another interval is open.
func (t *Tracker) Start(ctx context.Context, path []string) (*Activity, error) {
	if err := t.rejectRunning(ctx); err != nil {
		return nil, err
	}

	nodes, err := t.CreatePath(ctx, path)
	if err != nil {
		return nil, err
	}
	interval := model.NewInterval(nodes[len(nodes)-1].ID, t.clock())
	id, err := t.st.Save(ctx, interval)
	if err != nil {
		return nil, err
	}
	interval.ID = id
	t.log.InfoContext(ctx, "started", "task", model.PathString(nodes), "interval", id)
	return &Activity{Path: nodes, Interval: interval}, nil
}

// Stop closes the running interval.
func (t *Tracker) Stop(ctx context.Context) (*Activity, error) {
	running, err := t.Running(ctx)
	if err != nil {
		return nil, err
	}
	if running == nil {
		return nil, ErrNoRunning
	}

	end := t.clock()
	running.Interval.End = &end
	if _, err := t.st.Save(ctx, running.Interval); err != nil {
		return nil, err
	}
	t.log.InfoContext(ctx, "stopped", "task", model.PathString(running.Path), "interval", running.Interval.ID)
	return running, nil
}

// Cancel closes the running interval and marks it deleted.
func (t *Tracker) Cancel(ctx context.Context) (*Activity, error) {
	running, err := t.Running(ctx)
	if err != nil {
		return nil, err
	}
	if running == nil {
		return nil, ErrNoRunning
	}

	end := t.clock()
	running.Interval.End = &end
	running.Interval.Deleted = true
	if _, err := t.st.Save(ctx, running.Interval); err != nil {
		return nil, err
	}
	return running, nil
}

// Restart opens a new interval on the task of the most recently finished one.
func (t *Tracker) Restart(ctx context.Context) (*Activity, error) {
	if err := t.rejectRunning(ctx); err != nil {
		return nil, err
	}

	last, err := orm.Query[*model.Interval](ctx, t.st, orm.Where(orm.And(
		orm.Ne(model.IntervalDeleted, orm.Bool(true)),
		orm.Ne(model.IntervalClosed, orm.Bool(true)),
	)).Sort(model.IntervalEnd, orm.Desc).Limit(1))
	if err != nil {
		return nil, err
	}
	if len(last) == 0 {
		return nil, ErrNothingToRestart
	}
	node, err := t.intervalNode(ctx, last[0])
	if err != nil {
		return nil, err
	}

	interval := model.NewInterval(node.ID, t.clock())
	id, err := t.st.Save(ctx, interval)
	if err != nil {
		return nil, err
	}
	interval.ID = id
	return t.activity(ctx, interval)
}

// Rename relabels id and returns its new path.
func (t *Tracker) Rename(ctx context.Context, id int64, label string) ([]model.Node, error) {
	label = strings.TrimSpace(label)
	if err := validateLabel(label); err != nil {
		return nil, err
	}
	n, err := t.node(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := t.ensureFree(ctx, n.ParentID, label, id); err != nil {
		return nil, err
	}

	n.Label = label
	if _, err := t.st.Save(ctx, n); err != nil {
		return nil, err
	}
	return t.Ancestors(ctx, id)
}

// Move re-parents id under parentID; 0 makes it a top-level task. Moving a
// task under itself or one of its descendants is rejected.
func (t *Tracker) Move(ctx context.Context, id, parentID int64) ([]model.Node, error) {
	if id == parentID {
		return nil, fmt.Errorf("%w: a task cannot be moved into itself", ErrInvalidMove)
	}
	n, err := t.node(ctx, id)
	if err != nil {
		return nil, err
	}

	var parent *int64
	if parentID > 0 {
		path, err := t.Ancestors(ctx, parentID)
		if err != nil {
			return nil, err
		}
		for _, p := range path {
			if p.ID == id {
				return nil, fmt.Errorf("%w: %s is inside %s", ErrInvalidMove, model.PathString(path), n.Label)
			}
		}
		parent = &parentID
	}
	if err := t.ensureFree(ctx, parent, n.Label, id); err != nil {
		return nil, err
	}

	n.ParentID = parent
	if _, err := t.st.Save(ctx, n); err != nil {
		return nil, err
	}
	return t.Ancestors(ctx, id)
}

// ensureFree fails when a task other than self already uses label under
// parent, since path lookup could no longer tell them apart.
func (t *Tracker) ensureFree(ctx context.Context, parent *int64, label string, self int64) error {
	clash, err := t.findPathPart(ctx, label, parent)
	if err != nil {
		return err
	}
	if clash != nil && clash.ID != self {
		return fmt.Errorf("%w: %q (id %d)", ErrDuplicateTask, label, clash.ID)
	}
	return nil
}

// resolveTasks loads ids; id 0 stands for the task currently running.
func (t *Tracker) resolveTasks(ctx context.Context, ids []int64) ([]*model.Node, error) {
	res := make([]*model.Node, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			n, _, err := t.CurRunning(ctx)
			if err != nil {
				return nil, err
			}
			if n == nil {
				return nil, ErrNoRunning
			}
			res = append(res, n)
			continue
		}
		n, err := t.node(ctx, id)
		if err != nil {
			return nil, err
		}
		res = append(res, n)
	}
	return res, nil
}

// Tag adds tags to every task in ids.
func (t *Tracker) Tag(ctx context.Context, ids []int64, tags []string) ([]*model.Node, error) {
	return t.retag(ctx, ids, func(n *model.Node) { n.AddTags(tags) })
}

// Untag removes tags from every task in ids.
func (t *Tracker) Untag(ctx context.Context, ids []int64, tags []string) ([]*model.Node, error) {
	return t.retag(ctx, ids, func(n *model.Node) { n.RemoveTags(tags) })
}

func (t *Tracker) retag(ctx context.Context, ids []int64, apply func(*model.Node)) ([]*model.Node, error) {
	nodes, err := t.resolveTasks(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		apply(n)
		if _, err := t.st.Save(ctx, n); err != nil {
			return nil, err
		}
	}
	return nodes, nil
}

// MergeResult describes a finished Merge.
type MergeResult struct {
	From  []model.Node
	To    []model.Node
	Moved int
}

// Merge moves every interval of fromID onto toID.
func (t *Tracker) Merge(ctx context.Context, fromID, toID int64) (*MergeResult, error) {
	if fromID == toID {
		return nil, fmt.Errorf("%w: cannot merge a task into itself", ErrInvalidMove)
	}
	from, err := t.Ancestors(ctx, fromID)
	if err != nil {
		return nil, err
	}
	to, err := t.Ancestors(ctx, toID)
	if err != nil {
		return nil, err
	}

	intervals, err := orm.GetByFilter[*model.Interval](ctx, t.st, orm.Eq(model.IntervalNodeID, orm.Int(fromID)))
	if err != nil {
		return nil, err
	}
	for _, interval := range intervals {
		interval.NodeID = &toID
		if _, err := t.st.Save(ctx, interval); err != nil {
			return nil, err
		}
	}
	return &MergeResult{From: from, To: to, Moved: len(intervals)}, nil
}

// DeletePlan is what DeleteTask would remove.
type DeletePlan struct {
	Path    []model.Node
	IsGroup bool
}

// PlanDeleteTask checks that id may be deleted. A running task cannot be,
// nor can a task with children while anything is running.
func (t *Tracker) PlanDeleteTask(ctx context.Context, id int64) (*DeletePlan, error) {
	n, err := t.node(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.Deleted {
		return nil, ErrTaskDeleted
	}
	isGroup, err := t.HasChildren(ctx, id)
	if err != nil {
		return nil, err
	}

	running, _, err := t.CurRunning(ctx)
	if err != nil {
		return nil, err
	}
	if running != nil {
		if running.ID == id {
			return nil, fmt.Errorf("%w: stop it before deleting", ErrTaskRunning)
		}
		if isGroup {
			return nil, fmt.Errorf("%w: cannot delete a task with children while an interval is running", ErrTaskRunning)
		}
	}

	path, err := t.Ancestors(ctx, id)
	if err != nil {
		return nil, err
	}
	return &DeletePlan{Path: path, IsGroup: isGroup}, nil
}

// DeleteResult reports what DeleteTask removed.
type DeleteResult struct {
	Path      []model.Node
	Nodes     int64
	Intervals int64
}

// DeleteTask soft-deletes id with its subtree and intervals.
func (t *Tracker) DeleteTask(ctx context.Context, id int64) (*DeleteResult, error) {
	plan, err := t.PlanDeleteTask(ctx, id)
	if err != nil {
		return nil, err
	}
	nodes, intervals, err := t.RemoveNode(ctx, id)
	if err != nil {
		return nil, err
	}
	return &DeleteResult{Path: plan.Path, Nodes: nodes, Intervals: intervals}, nil
}

// FindInterval resolves an interval reference. A negative ref counts back
// from the most recently started finished interval, -1 being the latest.
func (t *Tracker) FindInterval(ctx context.Context, ref int64) (*Activity, error) {
	if ref == 0 {
		return nil, fmt.Errorf("%w: id 0", ErrIntervalNotFound)
	}

	var interval *model.Interval
	if ref < 0 {
		offset := int(-ref)
		recent, err := orm.Query[*model.Interval](ctx, t.st, orm.Where(orm.And(
			orm.Ne(model.IntervalDeleted, orm.Bool(true)),
			orm.Ne(model.IntervalEnd, orm.Null()),
		)).Sort(model.IntervalBegin, orm.Desc).Limit(offset))
		if err != nil {
			return nil, err
		}
		if len(recent) < offset {
			return nil, fmt.Errorf("%w: no interval at offset %d", ErrIntervalNotFound, ref)
		}
		interval = recent[offset-1]
	} else {
		var err error
		interval, err = orm.GetByID[*model.Interval](ctx, t.st, ref)
		if errors.Is(err, orm.ErrIsEmpty) {
			return nil, fmt.Errorf("%w: id %d", ErrIntervalNotFound, ref)
		}
		if err != nil {
			return nil, err
		}
	}
	return t.activity(ctx, interval)
}

// DeleteInterval marks the referenced interval deleted.
func (t *Tracker) DeleteInterval(ctx context.Context, ref int64) (*Activity, error) {
	a, err := t.FindInterval(ctx, ref)
	if err != nil {
		return nil, err
	}
	if a.Interval.Deleted {
		return nil, fmt.Errorf("%w: interval %d is already deleted", ErrIntervalNotFound, a.Interval.ID)
	}
	a.Interval.Deleted = true
	if _, err := t.st.Save(ctx, a.Interval); err != nil {
		return nil, err
	}
	return a, nil
}

// Intervals lists the latest live intervals, newest first. limit <= 0 lists
// all of them.
func (t *Tracker) Intervals(ctx context.Context, limit int) ([]*Activity, error) {
	stmt := orm.Where(orm.Ne(model.IntervalDeleted, orm.Bool(true))).Sort(model.IntervalBegin, orm.Desc)
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	intervals, err := orm.Query[*model.Interval](ctx, t.st, stmt)
	if err != nil {
		return nil, err
	}

	res := make([]*Activity, 0, len(intervals))
	for _, interval := range intervals {
		a, err := t.activity(ctx, interval)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, nil
}

// TaskIntervals lists the live intervals logged on id itself, newest first.
func (t *Tracker) TaskIntervals(ctx context.Context, id int64) ([]*model.Interval, error) {
	if _, err := t.node(ctx, id); err != nil {
		return nil, err
	}
	return orm.Query[*model.Interval](ctx, t.st, orm.Where(orm.And(
		orm.Eq(model.IntervalNodeID, orm.Int(id)),
		orm.Ne(model.IntervalDeleted, orm.Bool(true)),
	)).Sort(model.IntervalBegin, orm.Desc))
}
