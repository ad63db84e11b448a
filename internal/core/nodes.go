package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/Joseda-hg/lazytime/internal/model"
	"github.com/Joseda-hg/lazytime/internal/orm"
)

// LiveNodes matches nodes that are not deleted.
var LiveNodes = orm.Eq(model.NodeDeleted, orm.Bool(false))

func (t *Tracker) node(ctx context.Context, id int64) (*model.Node, error) {
	n, err := orm.GetByID[*model.Node](ctx, t.st, id)
	if errors.Is(err, orm.ErrIsEmpty) {
		return nil, fmt.Errorf("%w: id %d", ErrTaskNotFound, id)
	}
	return n, err
}

// findPathPart looks up the child of parentID named label, deleted or not.
func (t *Tracker) findPathPart(ctx context.Context, label string, parentID *int64) (*model.Node, error) {
	nodes, err := orm.GetByFilter[*model.Node](ctx, t.st, orm.And(
		orm.Eq(model.NodeParentID, orm.OptInt(parentID)),
		orm.Eq(model.NodeLabel, orm.Text(label)),
	))
	if err != nil {
		return nil, err
	}
	switch len(nodes) {
	case 0:
		return nil, nil
	case 1:
		return nodes[0], nil
	default:
		return nil, orm.Unexpectedf("%d tasks named %q under the same parent", len(nodes), label)
	}
}

// FindPath returns the longest existing prefix of path.
func (t *Tracker) FindPath(ctx context.Context, path []string) ([]model.Node, error) {
	var res []model.Node
	var parent *int64
	for _, label := range path {
		n, err := t.findPathPart(ctx, label, parent)
		if err != nil {
			return nil, err
		}
		if n == nil {
			break
		}
		res = append(res, *n)
		parent = &n.ID
	}
	return res, nil
}

// CreatePath reuses the existing prefix of path, restoring deleted prefix
// nodes, and inserts the rest. It returns the whole path.
func (t *Tracker) CreatePath(ctx context.Context, path []string) ([]model.Node, error) {
	if len(path) == 0 {
		return nil, ErrEmptyPath
	}
	for _, label := range path {
		if err := validateLabel(label); err != nil {
			return nil, err
		}
	}

	nodes, err := t.FindPath(ctx, path)
	if err != nil {
		return nil, err
	}
	for i := range nodes {
		if !nodes[i].Deleted {
			continue
		}
		nodes[i].Deleted = false
		if _, err := t.st.Save(ctx, &nodes[i]); err != nil {
			return nil, err
		}
		t.log.DebugContext(ctx, "restored task", "id", nodes[i].ID, "label", nodes[i].Label)
	}

	var parent *int64
	if len(nodes) > 0 {
		parent = &nodes[len(nodes)-1].ID
	}
	for _, label := range path[len(nodes):] {
		n := model.NewNode(label, parent)
		n.Created = t.clock()
		id, err := t.st.Save(ctx, n)
		if err != nil {
			return nil, err
		}
		n.ID = id
		nodes = append(nodes, *n)
		parent = &n.ID
		t.log.DebugContext(ctx, "created task", "id", id, "label", label)
	}
	return nodes, nil
}

// Ancestors returns the path from the top-level task down to id, inclusive.
func (t *Tracker) Ancestors(ctx context.Context, id int64) ([]model.Node, error) {
	closure, err := orm.Query[*model.Node](ctx, t.st,
		orm.Where(orm.Eq(model.NodeID, orm.Int(id))).RecursiveOn(model.NodeParentID))
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*model.Node, len(closure))
	for _, n := range closure {
		byID[n.ID] = n
	}

	var res []model.Node
	next := &id
	for next != nil {
		n, ok := byID[*next]
		if !ok {
			return nil, fmt.Errorf("%w: id %d", ErrTaskNotFound, *next)
		}
		if len(res) >= len(closure) {
			return nil, orm.Unexpectedf("task %d has a cyclic parent chain", id)
		}
		res = append(res, *n)
		next = n.ParentID
	}

	for i, j := 0, len(res)-1; i < j; i, j = i+1, j-1 {
		res[i], res[j] = res[j], res[i]
	}
	return res, nil
}

// HasChildren reports whether id has a live child.
func (t *Tracker) HasChildren(ctx context.Context, id int64) (bool, error) {
	children, err := orm.Query[*model.Node](ctx, t.st, orm.Where(orm.And(
		orm.Eq(model.NodeParentID, orm.Int(id)),
		orm.Ne(model.NodeDeleted, orm.Bool(true)),
	)).Limit(1))
	if err != nil {
		return false, err
	}
	return len(children) == 1, nil
}

// ListWithAncestors selects the leaf tasks matching f together with all of
// their ancestors, ordered by (parent_id, id).
func (t *Tracker) ListWithAncestors(ctx context.Context, f orm.Filter) ([]model.Node, error) {
	liveChild := orm.Exists(orm.FromTable(orm.TableName(&model.Node{})).Filter(orm.And(
		orm.Eq(model.NodeParentID, orm.Column(model.NodeID)),
		orm.Eq(model.NodeDeleted, orm.Bool(false)),
	)))
	stmt := orm.Where(orm.AllOf(f, orm.Not(liveChild))).
		RecursiveOn(model.NodeParentID).
		Sort(model.NodeParentID, orm.Asc).
		Sort(model.NodeID, orm.Asc)

	nodes, err := orm.Query[*model.Node](ctx, t.st, stmt)
	if err != nil {
		return nil, err
	}
	res := make([]model.Node, len(nodes))
	for i, n := range nodes {
		res[i] = *n
	}
	return res, nil
}

// FilteredForest builds the forest of leaf tasks matching f. It is empty
// when nothing matches.
func (t *Tracker) FilteredForest(ctx context.Context, f orm.Filter) (Forest, error) {
	nodes, err := t.ListWithAncestors(ctx, f)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, nil
	}
	return BuildForest(nodes), nil
}

func (t *Tracker) removeIntervals(ctx context.Context, nodeID int64) (int64, error) {
	return orm.Remove[*model.Interval](ctx, t.st, orm.And(
		orm.Eq(model.IntervalNodeID, orm.Int(nodeID)),
		orm.Ne(model.IntervalDeleted, orm.Bool(true)),
	))
}

func (t *Tracker) removeChildren(ctx context.Context, nodeID int64) (nodes, intervals int64, err error) {
	live := orm.And(
		orm.Eq(model.NodeParentID, orm.Int(nodeID)),
		orm.Ne(model.NodeDeleted, orm.Bool(true)),
	)
	children, err := orm.GetByFilter[*model.Node](ctx, t.st, live)
	if err != nil {
		return 0, 0, err
	}

	for _, child := range children {
		n, i, err := t.removeChildren(ctx, child.ID)
		if err != nil {
			return 0, 0, err
		}
		nodes += n
		intervals += i

		i, err = t.removeIntervals(ctx, child.ID)
		if err != nil {
			return 0, 0, err
		}
		intervals += i
	}

	n, err := orm.Remove[*model.Node](ctx, t.st, live)
	if err != nil {
		return 0, 0, err
	}
	return nodes + n, intervals, nil
}

// RemoveNode soft-deletes id, its descendants and all their live intervals.
// It returns how many nodes and intervals were deleted.
func (t *Tracker) RemoveNode(ctx context.Context, id int64) (nodes, intervals int64, err error) {
	nodes, intervals, err = t.removeChildren(ctx, id)
	if err != nil {
		return 0, 0, err
	}

	i, err := t.removeIntervals(ctx, id)
	if err != nil {
		return 0, 0, err
	}
	n, err := orm.Remove[*model.Node](ctx, t.st, orm.Eq(model.NodeID, orm.Int(id)))
	if err != nil {
		return 0, 0, err
	}
	t.log.InfoContext(ctx, "removed task", "id", id, "nodes", nodes+n, "intervals", intervals+i)
	return nodes + n, intervals + i, nil
}

// CurRunning returns the open interval and its task, or nils when idle.
func (t *Tracker) CurRunning(ctx context.Context) (*model.Node, *model.Interval, error) {
	intervals, err := orm.Query[*model.Interval](ctx, t.st, orm.Where(orm.And(
		orm.Eq(model.IntervalEnd, orm.Null()),
		orm.Eq(model.IntervalDeleted, orm.Bool(false)),
	)).Sort(model.IntervalBegin, orm.Asc).Sort(model.IntervalID, orm.Asc))
	if err != nil {
		return nil, nil, err
	}
	if len(intervals) == 0 {
		return nil, nil, nil
	}
	if len(intervals) > 1 {
		t.log.WarnContext(ctx, "more than one interval running", "count", len(intervals))
	}
	interval := intervals[len(intervals)-1]
	n, err := t.intervalNode(ctx, interval)
	if err != nil {
		return nil, nil, err
	}
	return n, interval, nil
}

// LastRunning returns the running interval if any, otherwise the one that
// ended most recently. Nils mean there are no intervals at all.
func (t *Tracker) LastRunning(ctx context.Context) (*model.Node, *model.Interval, error) {
	n, interval, err := t.CurRunning(ctx)
	if err != nil || interval != nil {
		return n, interval, err
	}

	intervals, err := orm.Query[*model.Interval](ctx, t.st,
		orm.Where(orm.Ne(model.IntervalDeleted, orm.Bool(true))).
			Sort(model.IntervalEnd, orm.Desc).
			Limit(1))
	if err != nil {
		return nil, nil, err
	}
	if len(intervals) == 0 {
		return nil, nil, nil
	}
	n, err = t.intervalNode(ctx, intervals[0])
	if err != nil {
		return nil, nil, err
	}
	return n, intervals[0], nil
}

func (t *Tracker) intervalNode(ctx context.Context, interval *model.Interval) (*model.Node, error) {
	if interval.NodeID == nil {
		return nil, orm.Unexpectedf("interval %d has no task", interval.ID)
	}
	n, err := orm.GetByID[*model.Node](ctx, t.st, *interval.NodeID)
	if errors.Is(err, orm.ErrIsEmpty) {
		return nil, orm.Unexpectedf("task with id=%d for interval with id=%d does not exist", *interval.NodeID, interval.ID)
	}
	return n, err
}

func (t *Tracker) activity(ctx context.Context, interval *model.Interval) (*Activity, error) {
	if interval.NodeID == nil {
		return nil, orm.Unexpectedf("interval %d has no task", interval.ID)
	}
	path, err := t.Ancestors(ctx, *interval.NodeID)
	if err != nil {
		return nil, err
	}
	return &Activity{Path: path, Interval: interval}, nil
}

// Running returns the open interval with its task path, or nil when idle.
func (t *Tracker) Running(ctx context.Context) (*Activity, error) {
	_, interval, err := t.CurRunning(ctx)
	if err != nil || interval == nil {
		return nil, err
	}
	return t.activity(ctx, interval)
}
