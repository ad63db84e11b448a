package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Joseda-hg/lazytime/internal/db"
	"github.com/Joseda-hg/lazytime/internal/model"
	"github.com/Joseda-hg/lazytime/internal/orm"
)

type testClock struct {
	at time.Time
}

func (c *testClock) now() time.Time { return c.at }

func (c *testClock) advance(d time.Duration) { c.at = c.at.Add(d) }

func newTestTracker(t *testing.T) (*Tracker, *testClock) {
	t.Helper()
	conn, err := db.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	clock := &testClock{at: time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)}
	return New(db.NewStore(conn), WithClock(clock.now)), clock
}

func labels(path []model.Node) []string {
	res := make([]string, len(path))
	for i, n := range path {
		res[i] = n.Label
	}
	return res
}

func TestCreatePathReusesPrefix(t *testing.T) {
	tr, _ := newTestTracker(t)
	ctx := context.Background()

	first, err := tr.CreatePath(ctx, []string{"work", "client", "meeting"})
	require.NoError(t, err)
	require.Len(t, first, 3)

	second, err := tr.CreatePath(ctx, []string{"work", "client", "review"})
	require.NoError(t, err)
	require.Len(t, second, 3)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, first[1].ID, second[1].ID)
	assert.NotEqual(t, first[2].ID, second[2].ID)

	all, err := orm.GetAll[*model.Node](ctx, tr.Storage())
	require.NoError(t, err)
	assert.Len(t, all, 4)

	_, err = tr.CreatePath(ctx, nil)
	require.ErrorIs(t, err, ErrEmptyPath)
}

func TestCreatePathRestoresDeletedPrefix(t *testing.T) {
	tr, _ := newTestTracker(t)
	ctx := context.Background()

	path, err := tr.CreatePath(ctx, []string{"home", "garden"})
	require.NoError(t, err)
	_, _, err = tr.RemoveNode(ctx, path[0].ID)
	require.NoError(t, err)

	again, err := tr.CreatePath(ctx, []string{"home", "garden"})
	require.NoError(t, err)
	assert.Equal(t, path[0].ID, again[0].ID)
	assert.Equal(t, path[1].ID, again[1].ID)
	assert.False(t, again[0].Deleted)
	assert.False(t, again[1].Deleted)

	stored, err := orm.GetByID[*model.Node](ctx, tr.Storage(), path[1].ID)
	require.NoError(t, err)
	assert.False(t, stored.Deleted)
}

func TestAncestors(t *testing.T) {
	tr, _ := newTestTracker(t)
	ctx := context.Background()

	path, err := tr.CreatePath(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)

	got, err := tr.Ancestors(ctx, path[2].ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, labels(got))

	_, err = tr.Ancestors(ctx, 99)
	require.ErrorIs(t, err, ErrTaskNotFound)
}

func TestStartRejectsSecondStart(t *testing.T) {
	tr, clock := newTestTracker(t)
	ctx := context.Background()

	first, err := tr.Start(ctx, []string{"work", "email"})
	require.NoError(t, err)
	assert.Equal(t, []string{"work", "email"}, labels(first.Path))

	clock.advance(time.Minute)
	_, err = tr.Start(ctx, []string{"home"})
	var running *RunningError
	require.True(t, errors.As(err, &running), "got %v", err)
	assert.Equal(t, first.Interval.ID, running.Interval.ID)

	open, err := orm.GetByFilter[*model.Interval](ctx, tr.Storage(), orm.Eq(model.IntervalEnd, orm.Null()))
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, first.Interval.ID, open[0].ID)

	home, err := tr.FindPath(ctx, []string{"home"})
	require.NoError(t, err)
	assert.Empty(t, home, "rejected start must not create tasks")
}

func TestStopCancelRestart(t *testing.T) {
	tr, clock := newTestTracker(t)
	ctx := context.Background()

	_, err := tr.Stop(ctx)
	require.ErrorIs(t, err, ErrNoRunning)
	_, err = tr.Restart(ctx)
	require.ErrorIs(t, err, ErrNothingToRestart)

	started, err := tr.Start(ctx, []string{"code"})
	require.NoError(t, err)
	clock.advance(30 * time.Minute)

	stopped, err := tr.Stop(ctx)
	require.NoError(t, err)
	require.NotNil(t, stopped.Interval.End)
	assert.Equal(t, 30*time.Minute, stopped.Interval.Duration(clock.now()))

	clock.advance(time.Hour)
	restarted, err := tr.Restart(ctx)
	require.NoError(t, err)
	assert.Equal(t, started.Task().ID, restarted.Task().ID)
	assert.NotEqual(t, started.Interval.ID, restarted.Interval.ID)
	assert.True(t, restarted.Interval.Begin.Equal(clock.now()))

	node, cur, err := tr.CurRunning(ctx)
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Equal(t, restarted.Interval.ID, cur.ID)
	assert.Equal(t, "code", node.Label)

	canceled, err := tr.Cancel(ctx)
	require.NoError(t, err)
	assert.True(t, canceled.Interval.Deleted)

	_, cur, err = tr.CurRunning(ctx)
	require.NoError(t, err)
	assert.Nil(t, cur)

	_, last, err := tr.LastRunning(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, started.Interval.ID, last.ID)
}

func TestRemoveNodeCascadeCounts(t *testing.T) {
	tr, clock := newTestTracker(t)
	ctx := context.Background()

	// root with descendants a, a::x, b: N = 3.
	for _, p := range [][]string{{"root", "a", "x"}, {"root", "b"}, {"root"}, {"root", "a"}} {
		_, err := tr.Start(ctx, p)
		require.NoError(t, err)
		clock.advance(time.Minute)
		_, err = tr.Stop(ctx)
		require.NoError(t, err)
	}
	other, err := tr.Start(ctx, []string{"other"})
	require.NoError(t, err)
	_, err = tr.Stop(ctx)
	require.NoError(t, err)

	// An already deleted interval is not counted again.
	_, err = tr.Start(ctx, []string{"root", "b"})
	require.NoError(t, err)
	_, err = tr.Cancel(ctx)
	require.NoError(t, err)

	root, err := tr.FindPath(ctx, []string{"root"})
	require.NoError(t, err)
	nodes, intervals, err := tr.RemoveNode(ctx, root[0].ID)
	require.NoError(t, err)
	assert.EqualValues(t, 4, nodes)
	assert.EqualValues(t, 4, intervals)

	live, err := orm.GetByFilter[*model.Interval](ctx, tr.Storage(), orm.Eq(model.IntervalDeleted, orm.Bool(false)))
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, other.Interval.ID, live[0].ID)

	liveNodes, err := orm.GetByFilter[*model.Node](ctx, tr.Storage(), LiveNodes)
	require.NoError(t, err)
	require.Len(t, liveNodes, 1)
	assert.Equal(t, "other", liveNodes[0].Label)
}

func TestFilteredForest(t *testing.T) {
	tr, _ := newTestTracker(t)
	ctx := context.Background()

	for _, p := range [][]string{{"work", "a"}, {"work", "b", "deep"}, {"home"}, {"gone", "child"}} {
		_, err := tr.CreatePath(ctx, p)
		require.NoError(t, err)
	}
	gone, err := tr.FindPath(ctx, []string{"gone"})
	require.NoError(t, err)
	_, _, err = tr.RemoveNode(ctx, gone[0].ID)
	require.NoError(t, err)

	forest, err := tr.FilteredForest(ctx, LiveNodes)
	require.NoError(t, err)

	var paths []string
	for p := range forest.LeafPaths() {
		paths = append(paths, model.PathString(p))
	}
	assert.ElementsMatch(t, []string{"work::a", "work::b::deep", "home"}, paths)
	assert.Equal(t, 5, forest.Len())

	empty, err := tr.FilteredForest(ctx, orm.Eq(model.NodeLabel, orm.Text("nothing")))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestFilteredForestByTag(t *testing.T) {
	tr, _ := newTestTracker(t)
	ctx := context.Background()

	path, err := tr.CreatePath(ctx, []string{"work", "billing"})
	require.NoError(t, err)
	_, err = tr.CreatePath(ctx, []string{"work", "misc"})
	require.NoError(t, err)

	_, err = tr.Tag(ctx, []int64{path[1].ID}, []string{"Client"})
	require.NoError(t, err)

	forest, err := tr.FilteredForest(ctx, orm.AllOf(LiveNodes, model.TagFilter("client")))
	require.NoError(t, err)
	var leaves []string
	for p := range forest.LeafPaths() {
		leaves = append(leaves, model.PathString(p))
	}
	assert.Equal(t, []string{"work::billing"}, leaves)

	nodes, err := tr.Untag(ctx, []int64{path[1].ID}, []string{"client"})
	require.NoError(t, err)
	assert.Empty(t, nodes[0].Tags)
}

func TestTagCurrentTask(t *testing.T) {
	tr, _ := newTestTracker(t)
	ctx := context.Background()

	_, err := tr.Tag(ctx, []int64{0}, []string{"x"})
	require.ErrorIs(t, err, ErrNoRunning)

	started, err := tr.Start(ctx, []string{"task"})
	require.NoError(t, err)
	nodes, err := tr.Tag(ctx, []int64{0}, []string{"b", "a"})
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, started.Task().ID, nodes[0].ID)
	assert.Equal(t, ",a,b,", nodes[0].Tags)
}

func TestRenameAndMove(t *testing.T) {
	tr, _ := newTestTracker(t)
	ctx := context.Background()

	ab, err := tr.CreatePath(ctx, []string{"a", "b"})
	require.NoError(t, err)
	c, err := tr.CreatePath(ctx, []string{"c"})
	require.NoError(t, err)

	path, err := tr.Rename(ctx, ab[1].ID, "  bee ")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "bee"}, labels(path))

	_, err = tr.Rename(ctx, ab[1].ID, "x::y")
	require.ErrorIs(t, err, ErrInvalidLabel)

	path, err = tr.Move(ctx, ab[1].ID, c[0].ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "bee"}, labels(path))

	path, err = tr.Move(ctx, ab[1].ID, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"bee"}, labels(path))

	_, err = tr.Move(ctx, c[0].ID, c[0].ID)
	require.ErrorIs(t, err, ErrInvalidMove)

	_, err = tr.Move(ctx, ab[0].ID, 0)
	require.NoError(t, err)
	_, err = tr.Move(ctx, c[0].ID, ab[0].ID)
	require.NoError(t, err)
	_, err = tr.Move(ctx, ab[0].ID, c[0].ID)
	require.ErrorIs(t, err, ErrInvalidMove, "a is the parent of c")

	_, err = tr.CreatePath(ctx, []string{"bee2"})
	require.NoError(t, err)
	_, err = tr.Rename(ctx, ab[1].ID, "bee2")
	require.ErrorIs(t, err, ErrDuplicateTask)
}

func TestMerge(t *testing.T) {
	tr, clock := newTestTracker(t)
	ctx := context.Background()

	from, err := tr.Start(ctx, []string{"typo"})
	require.NoError(t, err)
	clock.advance(time.Minute)
	_, err = tr.Stop(ctx)
	require.NoError(t, err)
	to, err := tr.CreatePath(ctx, []string{"right"})
	require.NoError(t, err)

	res, err := tr.Merge(ctx, from.Task().ID, to[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Moved)

	moved, err := orm.GetByID[*model.Interval](ctx, tr.Storage(), from.Interval.ID)
	require.NoError(t, err)
	assert.Equal(t, to[0].ID, *moved.NodeID)
}

func TestDeleteTaskGuards(t *testing.T) {
	tr, _ := newTestTracker(t)
	ctx := context.Background()

	running, err := tr.Start(ctx, []string{"group", "leaf"})
	require.NoError(t, err)
	other, err := tr.CreatePath(ctx, []string{"other", "sub"})
	require.NoError(t, err)

	_, err = tr.DeleteTask(ctx, running.Task().ID)
	require.ErrorIs(t, err, ErrTaskRunning)
	_, err = tr.DeleteTask(ctx, other[0].ID)
	require.ErrorIs(t, err, ErrTaskRunning, "groups wait until nothing runs")

	res, err := tr.DeleteTask(ctx, other[1].ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Nodes)

	_, err = tr.DeleteTask(ctx, other[1].ID)
	require.ErrorIs(t, err, ErrTaskDeleted)
	_, err = tr.DeleteTask(ctx, 404)
	require.ErrorIs(t, err, ErrTaskNotFound)
}

func TestDeleteIntervalByOffset(t *testing.T) {
	tr, clock := newTestTracker(t)
	ctx := context.Background()

	var ids []int64
	for _, name := range []string{"one", "two", "three"} {
		a, err := tr.Start(ctx, []string{name})
		require.NoError(t, err)
		clock.advance(time.Minute)
		_, err = tr.Stop(ctx)
		require.NoError(t, err)
		ids = append(ids, a.Interval.ID)
	}

	deleted, err := tr.DeleteInterval(ctx, -2)
	require.NoError(t, err)
	assert.Equal(t, ids[1], deleted.Interval.ID)
	assert.Equal(t, "two", deleted.Task().Label)

	_, err = tr.DeleteInterval(ctx, ids[1])
	require.ErrorIs(t, err, ErrIntervalNotFound)
	_, err = tr.DeleteInterval(ctx, -3)
	require.ErrorIs(t, err, ErrIntervalNotFound)

	deleted, err = tr.DeleteInterval(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, "one", deleted.Task().Label)

	list, err := tr.Intervals(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, ids[2], list[0].Interval.ID)
}

func TestTotalClipsToPeriod(t *testing.T) {
	tr, clock := newTestTracker(t)
	ctx := context.Background()
	day := clock.now()

	_, err := tr.Start(ctx, []string{"work", "a"})
	require.NoError(t, err)
	clock.advance(2 * time.Hour)
	_, err = tr.Stop(ctx)
	require.NoError(t, err)

	_, err = tr.Start(ctx, []string{"work"})
	require.NoError(t, err)
	clock.advance(time.Hour)
	_, err = tr.Stop(ctx)
	require.NoError(t, err)

	_, err = tr.Start(ctx, []string{"home"})
	require.NoError(t, err)
	clock.advance(30 * time.Minute)

	report, err := tr.Total(ctx, day.Add(time.Hour), clock.now().Add(time.Hour))
	require.NoError(t, err)

	require.Len(t, report.Rows, 3)
	assert.Equal(t, "home", report.Rows[0].Node.Label)
	assert.Equal(t, 30*time.Minute, report.Rows[0].Total)

	assert.Equal(t, "work", report.Rows[1].Node.Label)
	assert.Equal(t, time.Hour, report.Rows[1].Own)
	assert.Equal(t, 2*time.Hour, report.Rows[1].Total)

	assert.Equal(t, "a", report.Rows[2].Node.Label)
	assert.Equal(t, 1, report.Rows[2].Depth)
	assert.Equal(t, time.Hour, report.Rows[2].Own)

	assert.Equal(t, 150*time.Minute, report.Total)
}

func TestTaskIntervals(t *testing.T) {
	tr, clock := newTestTracker(t)
	ctx := context.Background()

	started, err := tr.Start(ctx, []string{"work"})
	require.NoError(t, err)
	clock.advance(time.Minute)
	_, err = tr.Cancel(ctx)
	require.NoError(t, err)
	_, err = tr.Start(ctx, []string{"work"})
	require.NoError(t, err)

	intervals, err := tr.TaskIntervals(ctx, started.Task().ID)
	require.NoError(t, err)
	require.Len(t, intervals, 1)
	assert.True(t, intervals[0].Running())

	_, err = tr.TaskIntervals(ctx, 99)
	require.ErrorIs(t, err, ErrTaskNotFound)
}

func TestAddTime(t *testing.T) {
	tr, clock := newTestTracker(t)
	ctx := context.Background()

	nodes, err := tr.CreatePath(ctx, []string{"fresh"})
	require.NoError(t, err)
	a, extended, err := tr.Add(ctx, nodes[0].ID, 20*time.Minute)
	require.NoError(t, err)
	assert.False(t, extended)
	assert.Equal(t, 20*time.Minute, a.Interval.Duration(clock.now()))

	clock.advance(time.Hour)
	_, err = tr.Start(ctx, []string{"work"})
	require.NoError(t, err)
	clock.advance(10 * time.Minute)

	a, extended, err = tr.Add(ctx, 0, 5*time.Minute)
	require.NoError(t, err)
	assert.True(t, extended)
	assert.True(t, a.Interval.Running())
	assert.Equal(t, 15*time.Minute, a.Interval.Duration(clock.now()))

	_, _, err = tr.Add(ctx, 0, time.Hour)
	require.ErrorIs(t, err, ErrIntervalOverlap, "would cover the fresh interval")

	_, err = tr.Stop(ctx)
	require.NoError(t, err)
	clock.advance(time.Minute)

	a, _, err = tr.Add(ctx, 0, 3*time.Minute)
	require.NoError(t, err)
	require.NotNil(t, a.Interval.End)
	assert.True(t, a.Interval.End.Equal(clock.now()), "end is capped at now")
	assert.Equal(t, 18*time.Minute, a.Interval.Duration(clock.now()))

	_, _, err = tr.Add(ctx, 0, 0)
	require.Error(t, err)
}

func TestTruncate(t *testing.T) {
	tr, clock := newTestTracker(t)
	ctx := context.Background()

	_, err := tr.Truncate(ctx, 0, time.Minute)
	require.ErrorIs(t, err, ErrNothingToRestart)

	started, err := tr.Start(ctx, []string{"work"})
	require.NoError(t, err)
	clock.advance(30 * time.Minute)
	_, err = tr.Truncate(ctx, 0, time.Minute)
	require.ErrorIs(t, err, ErrIntervalRunning)

	_, err = tr.Stop(ctx)
	require.NoError(t, err)
	_, err = tr.Truncate(ctx, started.Task().ID, time.Hour)
	require.ErrorIs(t, err, ErrIntervalTooShort)

	a, err := tr.Truncate(ctx, started.Task().ID, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 20*time.Minute, a.Interval.Duration(clock.now()))
}

func TestCurRunningPicksLatestBegin(t *testing.T) {
	tr, clock := newTestTracker(t)
	ctx := context.Background()

	a, err := tr.CreatePath(ctx, []string{"a"})
	require.NoError(t, err)
	b, err := tr.CreatePath(ctx, []string{"b"})
	require.NoError(t, err)

	// Two open intervals, the later one inserted first.
	_, err = tr.st.Save(ctx, model.NewInterval(b[0].ID, clock.now()))
	require.NoError(t, err)
	_, err = tr.st.Save(ctx, model.NewInterval(a[0].ID, clock.now().Add(-time.Hour)))
	require.NoError(t, err)

	node, cur, err := tr.CurRunning(ctx)
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Equal(t, "b", node.Label)
	assert.True(t, cur.Begin.Equal(clock.now()))
}
