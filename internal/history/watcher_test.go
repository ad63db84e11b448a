package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Joseda-hg/lazytime/internal/db"
	"github.com/Joseda-hg/lazytime/internal/model"
	"github.com/Joseda-hg/lazytime/internal/orm"
)

type fixture struct {
	inner   *db.Store
	journal *Journal
	watcher *Watcher
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	primary, err := db.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = primary.Close() })

	hist, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = hist.Close() })

	inner := db.NewStore(primary)
	journal := NewJournal(hist)
	clock := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	return fixture{
		inner:   inner,
		journal: journal,
		watcher: NewWatcher(inner, journal, WithClock(func() time.Time { return clock })),
	}
}

func TestWatcherSaveRecordsCreateThenUpdate(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	node := model.NewNode("task", nil)
	id, err := fx.watcher.Save(ctx, node)
	require.NoError(t, err)
	node.ID = id
	node.Label = "renamed"
	again, err := fx.watcher.Save(ctx, node)
	require.NoError(t, err)
	require.Equal(t, id, again)

	records, err := fx.journal.Records(ctx, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, Update, records[0].Type)
	assert.Equal(t, Create, records[1].Type)
	assert.Equal(t, records[0].UUID, records[1].UUID)
	assert.Equal(t, "node", records[1].EntityType)
	assert.Equal(t, id, records[1].EntityID)
	assert.True(t, records[1].Date.Equal(time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)))
}

func TestWatcherKeepsTypesApart(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	nodeID, err := fx.watcher.Save(ctx, model.NewNode("task", nil))
	require.NoError(t, err)
	intervalID, err := fx.watcher.Save(ctx, model.NewInterval(nodeID, time.Now()))
	require.NoError(t, err)
	require.Equal(t, nodeID, intervalID, "first row of each table")

	nodeUUID, err := fx.journal.EntityUUID(ctx, nodeID, "node")
	require.NoError(t, err)
	intervalUUID, err := fx.journal.EntityUUID(ctx, intervalID, "interval")
	require.NoError(t, err)
	assert.NotEqual(t, nodeUUID, intervalUUID)
}

func TestWatcherRemoveRecordsDeletes(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	root, err := fx.watcher.Save(ctx, model.NewNode("root", nil))
	require.NoError(t, err)
	_, err = fx.watcher.Save(ctx, model.NewNode("a", &root))
	require.NoError(t, err)
	_, err = fx.watcher.Save(ctx, model.NewNode("b", &root))
	require.NoError(t, err)

	n, err := fx.watcher.RemoveByFilter(ctx, &model.Node{}, orm.Eq(model.NodeParentID, orm.Int(root)))
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	records, err := fx.journal.Records(ctx, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, r := range records {
		assert.Equal(t, Delete, r.Type)
	}

	// Already deleted rows are not journaled twice.
	_, err = fx.watcher.RemoveByFilter(ctx, &model.Node{}, orm.Eq(model.NodeParentID, orm.Int(root)))
	require.NoError(t, err)
	all, err := fx.journal.Records(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestWatcherRemoveUnobservedRowFails(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	id, err := fx.inner.Save(ctx, model.NewNode("untracked", nil))
	require.NoError(t, err)

	_, err = fx.watcher.RemoveByFilter(ctx, &model.Node{}, orm.Eq(model.NodeID, orm.Int(id)))
	require.ErrorIs(t, err, orm.ErrUnexpected)
}

func TestBackfillMakesRowsDeletable(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	id, err := fx.inner.Save(ctx, model.NewNode("old", nil))
	require.NoError(t, err)
	_, err = fx.inner.Save(ctx, model.NewInterval(id, time.Now()))
	require.NoError(t, err)

	written, err := Backfill(ctx, fx.inner, fx.journal, time.Now, &model.Node{}, &model.Interval{})
	require.NoError(t, err)
	assert.Equal(t, 2, written)

	written, err = Backfill(ctx, fx.inner, fx.journal, time.Now, &model.Node{}, &model.Interval{})
	require.NoError(t, err)
	assert.Zero(t, written)

	_, err = fx.watcher.RemoveByFilter(ctx, &model.Node{}, orm.Eq(model.NodeID, orm.Int(id)))
	require.NoError(t, err)

	uid, err := fx.journal.EntityUUID(ctx, id, "node")
	require.NoError(t, err)
	events, err := fx.journal.Entity(ctx, uid)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, Create, events[0].Type)
	assert.Equal(t, Delete, events[1].Type)
}

func TestExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	ok, err := Exists(path)
	require.NoError(t, err)
	assert.False(t, ok)

	conn, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	ok, err = Exists(path)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEntityUUIDMissing(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.journal.EntityUUID(context.Background(), 1, "node")
	require.ErrorIs(t, err, orm.ErrIsEmpty)
}

// textFlagNode reports its deleted flag as text, which is not a bool.
type textFlagNode struct{ model.Node }

func (n *textFlagNode) Get(field string) orm.Value {
	if field == model.NodeDeleted {
		return orm.Text("maybe")
	}
	return n.Node.Get(field)
}

// fixedRows serves rows for every lookup and pretends to remove them.
type fixedRows struct {
	orm.Storage
	rows []orm.Record
}

func (s fixedRows) GetByStatement(context.Context, orm.Record, orm.Statement) ([]orm.Record, error) {
	return s.rows, nil
}

func (s fixedRows) RemoveByFilter(context.Context, orm.Record, orm.Filter) (int64, error) {
	return int64(len(s.rows)), nil
}

func TestWatcherRemoveRejectsBadDeletedFlag(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	row := &textFlagNode{Node: *model.NewNode("odd", nil)}
	row.ID = 7
	watcher := NewWatcher(fixedRows{Storage: fx.inner, rows: []orm.Record{row}}, fx.journal)

	_, err := watcher.RemoveByFilter(ctx, &model.Node{}, orm.Eq(model.NodeID, orm.Int(7)))
	require.ErrorIs(t, err, orm.ErrConvert)

	records, err := fx.journal.Records(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, records)
}
