package history

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Joseda-hg/lazytime/internal/orm"
)

// Recorder is the journal surface the Watcher writes to.
type Recorder interface {
	PushRecord(ctx context.Context, r Record) error
	EntityUUID(ctx context.Context, entityID int64, entityType string) (uuid.UUID, error)
}

// Watcher decorates a Storage, journaling every save and removal under a
// stable UUID per entity. Reads pass straight through.
type Watcher struct {
	inner   orm.Storage
	journal Recorder
	now     func() time.Time
	log     *slog.Logger
}

var _ orm.Storage = (*Watcher)(nil)

type Option func(*Watcher)

func WithLogger(log *slog.Logger) Option {
	return func(w *Watcher) {
		if log != nil {
			w.log = log
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(w *Watcher) { w.now = now }
}

func NewWatcher(inner orm.Storage, journal Recorder, opts ...Option) *Watcher {
	w := &Watcher{
		inner:   inner,
		journal: journal,
		now:     time.Now,
		log:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Watcher) Save(ctx context.Context, r orm.Record) (int64, error) {
	id, err := w.inner.Save(ctx, r)
	if err != nil {
		return 0, err
	}

	kind := Update
	uid, err := w.journal.EntityUUID(ctx, id, r.TypeName())
	switch {
	case errors.Is(err, orm.ErrIsEmpty):
		uid, kind = uuid.New(), Create
	case err != nil:
		return 0, err
	}

	if err := w.push(ctx, uid, kind, r.TypeName(), id); err != nil {
		return 0, err
	}
	return id, nil
}

func (w *Watcher) GetByStatement(ctx context.Context, proto orm.Record, s orm.Statement) ([]orm.Record, error) {
	return w.inner.GetByStatement(ctx, proto, s)
}

func (w *Watcher) GetAll(ctx context.Context, proto orm.Record) ([]orm.Record, error) {
	return w.inner.GetAll(ctx, proto)
}

// RemoveByFilter journals a Delete for every live row the filter matches.
// Every such row must have been journaled before.
func (w *Watcher) RemoveByFilter(ctx context.Context, proto orm.Record, f orm.Filter) (int64, error) {
	if f == nil {
		return 0, orm.Unexpectedf("remove from %s without a filter", orm.TableName(proto))
	}
	rows, err := w.inner.GetByStatement(ctx, proto, orm.Where(f))
	if err != nil {
		return 0, err
	}
	n, err := w.inner.RemoveByFilter(ctx, proto, f)
	if err != nil {
		return 0, err
	}

	for _, row := range rows {
		deleted, err := row.Get("deleted").AsBool()
		if err != nil {
			return 0, err
		}
		if deleted {
			continue
		}
		id, err := orm.RecordID(row)
		if err != nil {
			return 0, err
		}
		uid, err := w.journal.EntityUUID(ctx, id, row.TypeName())
		if errors.Is(err, orm.ErrIsEmpty) {
			return 0, orm.Unexpectedf("%s %d was never recorded in history", row.TypeName(), id)
		}
		if err != nil {
			return 0, err
		}
		if err := w.push(ctx, uid, Delete, row.TypeName(), id); err != nil {
			return 0, err
		}
	}
	return n, nil
}

func (w *Watcher) push(ctx context.Context, uid uuid.UUID, kind RecordType, entityType string, id int64) error {
	w.log.DebugContext(ctx, "history record", "type", kind, "entity", entityType, "id", id, "uuid", uid)
	return w.journal.PushRecord(ctx, Record{
		Date:       w.now().UTC(),
		UUID:       uid,
		Type:       kind,
		EntityType: entityType,
		EntityID:   id,
	})
}
