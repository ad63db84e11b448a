package history

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/google/uuid"

	"github.com/Joseda-hg/lazytime/internal/db"
	"github.com/Joseda-hg/lazytime/internal/orm"
)

//go:embed schema.sql
var schemaFS embed.FS

// Exists reports whether a history database has been created at path. The
// journal is only consulted when it has.
func Exists(path string) (bool, error) {
	if path == "" {
		return false, nil
	}
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat history db: %w", err)
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("history db path is required")
	}
	conn, err := db.OpenRaw(path)
	if err != nil {
		return nil, err
	}

	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("read history schema: %w", err)
	}
	if _, err := conn.ExecContext(context.Background(), string(schemaSQL)); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("apply history schema: %w", err)
	}
	return conn, nil
}

// Journal is the append-only log of changes.
type Journal struct {
	st orm.Storage
}

func NewJournal(conn db.DBTX, opts ...db.Option) *Journal {
	return &Journal{st: db.NewStore(conn, opts...)}
}

func (j *Journal) PushRecord(ctx context.Context, r Record) error {
	r.ID = 0
	if _, err := j.st.Save(ctx, &r); err != nil {
		return fmt.Errorf("push history record: %w", err)
	}
	return nil
}

// EntityUUID returns the identifier first recorded for the entity, failing
// with orm.ErrIsEmpty when it was never journaled.
func (j *Journal) EntityUUID(ctx context.Context, entityID int64, entityType string) (uuid.UUID, error) {
	res, err := orm.Query[*Record](ctx, j.st, orm.Where(orm.And(
		orm.Eq("entity_id", orm.Int(entityID)),
		orm.Eq("entity_type", orm.Text(entityType)),
	)).Sort("id", orm.Asc).Limit(1))
	if err != nil {
		return uuid.Nil, err
	}
	if len(res) == 0 {
		return uuid.Nil, orm.Emptyf("no entity found for id=%d and entity_type=%s", entityID, entityType)
	}
	return res[0].UUID, nil
}

// Records lists the newest records first. limit <= 0 lists everything.
func (j *Journal) Records(ctx context.Context, limit int) ([]*Record, error) {
	s := orm.SortBy("id", orm.Desc)
	if limit > 0 {
		s = s.Limit(limit)
	}
	return orm.Query[*Record](ctx, j.st, s)
}

// Entity lists every record of one entity in the order they were written.
func (j *Journal) Entity(ctx context.Context, id uuid.UUID) ([]*Record, error) {
	return orm.Query[*Record](ctx, j.st, orm.Where(orm.Eq("uuid", orm.Text(id.String()))).Sort("id", orm.Asc))
}
