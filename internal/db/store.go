package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/Joseda-hg/lazytime/internal/orm"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Store runs translated statements against sqlite. It implements orm.Storage.
type Store struct {
	db  DBTX
	log *slog.Logger
}

var _ orm.Storage = (*Store)(nil)

type Option func(*Store)

func WithLogger(log *slog.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

func NewStore(db DBTX, opts ...Option) *Store {
	s := &Store{db: db, log: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Save(ctx context.Context, r orm.Record) (int64, error) {
	query, args, id, err := orm.SaveSQL(r)
	if err != nil {
		return 0, err
	}
	s.log.DebugContext(ctx, "save", "table", orm.TableName(r), "sql", query)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, orm.Wrap(fmt.Errorf("save %s: %w", r.TypeName(), err))
	}
	if id > 0 {
		return id, nil
	}

	id, err = res.LastInsertId()
	if err != nil {
		return 0, orm.Wrap(fmt.Errorf("read inserted %s id: %w", r.TypeName(), err))
	}
	return id, nil
}

func (s *Store) GetByStatement(ctx context.Context, proto orm.Record, st orm.Statement) ([]orm.Record, error) {
	query, err := orm.SelectSQL(st, proto)
	if err != nil {
		return nil, err
	}
	return s.queryRows(ctx, proto, query)
}

func (s *Store) GetAll(ctx context.Context, proto orm.Record) ([]orm.Record, error) {
	return s.queryRows(ctx, proto, orm.SelectAllSQL(proto))
}

func (s *Store) RemoveByFilter(ctx context.Context, proto orm.Record, f orm.Filter) (int64, error) {
	query, err := orm.RemoveSQL(proto, f)
	if err != nil {
		return 0, err
	}
	s.log.DebugContext(ctx, "remove", "table", orm.TableName(proto), "sql", query)

	res, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return 0, orm.Wrap(fmt.Errorf("remove from %s: %w", orm.TableName(proto), err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, orm.Wrap(fmt.Errorf("count removed %s rows: %w", proto.TypeName(), err))
	}
	return n, nil
}

// queryRows maps every result row onto a fresh record, assigning columns to
// proto's fields by position.
func (s *Store) queryRows(ctx context.Context, proto orm.Record, query string) ([]orm.Record, error) {
	s.log.DebugContext(ctx, "query", "table", orm.TableName(proto), "sql", query)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, orm.Wrap(fmt.Errorf("query %s: %w", orm.TableName(proto), err))
	}
	defer rows.Close()

	fields := proto.Fields()
	raw := make([]any, len(fields))
	dest := make([]any, len(fields))
	for i := range raw {
		dest[i] = &raw[i]
	}

	var res []orm.Record
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, orm.Wrap(fmt.Errorf("scan %s row: %w", proto.TypeName(), err))
		}
		rec := proto.New()
		for i, field := range fields {
			v, err := orm.FromRaw(raw[i])
			if err != nil {
				return nil, err
			}
			if err := rec.Set(field, v); err != nil {
				return nil, err
			}
		}
		res = append(res, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, orm.Wrap(fmt.Errorf("iterate %s rows: %w", proto.TypeName(), err))
	}
	return res, nil
}
