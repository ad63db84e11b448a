package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Joseda-hg/lazytime/internal/config"
	"github.com/Joseda-hg/lazytime/internal/core"
	"github.com/Joseda-hg/lazytime/internal/db"
	"github.com/Joseda-hg/lazytime/internal/history"
	"github.com/Joseda-hg/lazytime/internal/model"
	"github.com/Joseda-hg/lazytime/internal/orm"
)

// ErrHistoryDisabled is returned by journal reads when no history database
// exists.
var ErrHistoryDisabled = errors.New("history is not enabled, run `lazytime history enable`")

// Env holds the open databases of one process. Whether writes are journaled
// is decided once, when the Env is opened.
type Env struct {
	primary     *sql.DB
	history     *sql.DB
	historyPath string
	log         *slog.Logger
	now         func() time.Time
}

type Option func(*Env)

func WithLogger(log *slog.Logger) Option {
	return func(e *Env) {
		if log != nil {
			e.log = log
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Env) { e.now = now }
}

// Open opens the primary database, and the history database when its file
// exists.
func Open(cfg config.Config, opts ...Option) (*Env, error) {
	e := &Env{
		historyPath: cfg.HistoryDBPath,
		log:         slog.New(slog.DiscardHandler),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	if cfg.DBPath != ":memory:" {
		if err := config.EnsureDir(cfg.DBPath); err != nil {
			return nil, err
		}
	}
	primary, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.DBPath, err)
	}
	e.primary = primary

	exists, err := history.Exists(cfg.HistoryDBPath)
	if err != nil {
		_ = primary.Close()
		return nil, err
	}
	if exists {
		if e.history, err = history.Open(cfg.HistoryDBPath); err != nil {
			_ = primary.Close()
			return nil, fmt.Errorf("open %s: %w", cfg.HistoryDBPath, err)
		}
	}
	e.log.Debug("opened databases", "db", cfg.DBPath, "history", exists)
	return e, nil
}

func (e *Env) Close() error {
	var errs []error
	if e.history != nil {
		errs = append(errs, e.history.Close())
	}
	errs = append(errs, e.primary.Close())
	return errors.Join(errs...)
}

func (e *Env) HistoryEnabled() bool {
	return e.history != nil
}

// Update runs fn in one transaction per database, committing only when fn
// succeeds. The journal is committed first.
func (e *Env) Update(ctx context.Context, fn func(*core.Tracker) error) error {
	return e.run(ctx, true, fn)
}

// View runs fn like Update but always rolls back.
func (e *Env) View(ctx context.Context, fn func(*core.Tracker) error) error {
	return e.run(ctx, false, fn)
}

func (e *Env) run(ctx context.Context, commit bool, fn func(*core.Tracker) error) error {
	tx, err := e.primary.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var st orm.Storage = db.NewStore(tx, db.WithLogger(e.log))

	var htx *sql.Tx
	if e.history != nil {
		if htx, err = e.history.BeginTx(ctx, nil); err != nil {
			return fmt.Errorf("begin history transaction: %w", err)
		}
		defer func() { _ = htx.Rollback() }()
		journal := history.NewJournal(htx, db.WithLogger(e.log))
		st = history.NewWatcher(st, journal, history.WithLogger(e.log), history.WithClock(e.now))
	}

	if err := fn(core.New(st, core.WithLogger(e.log), core.WithClock(e.now))); err != nil {
		return err
	}
	if !commit {
		return nil
	}

	if htx != nil {
		if err := htx.Commit(); err != nil {
			return fmt.Errorf("commit history: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Journal runs fn against the history journal in a read-only transaction.
func (e *Env) Journal(ctx context.Context, fn func(*history.Journal) error) error {
	if e.history == nil {
		return ErrHistoryDisabled
	}
	tx, err := e.history.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin history transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	return fn(history.NewJournal(tx, db.WithLogger(e.log)))
}

// EnableHistory creates the history database and journals a Create for every
// existing row. It returns the number of rows backfilled. Calling it again
// only backfills rows that are still missing.
func (e *Env) EnableHistory(ctx context.Context) (int, error) {
	if e.history == nil {
		if e.historyPath == "" || e.historyPath == ":memory:" {
			return 0, fmt.Errorf("history db path %q cannot hold a journal", e.historyPath)
		}
		if err := config.EnsureDir(e.historyPath); err != nil {
			return 0, err
		}
		conn, err := history.Open(e.historyPath)
		if err != nil {
			return 0, err
		}
		e.history = conn
	}

	written := 0
	err := db.InTx(ctx, e.history, func(htx *sql.Tx) error {
		return db.InTx(ctx, e.primary, func(tx *sql.Tx) error {
			var err error
			written, err = history.Backfill(ctx, db.NewStore(tx), history.NewJournal(htx), e.now,
				&model.Node{}, &model.Interval{})
			return err
		})
	})
	if err != nil {
		return 0, err
	}
	e.log.Info("history enabled", "path", e.historyPath, "backfilled", written)
	return written, nil
}
