package core

import (
	"log/slog"
	"time"

	"github.com/Joseda-hg/lazytime/internal/model"
	"github.com/Joseda-hg/lazytime/internal/orm"
)

// Tracker layers task-domain operations over a Storage. It holds no state of
// its own; every call reads what it needs.
type Tracker struct {
	st  orm.Storage
	now func() time.Time
	log *slog.Logger
}

type Option func(*Tracker)

func WithLogger(log *slog.Logger) Option {
	return func(t *Tracker) {
		if log != nil {
			t.log = log
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

func New(st orm.Storage, opts ...Option) *Tracker {
	t := &Tracker{
		st:  st,
		now: time.Now,
		log: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Storage exposes the facade the tracker writes through.
func (t *Tracker) Storage() orm.Storage {
	return t.st
}

func (t *Tracker) clock() time.Time {
	return t.now().UTC().Round(0)
}

// Activity is an interval together with the path of its task.
type Activity struct {
	Path     []model.Node
	Interval *model.Interval
}

// Task is the task the interval belongs to.
func (a *Activity) Task() model.Node {
	return a.Path[len(a.Path)-1]
}
