package core

import (
	"context"
	"fmt"
	"time"

	"github.com/Joseda-hg/lazytime/internal/model"
	"github.com/Joseda-hg/lazytime/internal/orm"
)

// targetInterval picks the interval Add and Truncate work on: the latest
// live interval of taskID, or with taskID 0 the running or last interval.
// The interval is nil when the task has none.
func (t *Tracker) targetInterval(ctx context.Context, taskID int64) (*model.Node, *model.Interval, error) {
	if taskID == 0 {
		n, interval, err := t.LastRunning(ctx)
		if err != nil {
			return nil, nil, err
		}
		if interval == nil {
			return nil, nil, ErrNothingToRestart
		}
		return n, interval, nil
	}

	n, err := t.node(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}
	if n.Deleted {
		return nil, nil, fmt.Errorf("%w: id %d", ErrTaskDeleted, taskID)
	}
	latest, err := orm.Query[*model.Interval](ctx, t.st, orm.Where(orm.And(
		orm.Eq(model.IntervalNodeID, orm.Int(taskID)),
		orm.Eq(model.IntervalDeleted, orm.Bool(false)),
	)).Sort(model.IntervalBegin, orm.Desc).Limit(1))
	if err != nil {
		return nil, nil, err
	}
	if len(latest) == 0 {
		return n, nil, nil
	}
	return n, latest[0], nil
}

// overlaps reports whether a live interval other than except intersects
// [begin, end). Open intervals extend to infinity.
func (t *Tracker) overlaps(ctx context.Context, begin, end time.Time, except int64) (bool, error) {
	found, err := orm.Query[*model.Interval](ctx, t.st, orm.Where(orm.AllOf(
		orm.Eq(model.IntervalDeleted, orm.Bool(false)),
		orm.Ne(model.IntervalID, orm.Int(except)),
		orm.Lt(model.IntervalBegin, orm.Time(end)),
		orm.Or(orm.Gt(model.IntervalEnd, orm.Time(begin)), orm.Eq(model.IntervalEnd, orm.Null())),
	)).Limit(1))
	if err != nil {
		return false, err
	}
	return len(found) > 0, nil
}

// Add logs d more time. A task without intervals gets a new one ending now.
// A running interval starts d earlier. A finished interval ends d later,
// capped at now, the remainder moving its beginning. It reports whether an
// existing interval was extended.
func (t *Tracker) Add(ctx context.Context, taskID int64, d time.Duration) (*Activity, bool, error) {
	if d <= 0 {
		return nil, false, fmt.Errorf("invalid duration %s", d)
	}
	n, interval, err := t.targetInterval(ctx, taskID)
	if err != nil {
		return nil, false, err
	}

	now := t.clock()
	extended := interval != nil
	switch {
	case interval == nil:
		interval = model.NewInterval(n.ID, now.Add(-d))
		interval.End = &now
	case interval.End == nil:
		interval.Begin = interval.Begin.Add(-d)
	case now.Sub(*interval.End) >= d:
		end := interval.End.Add(d)
		interval.End = &end
	default:
		rest := d - now.Sub(*interval.End)
		interval.Begin = interval.Begin.Add(-rest)
		interval.End = &now
	}

	end := now
	if interval.End != nil {
		end = *interval.End
	}
	clash, err := t.overlaps(ctx, interval.Begin, end, interval.ID)
	if err != nil {
		return nil, false, err
	}
	if clash {
		return nil, false, fmt.Errorf("%w: cannot add %s", ErrIntervalOverlap, d)
	}

	id, err := t.st.Save(ctx, interval)
	if err != nil {
		return nil, false, err
	}
	interval.ID = id
	t.log.InfoContext(ctx, "added time", "interval", id, "duration", d, "extended", extended)

	a, err := t.activity(ctx, interval)
	return a, extended, err
}

// Truncate moves the end of a finished interval d earlier.
func (t *Tracker) Truncate(ctx context.Context, taskID int64, d time.Duration) (*Activity, error) {
	if d <= 0 {
		return nil, fmt.Errorf("invalid duration %s", d)
	}
	_, interval, err := t.targetInterval(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if interval == nil {
		return nil, fmt.Errorf("%w: task %d has no intervals", ErrIntervalNotFound, taskID)
	}
	if interval.End == nil {
		return nil, fmt.Errorf("%w: stop it before truncating", ErrIntervalRunning)
	}
	if d > interval.End.Sub(interval.Begin) {
		return nil, fmt.Errorf("%w: it lasted %s", ErrIntervalTooShort, interval.End.Sub(interval.Begin))
	}

	end := interval.End.Add(-d)
	interval.End = &end
	if _, err := t.st.Save(ctx, interval); err != nil {
		return nil, err
	}
	return t.activity(ctx, interval)
}
