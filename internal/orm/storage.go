package orm

import (
	"context"
	"fmt"
)

// Storage is the CRUD surface shared by every record type. Implementations
// are the sqlite facade and decorators wrapping it.
type Storage interface {
	// Save inserts r when its id is 0 and updates it otherwise, returning the
	// resolved id.
	Save(ctx context.Context, r Record) (int64, error)
	// GetByStatement runs s against proto's table and returns fresh records
	// built with proto.New.
	GetByStatement(ctx context.Context, proto Record, s Statement) ([]Record, error)
	GetAll(ctx context.Context, proto Record) ([]Record, error)
	// RemoveByFilter soft-deletes matching rows and reports how many changed.
	RemoveByFilter(ctx context.Context, proto Record, f Filter) (int64, error)
}

func proto[T Record]() Record {
	var zero T
	return zero.New()
}

func cast[T Record](records []Record) ([]T, error) {
	res := make([]T, 0, len(records))
	for _, r := range records {
		t, ok := r.(T)
		if !ok {
			return nil, Unexpectedf("storage returned %T, want %T", r, *new(T))
		}
		res = append(res, t)
	}
	return res, nil
}

// Query runs s for record type T.
func Query[T Record](ctx context.Context, st Storage, s Statement) ([]T, error) {
	records, err := st.GetByStatement(ctx, proto[T](), s)
	if err != nil {
		return nil, err
	}
	return cast[T](records)
}

func GetAll[T Record](ctx context.Context, st Storage) ([]T, error) {
	records, err := st.GetAll(ctx, proto[T]())
	if err != nil {
		return nil, err
	}
	return cast[T](records)
}

func GetByFilter[T Record](ctx context.Context, st Storage, f Filter) ([]T, error) {
	return Query[T](ctx, st, Where(f))
}

// GetByID fails with ErrIsEmpty when no row has the id.
func GetByID[T Record](ctx context.Context, st Storage, id int64) (T, error) {
	var zero T
	res, err := Query[T](ctx, st, Where(Eq(IDField, Int(id))))
	if err != nil {
		return zero, err
	}
	if len(res) == 0 {
		return zero, Emptyf("no %s row with id %d", proto[T]().TypeName(), id)
	}
	return res[0], nil
}

// GetWithMax returns the row with the greatest value of field, or ok=false on
// an empty table.
func GetWithMax[T Record](ctx context.Context, st Storage, field string) (T, bool, error) {
	var zero T
	res, err := Query[T](ctx, st, SortBy(field, Desc).Limit(1))
	if err != nil {
		return zero, false, err
	}
	if len(res) == 0 {
		return zero, false, nil
	}
	return res[0], true, nil
}

func Remove[T Record](ctx context.Context, st Storage, f Filter) (int64, error) {
	n, err := st.RemoveByFilter(ctx, proto[T](), f)
	if err != nil {
		return 0, fmt.Errorf("remove %s: %w", proto[T]().TypeName(), err)
	}
	return n, nil
}
