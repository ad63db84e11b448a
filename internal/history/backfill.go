package history

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Joseda-hg/lazytime/internal/orm"
)

// Backfill journals a Create for every row of the given record types that has
// no history yet, so rows written before the journal existed can later be
// deleted through a Watcher. It returns the number of records written.
func Backfill(ctx context.Context, st orm.Storage, journal Recorder, now func() time.Time, protos ...orm.Record) (int, error) {
	written := 0
	for _, proto := range protos {
		rows, err := st.GetAll(ctx, proto)
		if err != nil {
			return written, err
		}
		for _, row := range rows {
			id, err := orm.RecordID(row)
			if err != nil {
				return written, err
			}
			_, err = journal.EntityUUID(ctx, id, row.TypeName())
			if err == nil {
				continue
			}
			if !errors.Is(err, orm.ErrIsEmpty) {
				return written, err
			}
			if err := journal.PushRecord(ctx, Record{
				Date:       now().UTC(),
				UUID:       uuid.New(),
				Type:       Create,
				EntityType: row.TypeName(),
				EntityID:   id,
			}); err != nil {
				return written, err
			}
			written++
		}
	}
	return written, nil
}
