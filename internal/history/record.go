package history

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/Joseda-hg/lazytime/internal/orm"
)

type RecordType int

const (
	Create RecordType = iota
	Update
	Delete
)

func (t RecordType) String() string {
	switch t {
	case Create:
		return "create"
	case Update:
		return "update"
	case Delete:
		return "delete"
	default:
		return fmt.Sprintf("RecordType(%d)", int(t))
	}
}

var recordFields = []string{"id", "date", "uuid", "record_type", "entity_type", "entity_id"}

// Record is one immutable journal entry. It is stored through the same
// generic engine as the records it describes.
type Record struct {
	ID         int64
	Date       time.Time
	UUID       uuid.UUID
	Type       RecordType
	EntityType string
	EntityID   int64
}

func (*Record) TypeName() string { return "history_record" }
func (*Record) Fields() []string { return slices.Clone(recordFields) }
func (*Record) New() orm.Record  { return &Record{} }

func (r *Record) Get(field string) orm.Value {
	switch field {
	case "id":
		return orm.Int(r.ID)
	case "date":
		return orm.Time(r.Date)
	case "uuid":
		return orm.Text(r.UUID.String())
	case "record_type":
		return orm.Int(int64(r.Type))
	case "entity_type":
		return orm.Text(r.EntityType)
	case "entity_id":
		return orm.Int(r.EntityID)
	default:
		return orm.Null()
	}
}

func (r *Record) Set(field string, v orm.Value) error {
	var err error
	switch field {
	case "id":
		r.ID, err = v.AsInt64()
	case "date":
		r.Date, err = v.AsTime()
	case "uuid":
		var s string
		if s, err = v.AsText(); err == nil {
			if r.UUID, err = uuid.Parse(s); err != nil {
				err = orm.Convertf("parse uuid %q: %v", s, err)
			}
		}
	case "record_type":
		var t int64
		t, err = v.AsInt64()
		r.Type = RecordType(t)
	case "entity_type":
		r.EntityType, err = v.AsText()
	case "entity_id":
		r.EntityID, err = v.AsInt64()
	default:
		return orm.UnknownField(r, field)
	}
	if err != nil {
		return fmt.Errorf("history_record.%s: %w", field, err)
	}
	return nil
}

func (r *Record) String() string {
	return fmt.Sprintf("%s %s %s#%d %s", r.Date.Format(time.RFC3339), r.Type, r.EntityType, r.EntityID, r.UUID)
}
