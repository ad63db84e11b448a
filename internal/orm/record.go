package orm

import "slices"

// Record is implemented by every storable type. Fields lists column names in
// a stable order; rows read from the engine are mapped back positionally in
// that order.
type Record interface {
	TypeName() string
	Fields() []string
	Get(field string) Value
	Set(field string, v Value) error
	// New returns an empty instance used as a deserialization target. It must
	// not dereference its receiver.
	New() Record
}

// IDField is the auto-increment primary key every record carries.
const IDField = "id"

// TableName is the table a record type is stored in.
func TableName(r Record) string {
	return r.TypeName() + "s"
}

func hasField(r Record, field string) bool {
	return slices.Contains(r.Fields(), field)
}

// RecordID reads the id field of r.
func RecordID(r Record) (int64, error) {
	id, err := r.Get(IDField).AsInt64()
	if err != nil {
		return 0, Unexpectedf("field id of %s has unexpected type: %v", r.TypeName(), err)
	}
	return id, nil
}

// UnknownField is returned by Set implementations for names outside Fields.
func UnknownField(r Record, field string) error {
	return Convertf("%s has no field %q", r.TypeName(), field)
}
