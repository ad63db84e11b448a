package orm

// widget is a minimal record used across the package tests.
type widget struct {
	id      Value
	name    string
	score   float64
	deleted bool
}

var widgetFields = []string{"id", "name", "score", "deleted"}

func (*widget) TypeName() string { return "widget" }
func (*widget) Fields() []string { return widgetFields }
func (*widget) New() Record      { return &widget{id: Int(0)} }

func (w *widget) Get(field string) Value {
	switch field {
	case "id":
		return w.id
	case "name":
		return Text(w.name)
	case "score":
		return Float(w.score)
	case "deleted":
		return Bool(w.deleted)
	}
	return Null()
}

func (w *widget) Set(field string, v Value) error {
	var err error
	switch field {
	case "id":
		w.id = v
	case "name":
		w.name, err = v.AsText()
	case "score":
		w.score, err = v.AsFloat64()
	case "deleted":
		w.deleted, err = v.AsBool()
	default:
		return UnknownField(w, field)
	}
	return err
}
