package orm

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// closureName is the common table expression recursive statements select from.
const closureName = "closure"

// subqueryAlias names EXISTS subqueries that carry no alias of their own, so
// Column values keep resolving against the enclosing table.
const subqueryAlias = "sq"

// SelectSQL compiles s against the columns of r.
func SelectSQL(s Statement, r Record) (string, error) {
	c := compiler{}
	if s.recursiveOn != "" {
		return c.recursive(s, r.Fields(), TableName(r))
	}
	sql, err := c.selectSQL(s, r.Fields(), TableName(r), false)
	if err != nil {
		return "", err
	}
	return sql + tail(s), nil
}

// SelectAllSQL lists every row of r's table.
func SelectAllSQL(r Record) string {
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(r.Fields(), ", "), TableName(r))
}

// RemoveSQL soft-deletes the rows matching f.
func RemoveSQL(r Record, f Filter) (string, error) {
	if f == nil {
		return "", Unexpectedf("remove from %s without a filter", TableName(r))
	}
	if !hasField(r, "deleted") {
		return "", Unexpectedf("%s has no deleted field", r.TypeName())
	}
	where, err := compiler{}.filter(f, scope{table: TableName(r), qual: TableName(r)})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("UPDATE %s SET deleted = 1 WHERE %s", TableName(r), where), nil
}

// SaveSQL builds the INSERT (id == 0) or UPDATE (id > 0) for r together with
// its bound arguments and the id it read.
func SaveSQL(r Record) (string, []any, int64, error) {
	id, err := RecordID(r)
	if err != nil {
		return "", nil, 0, err
	}
	if id < 0 {
		return "", nil, 0, Unexpectedf("negative id %d for %s", id, r.TypeName())
	}

	var cols []string
	var args []any
	for _, field := range r.Fields() {
		if field == IDField {
			continue
		}
		arg, err := r.Get(field).Arg()
		if err != nil {
			return "", nil, 0, fmt.Errorf("field %s.%s: %w", r.TypeName(), field, err)
		}
		cols = append(cols, field)
		args = append(args, arg)
	}

	table := TableName(r)
	if id > 0 {
		sets := make([]string, len(cols))
		for i, col := range cols {
			sets[i] = col + " = ?"
		}
		args = append(args, id)
		return fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", table, strings.Join(sets, ", ")), args, id, nil
	}

	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), marks), args, 0, nil
}

type compiler struct {
	// outer is the qualifier Column values resolve against; empty at the top
	// level, where they resolve against the statement's own table.
	outer string
}

// scope is the table a filter is evaluated against and the name its columns
// are qualified with.
type scope struct {
	table string
	qual  string
}

func (c compiler) selectSQL(s Statement, fields []string, defaultTable string, anchor bool) (string, error) {
	table := s.table
	if table == "" {
		table = defaultTable
	}
	self := scope{table: table, qual: table}
	if s.alias != "" {
		self.qual = s.alias
	}

	cols := fields
	if s.alias != "" {
		cols = make([]string, len(fields))
		for i, f := range fields {
			cols[i] = s.alias + "." + f
		}
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	if s.distinct && !anchor {
		b.WriteString("DISTINCT ")
	}
	b.WriteString(strings.Join(cols, ", "))
	b.WriteString(" FROM ")
	b.WriteString(table)
	if s.alias != "" {
		b.WriteString(" AS ")
		b.WriteString(s.alias)
	}
	if s.where != nil {
		where, err := c.filter(s.where, self)
		if err != nil {
			return "", err
		}
		b.WriteString(" WHERE ")
		b.WriteString(where)
	}
	return b.String(), nil
}

func (c compiler) recursive(s Statement, fields []string, defaultTable string) (string, error) {
	table := s.table
	if table == "" {
		table = defaultTable
	}
	anchor, err := c.selectSQL(s, fields, defaultTable, true)
	if err != nil {
		return "", err
	}

	joined := make([]string, len(fields))
	for i, f := range fields {
		joined[i] = table + "." + f
	}

	var b strings.Builder
	fmt.Fprintf(&b, "WITH RECURSIVE %s(%s) AS (", closureName, strings.Join(fields, ", "))
	b.WriteString(anchor)
	fmt.Fprintf(&b, " UNION SELECT %s FROM %s JOIN %s ON %s.id = %s.%s)",
		strings.Join(joined, ", "), table, closureName, table, closureName, s.recursiveOn)
	b.WriteString(" SELECT ")
	if s.distinct {
		b.WriteString("DISTINCT ")
	}
	b.WriteString("* FROM ")
	b.WriteString(closureName)
	b.WriteString(tail(s))
	return b.String(), nil
}

// tail renders ORDER BY, LIMIT and OFFSET.
func tail(s Statement) string {
	var b strings.Builder
	if len(s.sorts) > 0 {
		keys := make([]string, len(s.sorts))
		for i, srt := range s.sorts {
			dir := "ASC"
			if srt.Dir == Desc {
				dir = "DESC"
			}
			keys[i] = srt.Field + " " + dir
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(keys, ", "))
	}
	switch {
	case s.hasLimit:
		fmt.Fprintf(&b, " LIMIT %d", s.limit)
	case s.hasOffset:
		// OFFSET is only valid after LIMIT.
		b.WriteString(" LIMIT -1")
	}
	if s.hasOffset {
		fmt.Fprintf(&b, " OFFSET %d", s.offset)
	}
	return b.String()
}

// filter compiles f; self qualifies Column values when there is no outer scope.
func (c compiler) filter(f Filter, self scope) (string, error) {
	switch f := f.(type) {
	case Cmp:
		return c.cmp(f, self)
	case AndFilter:
		return c.binary("AND", f.Left, f.Right, self)
	case OrFilter:
		return c.binary("OR", f.Left, f.Right, self)
	case NotFilter:
		inner, err := c.filter(f.Inner, self)
		if err != nil {
			return "", err
		}
		return "(NOT " + inner + ")", nil
	case ExistsFilter:
		return c.exists(f.Query, self)
	case IncludesFilter:
		return fmt.Sprintf("instr(%s, %s) > 0", f.Field, quote(f.Substring)), nil
	case nil:
		return "", Unexpectedf("nil filter")
	default:
		return "", Unexpectedf("unsupported filter %T", f)
	}
}

func (c compiler) binary(op string, left, right Filter, self scope) (string, error) {
	l, err := c.filter(left, self)
	if err != nil {
		return "", err
	}
	r, err := c.filter(right, self)
	if err != nil {
		return "", err
	}
	return "(" + l + " " + op + " " + r + ")", nil
}

func (c compiler) cmp(f Cmp, self scope) (string, error) {
	if f.Value.IsNull() {
		switch f.Op {
		case OpEq:
			return f.Field + " IS NULL", nil
		case OpNe:
			return f.Field + " IS NOT NULL", nil
		default:
			return "", Convertf("ordering comparison of %s against null", f.Field)
		}
	}
	var sign string
	switch f.Op {
	case OpEq:
		sign = "="
	case OpNe:
		sign = "<>"
	case OpGt:
		sign = ">"
	case OpLt:
		sign = "<"
	default:
		return "", Unexpectedf("unknown comparison operator %d", f.Op)
	}
	return f.Field + " " + sign + " " + c.literal(f.Value, self), nil
}

func (c compiler) exists(q Statement, self scope) (string, error) {
	if q.recursiveOn != "" {
		return "", Unexpectedf("recursive statement inside EXISTS")
	}
	if q.alias == "" {
		q = q.Alias(subqueryAlias)
	}
	if q.table == "" {
		q = q.From(self.table)
	}
	sub, err := compiler{outer: self.qual}.selectSQL(q, []string{IDField}, q.table, false)
	if err != nil {
		return "", err
	}
	return "EXISTS (" + sub + tail(q) + ")", nil
}

func (c compiler) literal(v Value, self scope) string {
	switch v.Kind() {
	case KindText:
		return quote(v.s)
	case KindTime:
		return quote(v.t.Format(TimeLayout))
	case KindBool:
		return strconv.FormatInt(v.i, 10)
	case KindBytes:
		return "X'" + hex.EncodeToString(v.b) + "'"
	case KindColumn:
		q := c.outer
		if q == "" {
			q = self.qual
		}
		return q + "." + v.s
	default:
		return v.String()
	}
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
