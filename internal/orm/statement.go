package orm

import "slices"

// Filter is a predicate over the columns of one table.
type Filter interface {
	filter()
}

type CmpOp int

const (
	OpEq CmpOp = iota
	OpNe
	OpGt
	OpLt
)

type Cmp struct {
	Op    CmpOp
	Field string
	Value Value
}

type AndFilter struct{ Left, Right Filter }
type OrFilter struct{ Left, Right Filter }
type NotFilter struct{ Inner Filter }

// ExistsFilter holds when the subquery returns at least one row. Column values
// inside the subquery refer to the enclosing statement's table.
type ExistsFilter struct{ Query Statement }

// IncludesFilter is a substring containment match.
type IncludesFilter struct {
	Field     string
	Substring string
}

func (Cmp) filter()            {}
func (AndFilter) filter()      {}
func (OrFilter) filter()       {}
func (NotFilter) filter()      {}
func (ExistsFilter) filter()   {}
func (IncludesFilter) filter() {}

func Eq(field string, v Value) Filter { return Cmp{Op: OpEq, Field: field, Value: v} }
func Ne(field string, v Value) Filter { return Cmp{Op: OpNe, Field: field, Value: v} }
func Gt(field string, v Value) Filter { return Cmp{Op: OpGt, Field: field, Value: v} }
func Lt(field string, v Value) Filter { return Cmp{Op: OpLt, Field: field, Value: v} }

func And(left, right Filter) Filter { return AndFilter{Left: left, Right: right} }
func Or(left, right Filter) Filter  { return OrFilter{Left: left, Right: right} }
func Not(f Filter) Filter           { return NotFilter{Inner: f} }

func Exists(q Statement) Filter { return ExistsFilter{Query: q} }

func Includes(field, substring string) Filter {
	return IncludesFilter{Field: field, Substring: substring}
}

// AllOf folds filters with And. Nil entries are skipped; it returns nil when
// nothing remains.
func AllOf(filters ...Filter) Filter {
	var res Filter
	for _, f := range filters {
		if f == nil {
			continue
		}
		if res == nil {
			res = f
			continue
		}
		res = And(res, f)
	}
	return res
}

type SortDir int

const (
	Asc SortDir = iota
	Desc
)

type Sort struct {
	Field string
	Dir   SortDir
}

// Statement is an immutable query description. Every builder method returns
// a modified copy.
type Statement struct {
	where       Filter
	sorts       []Sort
	limit       int
	hasLimit    bool
	offset      int
	hasOffset   bool
	distinct    bool
	recursiveOn string
	table       string
	alias       string
}

func Where(f Filter) Statement                  { return Statement{}.Filter(f) }
func SortBy(field string, dir SortDir) Statement { return Statement{}.Sort(field, dir) }
func FromTable(table string) Statement           { return Statement{}.From(table) }

func (s Statement) Filter(f Filter) Statement {
	s.where = f
	return s
}

// Sort appends a sort key; keys apply in call order.
func (s Statement) Sort(field string, dir SortDir) Statement {
	s.sorts = append(slices.Clip(s.sorts), Sort{Field: field, Dir: dir})
	return s
}

func (s Statement) Limit(n int) Statement {
	s.limit, s.hasLimit = n, true
	return s
}

func (s Statement) Offset(n int) Statement {
	s.offset, s.hasOffset = n, true
	return s
}

func (s Statement) Distinct() Statement {
	s.distinct = true
	return s
}

// RecursiveOn widens the result with the transitive closure over field: each
// matched row pulls in the row whose id equals its field value, repeatedly.
func (s Statement) RecursiveOn(field string) Statement {
	s.recursiveOn = field
	return s
}

func (s Statement) From(table string) Statement {
	s.table = table
	return s
}

func (s Statement) Alias(name string) Statement {
	s.alias = name
	return s
}

func (s Statement) Where() Filter { return s.where }

func (s Statement) Sorts() []Sort { return slices.Clone(s.sorts) }

func (s Statement) LimitValue() (int, bool)  { return s.limit, s.hasLimit }
func (s Statement) OffsetValue() (int, bool) { return s.offset, s.hasOffset }
func (s Statement) IsDistinct() bool         { return s.distinct }
func (s Statement) RecursiveField() string   { return s.recursiveOn }
func (s Statement) Table() string            { return s.table }
func (s Statement) AliasName() string        { return s.alias }
