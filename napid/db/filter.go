package db

import (
	"fmt"
	"strings"
)

// Filter selects objects by their indexed fields. Build filters with Eq, Ne,
// Ge, Le, Present, Absent, And and Or. A nil Filter matches everything.
type Filter interface {
	compile(info *bucketInfo, b *condBuilder) error
}

type condBuilder struct {
	sql  strings.Builder
	args []any
}

func (b *condBuilder) write(s string) {
	b.sql.WriteString(s)
}

func (b *condBuilder) arg(v any) {
	b.args = append(b.args, v)
}

// compileFilter turns a filter into a WHERE condition and its arguments.
func compileFilter(info *bucketInfo, f Filter) (string, []any, error) {
	if f == nil {
		return "1 = 1", nil, nil
	}

	b := &condBuilder{}

	err := f.compile(info, b)
	if err != nil {
		return "", nil, err
	}

	return b.sql.String(), b.args, nil
}

func (info *bucketInfo) fieldType(name string) (FieldType, error) {
	t, ok := info.fieldTypes[name]
	if !ok {
		return "", fmt.Errorf("bucket %q has no indexed field %q", info.schema.Name, name)
	}

	return t, nil
}

// coerceScalar converts a filter value to the SQL form of the field column.
func coerceScalar(t FieldType, value any) (any, error) {
	switch t {
	case FieldString:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected string value, got %T", value)
		}

		return s, nil
	case FieldInt:
		switch n := value.(type) {
		case int:
			return int64(n), nil
		case int64:
			return n, nil
		case uint32:
			return int64(n), nil
		case float64:
			return int64(n), nil
		default:
			return nil, fmt.Errorf("expected integer value, got %T", value)
		}
	case FieldBool:
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool value, got %T", value)
		}

		if b {
			return int64(1), nil
		}

		return int64(0), nil
	default:
		return nil, fmt.Errorf("field type %q does not take scalar comparisons", t)
	}
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

type eqFilter struct {
	field string
	value any
}

// Eq matches objects whose field equals value. On array fields it matches
// membership of value in the array.
func Eq(field string, value any) Filter {
	return &eqFilter{field: field, value: value}
}

func (f *eqFilter) compile(info *bucketInfo, b *condBuilder) error {
	t, err := info.fieldType(f.field)
	if err != nil {
		return err
	}

	col := fieldColumn(f.field)

	if t == FieldStringArray {
		s, ok := f.value.(string)
		if !ok {
			return fmt.Errorf("field %q: expected string value, got %T", f.field, f.value)
		}

		b.write(col + ` LIKE ? ESCAPE '\'`)
		b.arg("%," + escapeLike(s) + ",%")

		return nil
	}

	v, err := coerceScalar(t, f.value)
	if err != nil {
		return fmt.Errorf("field %q: %w", f.field, err)
	}

	b.write(col + " = ?")
	b.arg(v)

	return nil
}

type neFilter struct {
	field string
	value any
}

// Ne matches objects whose field is absent or differs from value.
func Ne(field string, value any) Filter {
	return &neFilter{field: field, value: value}
}

func (f *neFilter) compile(info *bucketInfo, b *condBuilder) error {
	col := fieldColumn(f.field)

	b.write("(" + col + " IS NULL OR NOT (")

	err := Eq(f.field, f.value).compile(info, b)
	if err != nil {
		return err
	}

	b.write("))")

	return nil
}

type cmpFilter struct {
	field string
	op    string
	value any
}

// Ge matches objects whose field is greater than or equal to value.
func Ge(field string, value any) Filter {
	return &cmpFilter{field: field, op: ">=", value: value}
}

// Le matches objects whose field is less than or equal to value.
func Le(field string, value any) Filter {
	return &cmpFilter{field: field, op: "<=", value: value}
}

func (f *cmpFilter) compile(info *bucketInfo, b *condBuilder) error {
	t, err := info.fieldType(f.field)
	if err != nil {
		return err
	}

	if t == FieldStringArray || t == FieldBool {
		return fmt.Errorf("field %q: type %q does not order", f.field, t)
	}

	v, err := coerceScalar(t, f.value)
	if err != nil {
		return fmt.Errorf("field %q: %w", f.field, err)
	}

	b.write(fieldColumn(f.field) + " " + f.op + " ?")
	b.arg(v)

	return nil
}

type keyCmpFilter struct {
	op  string
	key string
}

// KeyGe matches objects whose bucket key is greater than or equal to key.
// Decimal keys compare numerically.
func KeyGe(key string) Filter {
	return &keyCmpFilter{op: ">=", key: key}
}

// KeyLe matches objects whose bucket key is less than or equal to key.
func KeyLe(key string) Filter {
	return &keyCmpFilter{op: "<=", key: key}
}

func (f *keyCmpFilter) compile(info *bucketInfo, b *condBuilder) error {
	v, err := info.keyArg(f.key)
	if err != nil {
		return err
	}

	b.write("k " + f.op + " ?")
	b.arg(v)

	return nil
}

type presentFilter struct {
	field  string
	absent bool
}

// Present matches objects that carry the field with a non-null value. Array
// fields count as present only when non-empty.
func Present(field string) Filter {
	return &presentFilter{field: field}
}

// Absent matches objects missing the field, carrying it as null, or, for
// array fields, carrying it empty.
func Absent(field string) Filter {
	return &presentFilter{field: field, absent: true}
}

func (f *presentFilter) compile(info *bucketInfo, b *condBuilder) error {
	_, err := info.fieldType(f.field)
	if err != nil {
		return err
	}

	if f.absent {
		b.write(fieldColumn(f.field) + " IS NULL")
	} else {
		b.write(fieldColumn(f.field) + " IS NOT NULL")
	}

	return nil
}

type boolFilter struct {
	or      bool
	clauses []Filter
}

// And matches objects satisfying every clause. With no clauses it matches
// everything.
func And(clauses ...Filter) Filter {
	return &boolFilter{clauses: clauses}
}

// Or matches objects satisfying at least one clause.
func Or(clauses ...Filter) Filter {
	return &boolFilter{or: true, clauses: clauses}
}

func (f *boolFilter) compile(info *bucketInfo, b *condBuilder) error {
	if len(f.clauses) == 0 {
		if f.or {
			return fmt.Errorf("empty or filter")
		}

		b.write("1 = 1")

		return nil
	}

	join := " AND "
	if f.or {
		join = " OR "
	}

	b.write("(")

	for i, clause := range f.clauses {
		if i > 0 {
			b.write(join)
		}

		err := clause.compile(info, b)
		if err != nil {
			return err
		}
	}

	b.write(")")

	return nil
}
