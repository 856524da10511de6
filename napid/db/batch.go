package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// OpKind tags a batch operation.
type OpKind string

const (
	OpPut    OpKind = "put"
	OpDelete OpKind = "delete"
	OpUpdate OpKind = "update"
)

// Op is one step of a batch. Build ops with PutOp, DeleteOp and UpdateOp.
type Op struct {
	Kind    OpKind
	Bucket  string
	Key     string
	Value   any
	Put     PutOptions
	Del     DeleteOptions
	Filter  Filter
	Fields  map[string]any
}

// PutOp writes value under key, honoring the usual put conditions.
func PutOp(bucket string, key string, value any, opts PutOptions) Op {
	return Op{Kind: OpPut, Bucket: bucket, Key: key, Value: value, Put: opts}
}

// DeleteOp removes the object under key.
func DeleteOp(bucket string, key string, opts DeleteOptions) Op {
	return Op{Kind: OpDelete, Bucket: bucket, Key: key, Del: opts}
}

// UpdateOp sets the given indexed fields on every object matching the
// filter. Updated objects get fresh etags.
func UpdateOp(bucket string, f Filter, fields map[string]any) Op {
	return Op{Kind: OpUpdate, Bucket: bucket, Filter: f, Fields: fields}
}

// BatchError reports the first operation of a batch that failed. The whole
// batch was rolled back.
type BatchError struct {
	Index  int
	Kind   OpKind
	Bucket string
	Err    error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch operation %d (%s %s): %v", e.Index, e.Kind, e.Bucket, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// Batch applies all operations in one transaction. If any operation fails,
// none of them take effect and the returned BatchError names the failing
// one.
func (s *Store) Batch(ctx context.Context, ops []Op) error {
	if len(ops) == 0 {
		return nil
	}

	// Resolve buckets up front so a bad name fails before any writes.
	infos := make([]*bucketInfo, len(ops))
	for i, op := range ops {
		info, err := s.bucket(op.Bucket)
		if err != nil {
			return &BatchError{Index: i, Kind: op.Kind, Bucket: op.Bucket, Err: err}
		}

		infos[i] = info
	}

	return s.transaction(ctx, func(tx *sql.Tx) error {
		for i, op := range ops {
			var err error

			switch op.Kind {
			case OpPut:
				_, err = putTx(ctx, tx, infos[i], op.Key, op.Value, op.Put)
			case OpDelete:
				err = deleteTx(ctx, tx, infos[i], op.Key, op.Del)
			case OpUpdate:
				_, err = updateTx(ctx, tx, infos[i], op.Filter, op.Fields)
			default:
				err = fmt.Errorf("unknown operation kind %q", op.Kind)
			}

			if err != nil {
				return &BatchError{Index: i, Kind: op.Kind, Bucket: op.Bucket, Err: err}
			}
		}

		return nil
	})
}

// Update sets the given indexed fields on every object matching the filter
// and returns how many objects changed.
func (s *Store) Update(ctx context.Context, bucket string, f Filter, fields map[string]any) (int, error) {
	info, err := s.bucket(bucket)
	if err != nil {
		return 0, err
	}

	var n int

	err = s.transaction(ctx, func(tx *sql.Tx) error {
		var err error
		n, err = updateTx(ctx, tx, info, f, fields)
		return err
	})
	if err != nil {
		return 0, err
	}

	return n, nil
}

func updateTx(ctx context.Context, tx *sql.Tx, info *bucketInfo, f Filter, fields map[string]any) (int, error) {
	if len(fields) == 0 {
		return 0, fmt.Errorf("update without fields")
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}

	sort.Strings(names)

	// The object JSON and the index columns change together, so filters
	// keep matching what the documents say.
	jsonParts := make([]string, 0, len(names))
	jsonArgs := make([]any, 0, len(names))
	colParts := make([]string, 0, len(names))
	colArgs := make([]any, 0, len(names))

	for _, name := range names {
		t, err := info.fieldType(name)
		if err != nil {
			return 0, err
		}

		value := fields[name]

		jsonPart, jsonArg, err := jsonSetArg(t, value)
		if err != nil {
			return 0, fmt.Errorf("field %q: %w", name, err)
		}

		jsonParts = append(jsonParts, fmt.Sprintf("'$.%s', %s", name, jsonPart))
		jsonArgs = append(jsonArgs, jsonArg)

		colArg, err := encodeFieldValue(t, jsonValue(value))
		if err != nil {
			return 0, fmt.Errorf("field %q: %w", name, err)
		}

		colParts = append(colParts, fieldColumn(name)+" = ?")
		colArgs = append(colArgs, colArg)
	}

	where, whereArgs, err := compileFilter(info, f)
	if err != nil {
		return 0, err
	}

	stmt := fmt.Sprintf("UPDATE %s SET v = json_set(v, %s), etag = ?, %s WHERE %s",
		info.schema.Name, strings.Join(jsonParts, ", "), strings.Join(colParts, ", "), where)

	args := make([]any, 0, len(jsonArgs)+1+len(colArgs)+len(whereArgs))
	args = append(args, jsonArgs...)
	args = append(args, uuid.New().String())
	args = append(args, colArgs...)
	args = append(args, whereArgs...)

	result, err := tx.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	return int(n), nil
}

// jsonSetArg renders one json_set value placeholder. Booleans and arrays
// must pass through json() or they would land as numbers and text.
func jsonSetArg(t FieldType, value any) (string, any, error) {
	switch t {
	case FieldString:
		s, ok := value.(string)
		if !ok {
			return "", nil, fmt.Errorf("expected string, got %T", value)
		}

		return "?", s, nil
	case FieldInt:
		switch n := value.(type) {
		case int:
			return "?", int64(n), nil
		case int64:
			return "?", n, nil
		default:
			return "", nil, fmt.Errorf("expected integer, got %T", value)
		}
	case FieldBool:
		b, ok := value.(bool)
		if !ok {
			return "", nil, fmt.Errorf("expected bool, got %T", value)
		}

		if b {
			return "json(?)", "true", nil
		}

		return "json(?)", "false", nil
	case FieldStringArray:
		items, ok := value.([]string)
		if !ok {
			return "", nil, fmt.Errorf("expected string slice, got %T", value)
		}

		raw, err := json.Marshal(items)
		if err != nil {
			return "", nil, err
		}

		return "json(?)", string(raw), nil
	default:
		return "", nil, fmt.Errorf("unknown field type %q", t)
	}
}

// jsonValue converts Go update values to the decoded JSON shapes
// encodeFieldValue expects.
func jsonValue(value any) any {
	switch v := value.(type) {
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case []string:
		items := make([]any, len(v))
		for i, s := range v {
			items[i] = s
		}

		return items
	default:
		return v
	}
}
