package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Object is one stored bucket entry.
type Object struct {
	Bucket string
	Key    string
	Value  json.RawMessage
	Etag   string
}

// Unmarshal decodes the object's JSON into target.
func (o *Object) Unmarshal(target any) error {
	return json.Unmarshal(o.Value, target)
}

// PutOptions make a put conditional. IfMissing requires the key to be
// absent. IfMatch requires the current etag to equal the given value. Both
// unset means an unconditional upsert.
type PutOptions struct {
	IfMissing bool
	IfMatch   string
}

// DeleteOptions make a delete conditional on the current etag.
type DeleteOptions struct {
	IfMatch string
}

// keyArg converts a caller-facing key into its bound SQL form.
func (info *bucketInfo) keyArg(key string) (any, error) {
	if info.schema.KeyKind != KeyDecimal {
		return key, nil
	}

	n, err := strconv.ParseInt(key, 10, 64)
	if err != nil || n < 0 {
		return nil, fmt.Errorf("bucket %q: invalid decimal key %q", info.schema.Name, key)
	}

	return n, nil
}

// keyString converts a scanned SQL key back to its caller-facing form.
func (info *bucketInfo) keyString(raw any) string {
	switch v := raw.(type) {
	case int64:
		return strconv.FormatInt(v, 10)
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// encodeFieldValue converts a decoded JSON value into the SQL form stored in
// the field's index column. Missing and null values map to NULL. String
// arrays store as comma bracketed text so membership checks can use LIKE,
// with the empty array mapping to NULL.
func encodeFieldValue(t FieldType, value any) (any, error) {
	if value == nil {
		return nil, nil
	}

	switch t {
	case FieldString:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", value)
		}

		return s, nil
	case FieldInt:
		switch n := value.(type) {
		case float64:
			return int64(n), nil
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		default:
			return nil, fmt.Errorf("expected number, got %T", value)
		}
	case FieldBool:
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %T", value)
		}

		if b {
			return int64(1), nil
		}

		return int64(0), nil
	case FieldStringArray:
		items, ok := value.([]any)
		if !ok {
			return nil, fmt.Errorf("expected string array, got %T", value)
		}

		if len(items) == 0 {
			return nil, nil
		}

		parts := make([]string, len(items))
		for i, item := range items {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected string array element, got %T", item)
			}

			if strings.Contains(s, ",") {
				return nil, fmt.Errorf("array element %q may not contain a comma", s)
			}

			parts[i] = s
		}

		return "," + strings.Join(parts, ",") + ",", nil
	default:
		return nil, fmt.Errorf("unknown field type %q", t)
	}
}

// extractFields pulls every indexed field of the bucket out of the object's
// JSON and returns the column values in schema order.
func (info *bucketInfo) extractFields(value []byte) ([]any, error) {
	var doc map[string]any

	err := json.Unmarshal(value, &doc)
	if err != nil {
		return nil, fmt.Errorf("object is not a JSON document: %w", err)
	}

	args := make([]any, 0, len(info.schema.Fields))
	for _, field := range info.schema.Fields {
		arg, err := encodeFieldValue(field.Type, doc[field.Name])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field.Name, err)
		}

		args = append(args, arg)
	}

	return args, nil
}

func marshalValue(value any) ([]byte, error) {
	switch v := value.(type) {
	case json.RawMessage:
		return v, nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(value)
	}
}

// Put writes an object under key and returns the new etag. The value is
// marshaled to JSON unless it already is a raw message.
func (s *Store) Put(ctx context.Context, bucket string, key string, value any, opts PutOptions) (string, error) {
	info, err := s.bucket(bucket)
	if err != nil {
		return "", err
	}

	var etag string

	err = s.transaction(ctx, func(tx *sql.Tx) error {
		var err error
		etag, err = putTx(ctx, tx, info, key, value, opts)
		return err
	})
	if err != nil {
		return "", err
	}

	return etag, nil
}

func putTx(ctx context.Context, tx *sql.Tx, info *bucketInfo, key string, value any, opts PutOptions) (string, error) {
	if opts.IfMissing && opts.IfMatch != "" {
		return "", fmt.Errorf("put options are mutually exclusive")
	}

	keyVal, err := info.keyArg(key)
	if err != nil {
		return "", err
	}

	raw, err := marshalValue(value)
	if err != nil {
		return "", err
	}

	fieldArgs, err := info.extractFields(raw)
	if err != nil {
		return "", fmt.Errorf("bucket %q key %q: %w", info.schema.Name, key, err)
	}

	etag := uuid.New().String()
	table := info.schema.Name

	switch {
	case opts.IfMatch != "":
		assignments := []string{"v = ?", "etag = ?"}
		args := []any{string(raw), etag}

		for i, field := range info.schema.Fields {
			assignments = append(assignments, fieldColumn(field.Name)+" = ?")
			args = append(args, fieldArgs[i])
		}

		args = append(args, keyVal, opts.IfMatch)

		result, err := tx.ExecContext(ctx, fmt.Sprintf("UPDATE %s SET %s WHERE k = ? AND etag = ?",
			table, strings.Join(assignments, ", ")), args...)
		if err != nil {
			return "", err
		}

		n, err := result.RowsAffected()
		if err != nil {
			return "", err
		}

		if n == 0 {
			return "", putConflict(ctx, tx, table, keyVal)
		}
	default:
		columns := []string{"k", "v", "etag"}
		args := []any{keyVal, string(raw), etag}

		for i, field := range info.schema.Fields {
			columns = append(columns, fieldColumn(field.Name))
			args = append(args, fieldArgs[i])
		}

		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")

		var onConflict string
		if opts.IfMissing {
			onConflict = "ON CONFLICT (k) DO NOTHING"
		} else {
			updates := make([]string, 0, len(columns)-1)
			for _, col := range columns[1:] {
				updates = append(updates, fmt.Sprintf("%s = excluded.%s", col, col))
			}

			onConflict = "ON CONFLICT (k) DO UPDATE SET " + strings.Join(updates, ", ")
		}

		result, err := tx.ExecContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) %s",
			table, strings.Join(columns, ", "), placeholders, onConflict), args...)
		if err != nil {
			return "", err
		}

		n, err := result.RowsAffected()
		if err != nil {
			return "", err
		}

		if n == 0 {
			return "", fmt.Errorf("%w: key %q already exists in bucket %q", ErrEtagConflict, key, table)
		}
	}

	return etag, nil
}

// putConflict distinguishes a conditional write that lost the etag race from
// one whose key vanished entirely.
func putConflict(ctx context.Context, tx *sql.Tx, table string, keyVal any) error {
	var one int

	err := tx.QueryRowContext(ctx, fmt.Sprintf("SELECT 1 FROM %s WHERE k = ?", table), keyVal).Scan(&one)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: bucket %q", ErrNotFound, table)
	}

	if err != nil {
		return err
	}

	return fmt.Errorf("%w: bucket %q", ErrEtagConflict, table)
}

// Get fetches the object stored under key.
func (s *Store) Get(ctx context.Context, bucket string, key string) (*Object, error) {
	info, err := s.bucket(bucket)
	if err != nil {
		return nil, err
	}

	keyVal, err := info.keyArg(key)
	if err != nil {
		return nil, err
	}

	obj := &Object{Bucket: bucket, Key: key}

	var value string

	err = s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT v, etag FROM %s WHERE k = ?", info.schema.Name), keyVal).Scan(&value, &obj.Etag)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: key %q in bucket %q", ErrNotFound, key, bucket)
	}

	if err != nil {
		return nil, err
	}

	obj.Value = json.RawMessage(value)

	return obj, nil
}

// Delete removes the object stored under key.
func (s *Store) Delete(ctx context.Context, bucket string, key string, opts DeleteOptions) error {
	info, err := s.bucket(bucket)
	if err != nil {
		return err
	}

	return s.transaction(ctx, func(tx *sql.Tx) error {
		return deleteTx(ctx, tx, info, key, opts)
	})
}

func deleteTx(ctx context.Context, tx *sql.Tx, info *bucketInfo, key string, opts DeleteOptions) error {
	keyVal, err := info.keyArg(key)
	if err != nil {
		return err
	}

	table := info.schema.Name

	stmt := fmt.Sprintf("DELETE FROM %s WHERE k = ?", table)
	args := []any{keyVal}

	if opts.IfMatch != "" {
		stmt += " AND etag = ?"
		args = append(args, opts.IfMatch)
	}

	result, err := tx.ExecContext(ctx, stmt, args...)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if n == 0 {
		if opts.IfMatch != "" {
			return putConflict(ctx, tx, table, keyVal)
		}

		return fmt.Errorf("%w: key %q in bucket %q", ErrNotFound, key, info.schema.Name)
	}

	return nil
}
