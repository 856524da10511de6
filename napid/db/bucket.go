package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/netfabric/napi/shared/logger"
)

// KeyKind selects how a bucket's keys are stored and ordered.
type KeyKind string

const (
	// KeyString stores keys as opaque text.
	KeyString KeyKind = "string"

	// KeyDecimal stores keys as integers parsed from their decimal form.
	// Range scans over these keys order numerically.
	KeyDecimal KeyKind = "decimal"

	// KeyHex128 stores keys as fixed width 32 digit lowercase hex text.
	// The fixed width makes lexicographic order match numeric order.
	KeyHex128 KeyKind = "hex128"
)

// FieldType is the declared type of an indexed field.
type FieldType string

const (
	FieldString      FieldType = "string"
	FieldInt         FieldType = "int"
	FieldBool        FieldType = "bool"
	FieldStringArray FieldType = "[string]"
)

// IndexField declares one indexed field of a bucket. Filters and sorts may
// only name indexed fields.
type IndexField struct {
	Name string
	Type FieldType
}

// Schema declares a bucket: its name, key encoding, indexed fields and
// versions. Version tracks the index layout, DataVersion the shape of the
// stored objects themselves.
type Schema struct {
	Name        string
	Version     int
	KeyKind     KeyKind
	Fields      []IndexField
	DataVersion int
}

type bucketInfo struct {
	schema     Schema
	dataVer    int
	fieldTypes map[string]FieldType
}

var nameRule = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

func validateSchema(schema Schema) error {
	if !nameRule.MatchString(schema.Name) {
		return fmt.Errorf("invalid bucket name %q", schema.Name)
	}

	if schema.Version < 1 {
		return fmt.Errorf("bucket %q: version must be positive", schema.Name)
	}

	switch schema.KeyKind {
	case KeyString, KeyDecimal, KeyHex128:
	default:
		return fmt.Errorf("bucket %q: unknown key kind %q", schema.Name, schema.KeyKind)
	}

	seen := map[string]bool{}
	for _, field := range schema.Fields {
		if !nameRule.MatchString(field.Name) {
			return fmt.Errorf("bucket %q: invalid field name %q", schema.Name, field.Name)
		}

		if seen[field.Name] {
			return fmt.Errorf("bucket %q: duplicate field %q", schema.Name, field.Name)
		}

		seen[field.Name] = true

		switch field.Type {
		case FieldString, FieldInt, FieldBool, FieldStringArray:
		default:
			return fmt.Errorf("bucket %q: field %q has unknown type %q", schema.Name, field.Name, field.Type)
		}
	}

	return nil
}

func (info *bucketInfo) keyColumnType() string {
	if info.schema.KeyKind == KeyDecimal {
		return "INTEGER"
	}

	return "TEXT"
}

func fieldColumnType(t FieldType) string {
	switch t {
	case FieldInt, FieldBool:
		return "INTEGER"
	default:
		return "TEXT"
	}
}

func fieldColumn(name string) string {
	return "f_" + name
}

// loadCatalog rebuilds the in-memory schema cache from the catalog table.
func (s *Store) loadCatalog(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, "SELECT name, version, key_kind, fields, data_version FROM napi_buckets")
	if err != nil {
		return fmt.Errorf("failed to read bucket catalog: %w", err)
	}

	defer func() { _ = rows.Close() }()

	buckets := map[string]*bucketInfo{}
	for rows.Next() {
		var schema Schema
		var kind string
		var fieldsJSON string

		err = rows.Scan(&schema.Name, &schema.Version, &kind, &fieldsJSON, &schema.DataVersion)
		if err != nil {
			return err
		}

		schema.KeyKind = KeyKind(kind)

		err = json.Unmarshal([]byte(fieldsJSON), &schema.Fields)
		if err != nil {
			return fmt.Errorf("bucket %q: corrupt field declaration: %w", schema.Name, err)
		}

		buckets[schema.Name] = newBucketInfo(schema)
	}

	err = rows.Err()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.buckets = buckets
	s.mu.Unlock()

	return nil
}

func newBucketInfo(schema Schema) *bucketInfo {
	info := &bucketInfo{
		schema:     schema,
		dataVer:    schema.DataVersion,
		fieldTypes: make(map[string]FieldType, len(schema.Fields)),
	}

	for _, field := range schema.Fields {
		info.fieldTypes[field.Name] = field.Type
	}

	return info
}

func (s *Store) bucket(name string) (*bucketInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.buckets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBucketNotFound, name)
	}

	return info, nil
}

// Buckets returns the names of all buckets, sorted.
func (s *Store) Buckets() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.buckets))
	for name := range s.buckets {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// HasBucket reports whether a bucket exists.
func (s *Store) HasBucket(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.buckets[name]
	return ok
}

// DataVersion returns the stored data version of a bucket.
func (s *Store) DataVersion(name string) (int, error) {
	info, err := s.bucket(name)
	if err != nil {
		return 0, err
	}

	return info.dataVer, nil
}

// EnsureBucket creates the bucket if missing, or upgrades its index layout
// when schema.Version is newer than the stored one. New indexed fields are
// backfilled from the stored objects. Downgrades and key kind changes are
// refused.
func (s *Store) EnsureBucket(ctx context.Context, schema Schema) error {
	err := validateSchema(schema)
	if err != nil {
		return err
	}

	s.mu.RLock()
	existing := s.buckets[schema.Name]
	s.mu.RUnlock()

	if existing != nil {
		if existing.schema.KeyKind != schema.KeyKind {
			return fmt.Errorf("%w: %q key kind is %q, requested %q", ErrBucketExists, schema.Name, existing.schema.KeyKind, schema.KeyKind)
		}

		if existing.schema.Version == schema.Version {
			return nil
		}

		if existing.schema.Version > schema.Version {
			return fmt.Errorf("%w: %q is at version %d, requested %d", ErrBucketExists, schema.Name, existing.schema.Version, schema.Version)
		}
	}

	if existing == nil {
		err = s.createBucket(ctx, schema)
	} else {
		err = s.upgradeBucket(ctx, existing, schema)
	}

	if err != nil {
		return err
	}

	// Upgrades keep the stored data version, only creation seeds it.
	info := newBucketInfo(schema)
	if existing != nil {
		info.dataVer = existing.dataVer
		info.schema.DataVersion = existing.dataVer
	}

	s.mu.Lock()
	s.buckets[schema.Name] = info
	s.mu.Unlock()

	return nil
}

func (s *Store) createBucket(ctx context.Context, schema Schema) error {
	info := newBucketInfo(schema)

	columns := []string{
		fmt.Sprintf("k %s PRIMARY KEY", info.keyColumnType()),
		"v TEXT NOT NULL",
		"etag TEXT NOT NULL",
	}

	for _, field := range schema.Fields {
		columns = append(columns, fmt.Sprintf("%s %s", fieldColumn(field.Name), fieldColumnType(field.Type)))
	}

	fieldsJSON, err := json.Marshal(schema.Fields)
	if err != nil {
		return err
	}

	err = s.transaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", schema.Name, strings.Join(columns, ", ")))
		if err != nil {
			return err
		}

		err = createFieldIndexes(ctx, tx, schema.Name, schema.Fields)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, "INSERT INTO napi_buckets (name, version, key_kind, fields, data_version) VALUES (?, ?, ?, ?, ?)",
			schema.Name, schema.Version, string(schema.KeyKind), string(fieldsJSON), schema.DataVersion)

		return err
	})
	if err != nil {
		return fmt.Errorf("failed to create bucket %q: %w", schema.Name, err)
	}

	logger.Info("Created bucket", logger.Ctx{"bucket": schema.Name, "version": schema.Version})

	return nil
}

func (s *Store) upgradeBucket(ctx context.Context, existing *bucketInfo, schema Schema) error {
	var added []IndexField
	for _, field := range schema.Fields {
		oldType, ok := existing.fieldTypes[field.Name]
		if !ok {
			added = append(added, field)
			continue
		}

		if oldType != field.Type {
			return fmt.Errorf("bucket %q: field %q changed type from %q to %q", schema.Name, field.Name, oldType, field.Type)
		}
	}

	fieldsJSON, err := json.Marshal(schema.Fields)
	if err != nil {
		return err
	}

	err = s.transaction(ctx, func(tx *sql.Tx) error {
		for _, field := range added {
			_, err := tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", schema.Name, fieldColumn(field.Name), fieldColumnType(field.Type)))
			if err != nil {
				return err
			}
		}

		err := createFieldIndexes(ctx, tx, schema.Name, added)
		if err != nil {
			return err
		}

		if len(added) > 0 {
			err = backfillFields(ctx, tx, schema.Name, added)
			if err != nil {
				return err
			}
		}

		_, err = tx.ExecContext(ctx, "UPDATE napi_buckets SET version = ?, fields = ? WHERE name = ?",
			schema.Version, string(fieldsJSON), schema.Name)

		return err
	})
	if err != nil {
		return fmt.Errorf("failed to upgrade bucket %q to version %d: %w", schema.Name, schema.Version, err)
	}

	logger.Info("Upgraded bucket", logger.Ctx{"bucket": schema.Name, "version": schema.Version, "newFields": len(added)})

	return nil
}

func createFieldIndexes(ctx context.Context, tx *sql.Tx, bucket string, fields []IndexField) error {
	for _, field := range fields {
		_, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s (%s)",
			bucket, field.Name, bucket, fieldColumn(field.Name)))
		if err != nil {
			return err
		}
	}

	return nil
}

// backfillFields populates newly added index columns from the stored JSON.
// Rows are read up front so the update statements don't run against an open
// cursor on the same connection.
func backfillFields(ctx context.Context, tx *sql.Tx, bucket string, fields []IndexField) error {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf("SELECT rowid, v FROM %s", bucket))
	if err != nil {
		return err
	}

	type pending struct {
		rowid int64
		value string
	}

	var all []pending
	for rows.Next() {
		var p pending

		err = rows.Scan(&p.rowid, &p.value)
		if err != nil {
			_ = rows.Close()
			return err
		}

		all = append(all, p)
	}

	err = rows.Err()
	if err != nil {
		_ = rows.Close()
		return err
	}

	err = rows.Close()
	if err != nil {
		return err
	}

	assignments := make([]string, len(fields))
	for i, field := range fields {
		assignments[i] = fieldColumn(field.Name) + " = ?"
	}

	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE rowid = ?", bucket, strings.Join(assignments, ", "))

	for _, p := range all {
		var doc map[string]any

		err = json.Unmarshal([]byte(p.value), &doc)
		if err != nil {
			return fmt.Errorf("row %d holds corrupt JSON: %w", p.rowid, err)
		}

		args := make([]any, 0, len(fields)+1)
		for _, field := range fields {
			arg, err := encodeFieldValue(field.Type, doc[field.Name])
			if err != nil {
				return fmt.Errorf("row %d field %q: %w", p.rowid, field.Name, err)
			}

			args = append(args, arg)
		}

		args = append(args, p.rowid)

		_, err = tx.ExecContext(ctx, stmt, args...)
		if err != nil {
			return err
		}
	}

	return nil
}

// DeleteBucket drops the bucket and all its objects.
func (s *Store) DeleteBucket(ctx context.Context, name string) error {
	_, err := s.bucket(name)
	if err != nil {
		return err
	}

	err = s.transaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE %s", name))
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, "DELETE FROM napi_buckets WHERE name = ?", name)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete bucket %q: %w", name, err)
	}

	s.mu.Lock()
	delete(s.buckets, name)
	s.mu.Unlock()

	logger.Info("Deleted bucket", logger.Ctx{"bucket": name})

	return nil
}
