package db

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/netfabric/napi/shared/logger"
)

// Migration rewrites the objects of one bucket to a newer data shape.
// Transform receives each stored object and returns its replacement, or nil
// to leave the object untouched. A migration runs once: after it commits the
// bucket's data version is Version and it never runs again.
type Migration struct {
	Bucket    string
	Version   int
	Transform func(key string, value json.RawMessage) (json.RawMessage, error)
}

// RunMigrations applies every migration whose version is newer than its
// bucket's stored data version, in version order per bucket. Each migration
// rewrites the whole bucket and bumps the data version in one transaction.
func (s *Store) RunMigrations(ctx context.Context, migrations []Migration) error {
	ordered := make([]Migration, len(migrations))
	copy(ordered, migrations)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Bucket != ordered[j].Bucket {
			return ordered[i].Bucket < ordered[j].Bucket
		}

		return ordered[i].Version < ordered[j].Version
	})

	for _, m := range ordered {
		info, err := s.bucket(m.Bucket)
		if err != nil {
			return err
		}

		if info.dataVer >= m.Version {
			continue
		}

		err = s.runMigration(ctx, info, m)
		if err != nil {
			return fmt.Errorf("failed to migrate bucket %q to data version %d: %w", m.Bucket, m.Version, err)
		}

		info.dataVer = m.Version

		logger.Info("Migrated bucket data", logger.Ctx{"bucket": m.Bucket, "version": m.Version})
	}

	return nil
}

func (s *Store) runMigration(ctx context.Context, info *bucketInfo, m Migration) error {
	return s.transaction(ctx, func(tx *sql.Tx) error {
		// All rows are read before any is rewritten, so the updates don't
		// run against an open cursor on the same connection.
		objects, err := readAll(ctx, tx, info)
		if err != nil {
			return err
		}

		for _, obj := range objects {
			replacement, err := m.Transform(obj.Key, obj.Value)
			if err != nil {
				return fmt.Errorf("key %q: %w", obj.Key, err)
			}

			if replacement == nil || bytes.Equal(replacement, obj.Value) {
				continue
			}

			_, err = putTx(ctx, tx, info, obj.Key, replacement, PutOptions{IfMatch: obj.Etag})
			if err != nil {
				return fmt.Errorf("key %q: %w", obj.Key, err)
			}
		}

		_, err = tx.ExecContext(ctx, "UPDATE napi_buckets SET data_version = ? WHERE name = ?", m.Version, info.schema.Name)

		return err
	})
}

func readAll(ctx context.Context, tx *sql.Tx, info *bucketInfo) ([]Object, error) {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf("SELECT k, v, etag FROM %s ORDER BY k", info.schema.Name))
	if err != nil {
		return nil, err
	}

	defer func() { _ = rows.Close() }()

	var objects []Object
	for rows.Next() {
		var rawKey any
		var value string

		obj := Object{Bucket: info.schema.Name}

		err = rows.Scan(&rawKey, &value, &obj.Etag)
		if err != nil {
			return nil, err
		}

		obj.Key = info.keyString(rawKey)
		obj.Value = json.RawMessage(value)

		objects = append(objects, obj)
	}

	return objects, rows.Err()
}
