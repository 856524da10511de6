package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// Sort orders find results by one indexed field, or by the bucket key when
// Field is empty.
type Sort struct {
	Field string
	Desc  bool
}

// FindOptions page and order a find. A Limit of zero or less returns every
// match. Without an explicit sort, results order by key ascending.
type FindOptions struct {
	Sort   []Sort
	Limit  int
	Offset int
}

// FindResult holds one page of matches plus the total match count across
// all pages.
type FindResult struct {
	Objects []Object
	Total   int
}

// Find returns the objects matching the filter. The page and the total are
// read in one transaction so they agree.
func (s *Store) Find(ctx context.Context, bucket string, f Filter, opts FindOptions) (*FindResult, error) {
	info, err := s.bucket(bucket)
	if err != nil {
		return nil, err
	}

	where, args, err := compileFilter(info, f)
	if err != nil {
		return nil, err
	}

	order, err := compileSort(info, opts.Sort)
	if err != nil {
		return nil, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = -1
	}

	table := info.schema.Name
	result := &FindResult{}

	err = s.transaction(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", table, where), args...).Scan(&result.Total)
		if err != nil {
			return err
		}

		pageArgs := append(append([]any{}, args...), limit, opts.Offset)

		rows, err := tx.QueryContext(ctx, fmt.Sprintf("SELECT k, v, etag FROM %s WHERE %s ORDER BY %s LIMIT ? OFFSET ?",
			table, where, order), pageArgs...)
		if err != nil {
			return err
		}

		defer func() { _ = rows.Close() }()

		for rows.Next() {
			var rawKey any
			var value string

			obj := Object{Bucket: bucket}

			err = rows.Scan(&rawKey, &value, &obj.Etag)
			if err != nil {
				return err
			}

			obj.Key = info.keyString(rawKey)
			obj.Value = json.RawMessage(value)

			result.Objects = append(result.Objects, obj)
		}

		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// Count returns how many objects match the filter.
func (s *Store) Count(ctx context.Context, bucket string, f Filter) (int, error) {
	info, err := s.bucket(bucket)
	if err != nil {
		return 0, err
	}

	where, args, err := compileFilter(info, f)
	if err != nil {
		return 0, err
	}

	var total int

	err = s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", info.schema.Name, where), args...).Scan(&total)
	if err != nil {
		return 0, err
	}

	return total, nil
}

func compileSort(info *bucketInfo, sorts []Sort) (string, error) {
	if len(sorts) == 0 {
		return "k ASC", nil
	}

	parts := make([]string, 0, len(sorts)+1)
	byKey := false

	for _, sort := range sorts {
		col := "k"

		if sort.Field != "" {
			_, err := info.fieldType(sort.Field)
			if err != nil {
				return "", err
			}

			col = fieldColumn(sort.Field)
		} else {
			byKey = true
		}

		dir := "ASC"
		if sort.Desc {
			dir = "DESC"
		}

		parts = append(parts, col+" "+dir)
	}

	// Tie-break on the key so paging is stable.
	if !byKey {
		parts = append(parts, "k ASC")
	}

	return strings.Join(parts, ", "), nil
}
