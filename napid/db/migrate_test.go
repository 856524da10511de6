package db_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netfabric/napi/napid/db"
)

func TestRunMigrations(t *testing.T) {
	store, cleanup := db.NewTestStore(t)
	defer cleanup()

	ctx := context.Background()

	schema := recordSchema("records", 1)
	schema.DataVersion = 1
	require.NoError(t, store.EnsureBucket(ctx, schema))

	_, err := store.Put(ctx, "records", "a", map[string]any{"owner": "alice"}, db.PutOptions{})
	require.NoError(t, err)

	_, err = store.Put(ctx, "records", "b", map[string]any{"owner": "bob", "size": 9}, db.PutOptions{})
	require.NoError(t, err)

	calls := 0
	fillSize := db.Migration{
		Bucket:  "records",
		Version: 2,
		Transform: func(key string, value json.RawMessage) (json.RawMessage, error) {
			calls++

			var doc map[string]any

			err := json.Unmarshal(value, &doc)
			if err != nil {
				return nil, err
			}

			if _, ok := doc["size"]; ok {
				return nil, nil
			}

			doc["size"] = 1
			return json.Marshal(doc)
		},
	}

	require.NoError(t, store.RunMigrations(ctx, []db.Migration{fillSize}))
	assert.Equal(t, 2, calls)

	version, err := store.DataVersion("records")
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	// The backfilled value answers filters too.
	result, err := store.Find(ctx, "records", db.Eq("size", 1), db.FindOptions{})
	require.NoError(t, err)
	require.Len(t, result.Objects, 1)
	assert.Equal(t, "a", result.Objects[0].Key)

	var rec record
	require.NoError(t, result.Objects[0].Unmarshal(&rec))
	assert.Equal(t, "alice", rec.Owner)
	assert.Equal(t, 1, rec.Size)

	// Already applied migrations don't run again.
	require.NoError(t, store.RunMigrations(ctx, []db.Migration{fillSize}))
	assert.Equal(t, 2, calls)
}

func TestRunMigrations_Order(t *testing.T) {
	store, cleanup := db.NewTestStore(t)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, store.EnsureBucket(ctx, recordSchema("records", 1)))

	_, err := store.Put(ctx, "records", "a", map[string]any{"size": 0}, db.PutOptions{})
	require.NoError(t, err)

	bump := func(version int) db.Migration {
		return db.Migration{
			Bucket:  "records",
			Version: version,
			Transform: func(key string, value json.RawMessage) (json.RawMessage, error) {
				var doc map[string]any

				err := json.Unmarshal(value, &doc)
				if err != nil {
					return nil, err
				}

				doc["size"] = doc["size"].(float64)*10 + float64(version)
				return json.Marshal(doc)
			},
		}
	}

	// Passed out of order, they still apply in version order.
	require.NoError(t, store.RunMigrations(ctx, []db.Migration{bump(2), bump(1)}))

	obj, err := store.Get(ctx, "records", "a")
	require.NoError(t, err)

	var rec record
	require.NoError(t, obj.Unmarshal(&rec))
	assert.Equal(t, 12, rec.Size)
}
