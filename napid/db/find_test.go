package db_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netfabric/napi/napid/db"
)

func seedRecords(t *testing.T, store *db.Store) {
	recs := map[string]record{
		"a": {Owner: "alice", Size: 1, Active: true, Tags: []string{"red", "blue"}},
		"b": {Owner: "alice", Size: 5, Active: false, Tags: []string{"blue"}},
		"c": {Owner: "bob", Size: 3, Active: true},
		"d": {Size: 7, Active: false, Tags: []string{"red"}},
	}

	for key, rec := range recs {
		_, err := store.Put(context.Background(), "records", key, rec, db.PutOptions{})
		require.NoError(t, err)
	}
}

func findKeys(t *testing.T, store *db.Store, f db.Filter, opts db.FindOptions) []string {
	result, err := store.Find(context.Background(), "records", f, opts)
	require.NoError(t, err)

	keys := make([]string, len(result.Objects))
	for i, obj := range result.Objects {
		keys[i] = obj.Key
	}

	return keys
}

func TestFind_Filters(t *testing.T) {
	store, cleanup := newRecordStore(t)
	defer cleanup()

	seedRecords(t, store)

	cases := []struct {
		name   string
		filter db.Filter
		keys   []string
	}{
		{"eq string", db.Eq("owner", "alice"), []string{"a", "b"}},
		{"eq int", db.Eq("size", 3), []string{"c"}},
		{"eq bool", db.Eq("active", true), []string{"a", "c"}},
		{"array membership", db.Eq("tags", "red"), []string{"a", "d"}},
		{"ne includes absent", db.Ne("owner", "alice"), []string{"c", "d"}},
		{"ge", db.Ge("size", 5), []string{"b", "d"}},
		{"le", db.Le("size", 3), []string{"a", "c"}},
		{"present", db.Present("owner"), []string{"a", "b", "c"}},
		{"absent", db.Absent("owner"), []string{"d"}},
		{"absent array", db.Absent("tags"), []string{"c"}},
		{"and", db.And(db.Eq("owner", "alice"), db.Eq("active", true)), []string{"a"}},
		{"or", db.Or(db.Eq("owner", "bob"), db.Absent("owner")), []string{"c", "d"}},
		{"empty and matches all", db.And(), []string{"a", "b", "c", "d"}},
		{"nil matches all", nil, []string{"a", "b", "c", "d"}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.keys, findKeys(t, store, c.filter, db.FindOptions{}))
		})
	}
}

func TestFind_KeyRange(t *testing.T) {
	store, cleanup := newRecordStore(t)
	defer cleanup()

	seedRecords(t, store)

	keys := findKeys(t, store, db.And(db.KeyGe("b"), db.KeyLe("c")), db.FindOptions{})
	assert.Equal(t, []string{"b", "c"}, keys)

	keys = findKeys(t, store, db.And(db.KeyGe("b"), db.Eq("owner", "alice")), db.FindOptions{})
	assert.Equal(t, []string{"b"}, keys)
}

func TestFind_UnknownField(t *testing.T) {
	store, cleanup := newRecordStore(t)
	defer cleanup()

	_, err := store.Find(context.Background(), "records", db.Eq("shoe_size", 9), db.FindOptions{})
	assert.Error(t, err)

	_, err = store.Find(context.Background(), "records", nil, db.FindOptions{Sort: []db.Sort{{Field: "shoe_size"}}})
	assert.Error(t, err)
}

func TestFind_SortAndPage(t *testing.T) {
	store, cleanup := newRecordStore(t)
	defer cleanup()

	seedRecords(t, store)

	keys := findKeys(t, store, nil, db.FindOptions{Sort: []db.Sort{{Field: "size", Desc: true}}})
	assert.Equal(t, []string{"d", "b", "c", "a"}, keys)

	result, err := store.Find(context.Background(), "records", nil, db.FindOptions{
		Sort:   []db.Sort{{Field: "size"}},
		Limit:  2,
		Offset: 1,
	})
	require.NoError(t, err)

	// The page is cut after sorting, the total counts all matches.
	require.Len(t, result.Objects, 2)
	assert.Equal(t, "c", result.Objects[0].Key)
	assert.Equal(t, "b", result.Objects[1].Key)
	assert.Equal(t, 4, result.Total)

	count, err := store.Count(context.Background(), "records", db.Eq("active", true))
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestUpdate(t *testing.T) {
	store, cleanup := newRecordStore(t)
	defer cleanup()

	seedRecords(t, store)

	ctx := context.Background()

	before, err := store.Get(ctx, "records", "a")
	require.NoError(t, err)

	n, err := store.Update(ctx, "records", db.Eq("owner", "alice"), map[string]any{
		"active": false,
		"size":   0,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// The documents and the filterable columns moved together.
	assert.Equal(t, []string{"c"}, findKeys(t, store, db.Eq("active", true), db.FindOptions{}))

	keys := findKeys(t, store, db.And(db.Eq("owner", "alice"), db.Eq("active", false)), db.FindOptions{})
	assert.Equal(t, []string{"a", "b"}, keys)

	after, err := store.Get(ctx, "records", "a")
	require.NoError(t, err)
	assert.NotEqual(t, before.Etag, after.Etag)

	var rec record
	require.NoError(t, after.Unmarshal(&rec))
	assert.False(t, rec.Active)
	assert.Equal(t, 0, rec.Size)
	assert.Equal(t, "alice", rec.Owner, "untouched fields survive")
	assert.Equal(t, []string{"red", "blue"}, rec.Tags)
}

func TestBatch(t *testing.T) {
	store, cleanup := newRecordStore(t)
	defer cleanup()

	seedRecords(t, store)

	ctx := context.Background()

	err := store.Batch(ctx, []db.Op{
		db.PutOp("records", "e", record{Owner: "eve", Size: 2}, db.PutOptions{IfMissing: true}),
		db.UpdateOp("records", db.Eq("owner", "bob"), map[string]any{"size": 42}),
		db.DeleteOp("records", "d", db.DeleteOptions{}),
	})
	require.NoError(t, err)

	keys := findKeys(t, store, db.Eq("size", 42), db.FindOptions{})
	assert.Equal(t, []string{"c"}, keys)

	_, err = store.Get(ctx, "records", "d")
	assert.ErrorIs(t, err, db.ErrNotFound)

	_, err = store.Get(ctx, "records", "e")
	require.NoError(t, err)
}

// A failing operation rolls back everything before it.
func TestBatch_AllOrNothing(t *testing.T) {
	store, cleanup := newRecordStore(t)
	defer cleanup()

	seedRecords(t, store)

	ctx := context.Background()

	err := store.Batch(ctx, []db.Op{
		db.PutOp("records", "f", record{Owner: "frank"}, db.PutOptions{}),
		db.PutOp("records", "a", record{Owner: "mallory"}, db.PutOptions{IfMissing: true}),
	})
	require.ErrorIs(t, err, db.ErrEtagConflict)

	_, err = store.Get(ctx, "records", "f")
	assert.ErrorIs(t, err, db.ErrNotFound)

	obj, err := store.Get(ctx, "records", "a")
	require.NoError(t, err)

	var rec record
	require.NoError(t, obj.Unmarshal(&rec))
	assert.Equal(t, "alice", rec.Owner)
}
