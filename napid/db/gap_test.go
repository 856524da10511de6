package db_test

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netfabric/napi/napid/db"
)

func newGapStore(t *testing.T, kind db.KeyKind) (*db.Store, func()) {
	store, cleanup := db.NewTestStore(t)

	err := store.EnsureBucket(context.Background(), db.Schema{
		Name:    "slots",
		Version: 1,
		KeyKind: kind,
	})
	require.NoError(t, err)

	return store, cleanup
}

func occupy(t *testing.T, store *db.Store, kind db.KeyKind, ns ...int64) {
	for _, n := range ns {
		key := fmt.Sprintf("%d", n)
		if kind == db.KeyHex128 {
			key = fmt.Sprintf("%032x", n)
		}

		_, err := store.Put(context.Background(), "slots", key, record{Size: int(n)}, db.PutOptions{})
		require.NoError(t, err)
	}
}

func gapBounds(gaps []db.Gap) [][2]int64 {
	out := make([][2]int64, len(gaps))
	for i, gap := range gaps {
		out[i] = [2]int64{gap.Lo.Int64(), gap.Hi.Int64()}
	}

	return out
}

func TestGapScan(t *testing.T) {
	for _, kind := range []db.KeyKind{db.KeyDecimal, db.KeyHex128} {
		t.Run(string(kind), func(t *testing.T) {
			store, cleanup := newGapStore(t, kind)
			defer cleanup()

			ctx := context.Background()

			// An untouched window is one whole gap.
			gaps, err := store.GapScan(ctx, "slots", big.NewInt(10), big.NewInt(20), 0)
			require.NoError(t, err)
			assert.Equal(t, [][2]int64{{10, 20}}, gapBounds(gaps))

			occupy(t, store, kind, 10, 11, 13, 17, 20)

			gaps, err = store.GapScan(ctx, "slots", big.NewInt(10), big.NewInt(20), 0)
			require.NoError(t, err)
			assert.Equal(t, [][2]int64{{12, 12}, {14, 16}, {18, 19}}, gapBounds(gaps))

			// The limit stops the scan after the first gap.
			gaps, err = store.GapScan(ctx, "slots", big.NewInt(10), big.NewInt(20), 1)
			require.NoError(t, err)
			assert.Equal(t, [][2]int64{{12, 12}}, gapBounds(gaps))

			// Occupied keys outside the window don't count.
			gaps, err = store.GapScan(ctx, "slots", big.NewInt(13), big.NewInt(17), 0)
			require.NoError(t, err)
			assert.Equal(t, [][2]int64{{14, 16}}, gapBounds(gaps))

			// A full window has no gaps.
			occupy(t, store, kind, 12, 14, 15, 16, 18, 19)

			gaps, err = store.GapScan(ctx, "slots", big.NewInt(10), big.NewInt(20), 0)
			require.NoError(t, err)
			assert.Empty(t, gaps)
		})
	}
}

func TestGapScan_Edges(t *testing.T) {
	store, cleanup := newGapStore(t, db.KeyDecimal)
	defer cleanup()

	ctx := context.Background()

	occupy(t, store, db.KeyDecimal, 12, 13)

	// Gaps at both window edges are reported.
	gaps, err := store.GapScan(ctx, "slots", big.NewInt(10), big.NewInt(15), 0)
	require.NoError(t, err)
	assert.Equal(t, [][2]int64{{10, 11}, {14, 15}}, gapBounds(gaps))

	// A single key window.
	gaps, err = store.GapScan(ctx, "slots", big.NewInt(12), big.NewInt(12), 0)
	require.NoError(t, err)
	assert.Empty(t, gaps)

	gaps, err = store.GapScan(ctx, "slots", big.NewInt(11), big.NewInt(11), 0)
	require.NoError(t, err)
	assert.Equal(t, [][2]int64{{11, 11}}, gapBounds(gaps))

	// Inverted windows are refused.
	_, err = store.GapScan(ctx, "slots", big.NewInt(15), big.NewInt(10), 0)
	assert.Error(t, err)
}

// Hex keyed buckets hold values beyond 64 bits.
func TestGapScan_Wide(t *testing.T) {
	store, cleanup := newGapStore(t, db.KeyHex128)
	defer cleanup()

	ctx := context.Background()

	lo := new(big.Int).Lsh(big.NewInt(1), 100)
	hi := new(big.Int).Add(lo, big.NewInt(5))
	taken := new(big.Int).Add(lo, big.NewInt(2))

	_, err := store.Put(ctx, "slots", fmt.Sprintf("%032x", taken), record{}, db.PutOptions{})
	require.NoError(t, err)

	gaps, err := store.GapScan(ctx, "slots", lo, hi, 0)
	require.NoError(t, err)
	require.Len(t, gaps, 2)

	assert.Equal(t, lo, gaps[0].Lo)
	assert.Equal(t, new(big.Int).Add(lo, big.NewInt(1)), gaps[0].Hi)
	assert.Equal(t, new(big.Int).Add(lo, big.NewInt(3)), gaps[1].Lo)
	assert.Equal(t, hi, gaps[1].Hi)
}

func TestGapScan_StringKeysRefused(t *testing.T) {
	store, cleanup := newGapStore(t, db.KeyString)
	defer cleanup()

	_, err := store.GapScan(context.Background(), "slots", big.NewInt(0), big.NewInt(10), 0)
	assert.Error(t, err)
}
