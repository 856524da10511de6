package models_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netfabric/napi/napid/db"
)

func TestEnsureBucketsIdempotent(t *testing.T) {
	state, cleanup := newTestState(t)
	defer cleanup()

	ctx := context.Background()

	network := createNetwork(t, state, "again", "10.70.0.0/24", "10.70.0.10", "10.70.0.20", nil)
	provisionNic(t, state, network.UUID, nil)

	// A second startup pass over an existing store changes nothing.
	require.NoError(t, state.EnsureBuckets(ctx))

	got, err := state.GetNetwork(ctx, network.UUID, "")
	require.NoError(t, err)
	assert.Equal(t, network.UUID, got.UUID)

	provisionNic(t, state, network.UUID, nil)
}

// A crash between deleting the network row and dropping its IP bucket
// leaves an orphan bucket; the next startup sweeps it.
func TestOrphanIPBucketSweep(t *testing.T) {
	state, cleanup := newTestState(t)
	defer cleanup()

	ctx := context.Background()

	doomed := createNetwork(t, state, "doomed", "10.71.0.0/24", "10.71.0.10", "10.71.0.20", nil)
	alive := createNetwork(t, state, "alive", "10.71.1.0/24", "10.71.1.10", "10.71.1.20", nil)

	require.NoError(t, state.DB.Delete(ctx, "napi_networks", doomed.UUID, db.DeleteOptions{}))

	orphanBucket := "napi_ips_" + strings.ReplaceAll(doomed.UUID, "-", "_")

	// 172425471 is 10.71.0.255, the broadcast record of the doomed network.
	_, err := state.DB.Get(ctx, orphanBucket, "172425471")
	require.NoError(t, err)

	require.NoError(t, state.EnsureBuckets(ctx))

	_, err = state.DB.Get(ctx, orphanBucket, "172425471")
	assert.ErrorIs(t, err, db.ErrBucketNotFound)

	// The surviving network keeps its records.
	ip, err := state.GetIP(ctx, alive.UUID, "10.71.1.255")
	require.NoError(t, err)
	assert.True(t, ip.Reserved)
}
