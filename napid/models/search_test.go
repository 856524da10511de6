package models_test

import (
	"context"
	"net/http"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netfabric/napi/napid/models"
	"github.com/netfabric/napi/shared/api"
)

func TestSubnetIndex(t *testing.T) {
	idx := models.NewSubnetIndex()

	wide := netip.MustParsePrefix("10.50.0.0/16")
	narrow := netip.MustParsePrefix("10.50.1.0/24")

	idx.Add(wide, "net-a")
	idx.Add(wide, "net-b")
	idx.Add(narrow, "net-c")

	// Inside the /24: all three cover it.
	assert.Equal(t, []string{"net-a", "net-b", "net-c"}, idx.Containing(netip.MustParseAddr("10.50.1.7")))

	// Inside the /16 but outside the /24.
	assert.Equal(t, []string{"net-a", "net-b"}, idx.Containing(netip.MustParseAddr("10.50.2.7")))

	assert.Empty(t, idx.Containing(netip.MustParseAddr("10.51.0.1")))
	assert.Empty(t, idx.Containing(netip.MustParseAddr("fd00::1")))

	idx.Remove(wide, "net-a")
	assert.Equal(t, []string{"net-b", "net-c"}, idx.Containing(netip.MustParseAddr("10.50.1.7")))

	// Removing the last member drops the prefix entirely.
	idx.Remove(wide, "net-b")
	idx.Remove(narrow, "net-c")
	assert.Empty(t, idx.Containing(netip.MustParseAddr("10.50.1.7")))

	// Removing from an unknown prefix is a no-op.
	idx.Remove(narrow, "net-c")
}

// The same address found in two networks sharing a subnet: one record
// assigned, the other materialized free.
func TestSearchIPsAcrossNetworks(t *testing.T) {
	state, cleanup := newTestState(t)
	defer cleanup()

	netA := createNetwork(t, state, "searcha", "192.168.50.0/24", "192.168.50.10", "192.168.50.250", nil)
	netB := createNetwork(t, state, "searchb", "192.168.50.0/24", "192.168.50.10", "192.168.50.250", nil)

	nic := provisionNic(t, state, netA.UUID, func(params *api.NicCreate) {
		params.IP = "192.168.50.10"
	})

	ctx := context.Background()

	results, err := state.SearchIPs(ctx, "192.168.50.10")
	require.NoError(t, err)
	require.Len(t, results, 2)

	byNetwork := map[string]api.IP{}
	for _, result := range results {
		byNetwork[result.NetworkUUID] = result
	}

	assigned := byNetwork[netA.UUID]
	assert.False(t, assigned.Free)
	assert.Equal(t, nic.MAC, assigned.BelongsToUUID)

	free := byNetwork[netB.UUID]
	assert.True(t, free.Free)
	assert.Equal(t, "192.168.50.10", free.IP)

	// An address no network covers.
	_, err = state.SearchIPs(ctx, "1.2.3.4")
	requireAPIError(t, err, api.ErrCodeResourceNotFound, http.StatusNotFound)

	_, err = state.SearchIPs(ctx, "not-an-ip")
	requireAPIError(t, err, api.ErrCodeInvalidParameters, http.StatusUnprocessableEntity)
}

// Without an index the search falls back to scanning the networks bucket.
func TestSearchIPsWithoutIndex(t *testing.T) {
	state, cleanup := newTestState(t)
	defer cleanup()

	network := createNetwork(t, state, "noindex", "10.52.0.0/24", "10.52.0.10", "10.52.0.20", nil)

	state.Subnets = nil

	results, err := state.SearchIPs(context.Background(), "10.52.0.15")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, network.UUID, results[0].NetworkUUID)
	assert.True(t, results[0].Free)
}

// Network lifecycle keeps the index current, and a restart rebuild lands in
// the same place.
func TestSearchIPsFollowsNetworkLifecycle(t *testing.T) {
	state, cleanup := newTestState(t)
	defer cleanup()

	netA := createNetwork(t, state, "lifea", "10.53.0.0/24", "10.53.0.10", "10.53.0.20", nil)
	netB := createNetwork(t, state, "lifeb", "10.53.0.0/24", "10.53.0.10", "10.53.0.20", nil)

	ctx := context.Background()

	results, err := state.SearchIPs(ctx, "10.53.0.12")
	require.NoError(t, err)
	assert.Len(t, results, 2)

	require.NoError(t, state.DeleteNetwork(ctx, netB.UUID))

	results, err = state.SearchIPs(ctx, "10.53.0.12")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, netA.UUID, results[0].NetworkUUID)

	// Rebuild from storage, as a restart would.
	state.Subnets = models.NewSubnetIndex()
	require.NoError(t, state.LoadSubnetIndex(ctx))

	results, err = state.SearchIPs(ctx, "10.53.0.12")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, netA.UUID, results[0].NetworkUUID)
}
