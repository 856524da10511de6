package main

import (
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netfabric/napi/shared/api"
)

// createPool creates a network pool through the API.
func createPool(t *testing.T, baseURL string, name string, networks []string, mutate func(*api.NetworkPoolCreate)) *api.NetworkPool {
	t.Helper()

	params := api.NetworkPoolCreate{
		Name:     name,
		Networks: networks,
	}

	if mutate != nil {
		mutate(&params)
	}

	pool := &api.NetworkPool{}
	doJSON(t, http.MethodPost, baseURL+"/network_pools", params, http.StatusOK, pool)

	return pool
}

// Pool dispatch drains the members in declared order and reports PoolFull
// once every member is exhausted.
func TestNetworkPoolsProvisionSpansMembers(t *testing.T) {
	_, server, cleanup := newTestDaemon(t)
	defer cleanup()

	createTag(t, server.URL, "rack0")

	mutate := func(params *api.NetworkCreate) {
		params.NicTag = "rack0"
	}

	netA := createNetwork(t, server.URL, "pool0", "10.0.0.0/28", "10.0.0.2", "10.0.0.5", mutate)
	netB := createNetwork(t, server.URL, "pool1", "10.0.1.0/28", "10.0.1.9", "10.0.1.12", mutate)

	pool := createPool(t, server.URL, "racks", []string{netA.UUID, netB.UUID}, nil)
	assert.Equal(t, "rack0", pool.NicTag)
	assert.Equal(t, "ipv4", pool.Family)

	params := api.NicCreate{
		OwnerUUID:     ownerA,
		BelongsToUUID: zoneUUID,
		BelongsToType: api.BelongsToTypeZone,
	}

	var mu sync.Mutex
	var wg sync.WaitGroup

	byNetwork := map[string]int{}
	ips := map[string]bool{}

	for i := 0; i < 8; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			nic, err := tryProvision(server.URL, "/network_pools/"+pool.UUID+"/nics", params)
			if err != nil {
				t.Error(err)
				return
			}

			mu.Lock()
			defer mu.Unlock()

			byNetwork[nic.NetworkUUID]++
			ips[nic.NetworkUUID+"/"+nic.IP] = true
		}()
	}

	wg.Wait()

	assert.Len(t, ips, 8)
	assert.Equal(t, 4, byNetwork[netA.UUID])
	assert.Equal(t, 4, byNetwork[netB.UUID])

	// The ninth provision finds every member full.
	resp, content := doRequest(t, http.MethodPost, server.URL+"/network_pools/"+pool.UUID+"/nics", params)
	apiErr := requireErrorBody(t, resp, content, http.StatusUnprocessableEntity, api.ErrCodePoolFull)
	assert.Contains(t, apiErr.Message, pool.UUID)
}

// Pool CRUD over the wire, including the derived tag summary on update.
func TestNetworkPoolsCRUD(t *testing.T) {
	_, server, cleanup := newTestDaemon(t)
	defer cleanup()

	netA := createNetwork(t, server.URL, "edge0", "10.20.0.0/24", "10.20.0.10", "10.20.0.250", nil)
	netB := createNetwork(t, server.URL, "edge1", "10.20.1.0/24", "10.20.1.10", "10.20.1.250", nil)

	pool := createPool(t, server.URL, "edges", []string{netA.UUID}, nil)
	require.NotEmpty(t, pool.UUID)
	assert.Equal(t, []string{"edge0"}, pool.NicTagsPresent)

	got := api.NetworkPool{}
	doJSON(t, http.MethodGet, server.URL+"/network_pools/"+pool.UUID, nil, http.StatusOK, &got)
	assert.Equal(t, *pool, got)

	networks := []string{netA.UUID, netB.UUID}
	updated := api.NetworkPool{}
	doJSON(t, http.MethodPut, server.URL+"/network_pools/"+pool.UUID, api.NetworkPoolUpdate{Networks: &networks}, http.StatusOK, &updated)
	assert.Equal(t, []string{"edge0", "edge1"}, updated.NicTagsPresent)
	assert.Equal(t, networks, updated.Networks)

	var pools []api.NetworkPool
	doJSON(t, http.MethodGet, server.URL+"/network_pools", nil, http.StatusOK, &pools)
	require.Len(t, pools, 1)

	doJSON(t, http.MethodDelete, server.URL+"/network_pools/"+pool.UUID, nil, http.StatusNoContent, nil)

	resp, content := doRequest(t, http.MethodGet, server.URL+"/network_pools/"+pool.UUID, nil)
	requireErrorBody(t, resp, content, http.StatusNotFound, api.ErrCodeResourceNotFound)
}

// Mixing address families in one pool is refused.
func TestNetworkPoolsMixedFamilies(t *testing.T) {
	_, server, cleanup := newTestDaemon(t)
	defer cleanup()

	netV4 := createNetwork(t, server.URL, "four", "10.21.0.0/24", "10.21.0.10", "10.21.0.250", nil)
	netV6 := createNetwork(t, server.URL, "six", "fd00:21::/64", "fd00:21::10", "fd00:21::20", nil)

	resp, content := doRequest(t, http.MethodPost, server.URL+"/network_pools", api.NetworkPoolCreate{
		Name:     "mixed",
		Networks: []string{netV4.UUID, netV6.UUID},
	})
	apiErr := requireErrorBody(t, resp, content, http.StatusUnprocessableEntity, api.ErrCodeInvalidParameters)
	assert.Equal(t, api.FieldCodeInvalid, fieldCodes(apiErr)["networks"])
}
