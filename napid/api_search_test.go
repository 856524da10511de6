package main

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netfabric/napi/shared/api"
)

// A search inside a covering subnet materializes the free slot; an address
// no network covers is a 404.
func TestSearchIPsFindsFreeSlot(t *testing.T) {
	_, server, cleanup := newTestDaemon(t)
	defer cleanup()

	network := createNetwork(t, server.URL, "core", "10.0.2.0/24", "10.0.2.10", "10.0.2.20", nil)

	var results []api.IP
	doJSON(t, http.MethodGet, server.URL+"/search/ips?ip=10.0.2.119", nil, http.StatusOK, &results)
	require.Len(t, results, 1)

	assert.True(t, results[0].Free)
	assert.False(t, results[0].Reserved)
	assert.Equal(t, "10.0.2.119", results[0].IP)
	assert.Equal(t, network.UUID, results[0].NetworkUUID)

	resp, content := doRequest(t, http.MethodGet, server.URL+"/search/ips?ip=1.2.3.4", nil)
	requireErrorBody(t, resp, content, http.StatusNotFound, api.ErrCodeResourceNotFound)
}

// Two networks sharing a subnet each contribute a row; bound addresses
// carry their binding.
func TestSearchIPsAcrossNetworks(t *testing.T) {
	_, server, cleanup := newTestDaemon(t)
	defer cleanup()

	netA := createNetwork(t, server.URL, "twina", "192.168.50.0/24", "192.168.50.10", "192.168.50.250", nil)
	netB := createNetwork(t, server.URL, "twinb", "192.168.50.0/24", "192.168.50.10", "192.168.50.250", nil)

	nic := provisionNic(t, server.URL, netA.UUID, func(params *api.NicCreate) {
		params.IP = "192.168.50.10"
	})

	var results []api.IP
	doJSON(t, http.MethodGet, server.URL+"/search/ips?ip=192.168.50.10", nil, http.StatusOK, &results)
	require.Len(t, results, 2)

	byNetwork := map[string]api.IP{}
	for _, result := range results {
		byNetwork[result.NetworkUUID] = result
	}

	assert.False(t, byNetwork[netA.UUID].Free)
	assert.Equal(t, nic.MAC, byNetwork[netA.UUID].BelongsToUUID)
	assert.True(t, byNetwork[netB.UUID].Free)
}

// The ip parameter is required and must parse.
func TestSearchIPsParamValidation(t *testing.T) {
	_, server, cleanup := newTestDaemon(t)
	defer cleanup()

	resp, content := doRequest(t, http.MethodGet, server.URL+"/search/ips", nil)
	apiErr := requireErrorBody(t, resp, content, http.StatusUnprocessableEntity, api.ErrCodeInvalidParameters)
	assert.Equal(t, api.FieldCodeMissing, fieldCodes(apiErr)["ip"])

	resp, content = doRequest(t, http.MethodGet, server.URL+"/search/ips?ip=not-an-ip", nil)
	apiErr = requireErrorBody(t, resp, content, http.StatusUnprocessableEntity, api.ErrCodeInvalidParameters)
	assert.Equal(t, api.FieldCodeInvalid, fieldCodes(apiErr)["ip"])
}
