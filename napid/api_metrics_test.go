package main

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netfabric/napi/shared/api"
)

// The exposition carries allocator and request series after some traffic.
func TestMetricsExposition(t *testing.T) {
	_, server, cleanup := newTestDaemon(t)
	defer cleanup()

	network := createNetwork(t, server.URL, "meter", "10.70.0.0/30", "10.70.0.1", "10.70.0.2", nil)

	provisionNic(t, server.URL, network.UUID, nil)
	provisionNic(t, server.URL, network.UUID, nil)

	// One exhausted allocation for the failure counter.
	resp, content := doRequest(t, http.MethodPost, server.URL+"/networks/"+network.UUID+"/nics", api.NicCreate{
		OwnerUUID:     ownerA,
		BelongsToUUID: zoneUUID,
		BelongsToType: api.BelongsToTypeZone,
	})
	requireErrorBody(t, resp, content, http.StatusInsufficientStorage, api.ErrCodeSubnetFull)

	resp, content = doRequest(t, http.MethodGet, server.URL+"/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")

	exposition := string(content)
	assert.Contains(t, exposition, `napi_ip_allocations_total{outcome="ok"} 2`)
	assert.Contains(t, exposition, `napi_ip_allocations_total{outcome="subnet_full"} 1`)
	assert.Contains(t, exposition, `napi_api_requests_total{endpoint="network_nics",method="POST",status="200"} 2`)
	assert.Contains(t, exposition, `napi_api_requests_total{endpoint="network_nics",method="POST",status="507"} 1`)
	assert.Contains(t, exposition, "napi_api_request_duration_seconds_bucket")
}
