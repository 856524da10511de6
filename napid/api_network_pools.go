package main

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/netfabric/napi/napid/models"
	"github.com/netfabric/napi/napid/response"
	"github.com/netfabric/napi/shared/api"
)

var networkPoolsCmd = APIEndpoint{
	Name: "network_pools",
	Path: "network_pools",

	Get:  APIEndpointAction{Handler: networkPoolsGet},
	Post: APIEndpointAction{Handler: networkPoolsPost},
}

var networkPoolCmd = APIEndpoint{
	Name: "network_pool",
	Path: "network_pools/{uuid}",

	Get:    APIEndpointAction{Handler: networkPoolGet},
	Put:    APIEndpointAction{Handler: networkPoolPut},
	Delete: APIEndpointAction{Handler: networkPoolDelete},
}

var networkPoolNicsCmd = APIEndpoint{
	Name: "network_pool_nics",
	Path: "network_pools/{uuid}/nics",

	Post: APIEndpointAction{Handler: networkPoolNicsPost},
}

func networkPoolsGet(d *Daemon, r *http.Request) response.Response {
	var params models.NetworkPoolListParams

	err := decodeQuery(r, &params)
	if err != nil {
		return response.SmartError(err)
	}

	pools, total, err := d.State().ListNetworkPools(r.Context(), params)
	if err != nil {
		return response.SmartError(err)
	}

	return response.SyncResponseHeaders(pools, map[string]string{"X-Total-Count": strconv.Itoa(total)})
}

func networkPoolsPost(d *Daemon, r *http.Request) response.Response {
	var params api.NetworkPoolCreate

	err := decodeBody(r, &params)
	if err != nil {
		return response.SmartError(err)
	}

	pool, err := d.State().CreateNetworkPool(r.Context(), params)
	if err != nil {
		return response.SmartError(err)
	}

	return response.SyncResponse(pool)
}

func networkPoolGet(d *Daemon, r *http.Request) response.Response {
	var params getParams

	err := decodeQuery(r, &params)
	if err != nil {
		return response.SmartError(err)
	}

	pool, err := d.State().GetNetworkPool(r.Context(), mux.Vars(r)["uuid"], params.ProvisionableBy)
	if err != nil {
		return response.SmartError(err)
	}

	return response.SyncResponse(pool)
}

func networkPoolPut(d *Daemon, r *http.Request) response.Response {
	var params api.NetworkPoolUpdate

	err := decodeBody(r, &params)
	if err != nil {
		return response.SmartError(err)
	}

	pool, err := d.State().UpdateNetworkPool(r.Context(), mux.Vars(r)["uuid"], params)
	if err != nil {
		return response.SmartError(err)
	}

	return response.SyncResponse(pool)
}

func networkPoolDelete(d *Daemon, r *http.Request) response.Response {
	return response.SmartError(d.State().DeleteNetworkPool(r.Context(), mux.Vars(r)["uuid"]))
}

// networkPoolNicsPost provisions a nic via the pool dispatcher, walking the
// member networks in declared order.
func networkPoolNicsPost(d *Daemon, r *http.Request) response.Response {
	var params api.NicCreate

	err := decodeBody(r, &params)
	if err != nil {
		return response.SmartError(err)
	}

	nic, err := d.State().ProvisionNicOnPool(r.Context(), mux.Vars(r)["uuid"], params)
	if err != nil {
		return response.SmartError(err)
	}

	return response.SyncResponse(nic)
}
