package main

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/netfabric/napi/napid/models"
	"github.com/netfabric/napi/napid/response"
	"github.com/netfabric/napi/shared/api"
)

var networksCmd = APIEndpoint{
	Name: "networks",
	Path: "networks",

	Get:  APIEndpointAction{Handler: networksGet},
	Post: APIEndpointAction{Handler: networksPost},
}

var networkCmd = APIEndpoint{
	Name: "network",
	Path: "networks/{uuid}",

	Get:    APIEndpointAction{Handler: networkGet},
	Put:    APIEndpointAction{Handler: networkPut},
	Delete: APIEndpointAction{Handler: networkDelete},
}

var networkNicsCmd = APIEndpoint{
	Name: "network_nics",
	Path: "networks/{uuid}/nics",

	Post: APIEndpointAction{Handler: networkNicsPost},
}

// getParams are the query parameters accepted on single-entity gets that
// honor the owner predicate.
type getParams struct {
	ProvisionableBy string `mapstructure:"provisionable_by"`
}

func networksGet(d *Daemon, r *http.Request) response.Response {
	var params models.NetworkListParams

	err := decodeQuery(r, &params)
	if err != nil {
		return response.SmartError(err)
	}

	networks, total, err := d.State().ListNetworks(r.Context(), params)
	if err != nil {
		return response.SmartError(err)
	}

	return response.SyncResponseHeaders(networks, map[string]string{"X-Total-Count": strconv.Itoa(total)})
}

func networksPost(d *Daemon, r *http.Request) response.Response {
	var params api.NetworkCreate

	err := decodeBody(r, &params)
	if err != nil {
		return response.SmartError(err)
	}

	network, err := d.State().CreateNetwork(r.Context(), params)
	if err != nil {
		return response.SmartError(err)
	}

	return response.SyncResponse(network)
}

func networkGet(d *Daemon, r *http.Request) response.Response {
	var params getParams

	err := decodeQuery(r, &params)
	if err != nil {
		return response.SmartError(err)
	}

	network, err := d.State().GetNetwork(r.Context(), mux.Vars(r)["uuid"], params.ProvisionableBy)
	if err != nil {
		return response.SmartError(err)
	}

	return response.SyncResponse(network)
}

func networkPut(d *Daemon, r *http.Request) response.Response {
	var params api.NetworkUpdate

	err := decodeBody(r, &params)
	if err != nil {
		return response.SmartError(err)
	}

	network, err := d.State().UpdateNetwork(r.Context(), mux.Vars(r)["uuid"], params)
	if err != nil {
		return response.SmartError(err)
	}

	return response.SyncResponse(network)
}

func networkDelete(d *Daemon, r *http.Request) response.Response {
	return response.SmartError(d.State().DeleteNetwork(r.Context(), mux.Vars(r)["uuid"]))
}

// networkNicsPost provisions a nic directly on a network, allocating its
// address there.
func networkNicsPost(d *Daemon, r *http.Request) response.Response {
	var params api.NicCreate

	err := decodeBody(r, &params)
	if err != nil {
		return response.SmartError(err)
	}

	nic, err := d.State().ProvisionNic(r.Context(), mux.Vars(r)["uuid"], params)
	if err != nil {
		return response.SmartError(err)
	}

	return response.SyncResponse(nic)
}
