package main

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/netfabric/napi/napid/models"
	"github.com/netfabric/napi/napid/response"
	"github.com/netfabric/napi/shared/api"
)

var nicsCmd = APIEndpoint{
	Name: "nics",
	Path: "nics",

	Get:  APIEndpointAction{Handler: nicsGet},
	Post: APIEndpointAction{Handler: nicsPost},
}

var nicCmd = APIEndpoint{
	Name: "nic",
	Path: "nics/{mac}",

	Get:    APIEndpointAction{Handler: nicGet},
	Put:    APIEndpointAction{Handler: nicPut},
	Delete: APIEndpointAction{Handler: nicDelete},
}

func nicsGet(d *Daemon, r *http.Request) response.Response {
	var params models.NicListParams

	err := decodeQuery(r, &params)
	if err != nil {
		return response.SmartError(err)
	}

	nics, total, err := d.State().ListNics(r.Context(), params)
	if err != nil {
		return response.SmartError(err)
	}

	return response.SyncResponseHeaders(nics, map[string]string{"X-Total-Count": strconv.Itoa(total)})
}

func nicsPost(d *Daemon, r *http.Request) response.Response {
	var params api.NicCreate

	err := decodeBody(r, &params)
	if err != nil {
		return response.SmartError(err)
	}

	nic, err := d.State().CreateNic(r.Context(), params)
	if err != nil {
		return response.SmartError(err)
	}

	return response.SyncResponse(nic)
}

func nicGet(d *Daemon, r *http.Request) response.Response {
	nic, err := d.State().GetNic(r.Context(), mux.Vars(r)["mac"])
	if err != nil {
		return response.SmartError(err)
	}

	return response.SyncResponse(nic)
}

func nicPut(d *Daemon, r *http.Request) response.Response {
	var params api.NicUpdate

	err := decodeBody(r, &params)
	if err != nil {
		return response.SmartError(err)
	}

	nic, err := d.State().UpdateNic(r.Context(), mux.Vars(r)["mac"], params)
	if err != nil {
		return response.SmartError(err)
	}

	return response.SyncResponse(nic)
}

func nicDelete(d *Daemon, r *http.Request) response.Response {
	return response.SmartError(d.State().DeleteNic(r.Context(), mux.Vars(r)["mac"]))
}
