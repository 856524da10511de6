package main

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/netfabric/napi/napid/models"
	"github.com/netfabric/napi/napid/response"
	"github.com/netfabric/napi/shared/api"
)

var networkIPsCmd = APIEndpoint{
	Name: "network_ips",
	Path: "networks/{uuid}/ips",

	Get: APIEndpointAction{Handler: networkIPsGet},
}

var networkIPCmd = APIEndpoint{
	Name: "network_ip",
	Path: "networks/{uuid}/ips/{ip}",

	Get: APIEndpointAction{Handler: networkIPGet},
	Put: APIEndpointAction{Handler: networkIPPut},
}

func networkIPsGet(d *Daemon, r *http.Request) response.Response {
	var params models.IPListParams

	err := decodeQuery(r, &params)
	if err != nil {
		return response.SmartError(err)
	}

	ips, total, err := d.State().ListIPs(r.Context(), mux.Vars(r)["uuid"], params)
	if err != nil {
		return response.SmartError(err)
	}

	return response.SyncResponseHeaders(ips, map[string]string{"X-Total-Count": strconv.Itoa(total)})
}

func networkIPGet(d *Daemon, r *http.Request) response.Response {
	vars := mux.Vars(r)

	ip, err := d.State().GetIP(r.Context(), vars["uuid"], vars["ip"])
	if err != nil {
		return response.SmartError(err)
	}

	return response.SyncResponse(ip)
}

func networkIPPut(d *Daemon, r *http.Request) response.Response {
	var params api.IPUpdate

	err := decodeBody(r, &params)
	if err != nil {
		return response.SmartError(err)
	}

	vars := mux.Vars(r)

	ip, err := d.State().UpdateIP(r.Context(), vars["uuid"], vars["ip"], params)
	if err != nil {
		return response.SmartError(err)
	}

	return response.SyncResponse(ip)
}
