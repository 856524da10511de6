package main

import (
	"net/http"

	"github.com/netfabric/napi/napid/response"
	"github.com/netfabric/napi/shared/api"
)

var searchIPsCmd = APIEndpoint{
	Name: "search_ips",
	Path: "search/ips",

	Get: APIEndpointAction{Handler: searchIPsGet},
}

type searchIPsParams struct {
	IP string `mapstructure:"ip"`
}

// searchIPsGet looks one address up across every network whose subnet
// contains it.
func searchIPsGet(d *Daemon, r *http.Request) response.Response {
	var params searchIPsParams

	err := decodeQuery(r, &params)
	if err != nil {
		return response.SmartError(err)
	}

	if params.IP == "" {
		return response.SmartError(api.InvalidParamsError(api.MissingField("ip")))
	}

	ips, err := d.State().SearchIPs(r.Context(), params.IP)
	if err != nil {
		return response.SmartError(err)
	}

	return response.SyncResponse(ips)
}
