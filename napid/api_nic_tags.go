package main

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/netfabric/napi/napid/models"
	"github.com/netfabric/napi/napid/response"
	"github.com/netfabric/napi/shared/api"
)

var nicTagsCmd = APIEndpoint{
	Name: "nic_tags",
	Path: "nic_tags",

	Get:  APIEndpointAction{Handler: nicTagsGet},
	Post: APIEndpointAction{Handler: nicTagsPost},
}

var nicTagCmd = APIEndpoint{
	Name: "nic_tag",
	Path: "nic_tags/{name}",

	Get:    APIEndpointAction{Handler: nicTagGet},
	Put:    APIEndpointAction{Handler: nicTagPut},
	Delete: APIEndpointAction{Handler: nicTagDelete},
}

func nicTagsGet(d *Daemon, r *http.Request) response.Response {
	var params models.NicTagListParams

	err := decodeQuery(r, &params)
	if err != nil {
		return response.SmartError(err)
	}

	tags, total, err := d.State().ListNicTags(r.Context(), params)
	if err != nil {
		return response.SmartError(err)
	}

	return response.SyncResponseHeaders(tags, map[string]string{"X-Total-Count": strconv.Itoa(total)})
}

func nicTagsPost(d *Daemon, r *http.Request) response.Response {
	var params api.NicTagCreate

	err := decodeBody(r, &params)
	if err != nil {
		return response.SmartError(err)
	}

	tag, err := d.State().CreateNicTag(r.Context(), params)
	if err != nil {
		return response.SmartError(err)
	}

	return response.SyncResponse(tag)
}

func nicTagGet(d *Daemon, r *http.Request) response.Response {
	tag, err := d.State().GetNicTag(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		return response.SmartError(err)
	}

	return response.SyncResponse(tag)
}

func nicTagPut(d *Daemon, r *http.Request) response.Response {
	var params api.NicTagUpdate

	err := decodeBody(r, &params)
	if err != nil {
		return response.SmartError(err)
	}

	tag, err := d.State().UpdateNicTag(r.Context(), mux.Vars(r)["name"], params)
	if err != nil {
		return response.SmartError(err)
	}

	return response.SyncResponse(tag)
}

func nicTagDelete(d *Daemon, r *http.Request) response.Response {
	return response.SmartError(d.State().DeleteNicTag(r.Context(), mux.Vars(r)["name"]))
}
