package main

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/netfabric/napi/napid/models"
	"github.com/netfabric/napi/napid/response"
	"github.com/netfabric/napi/shared/api"
)

var aggregationsCmd = APIEndpoint{
	Name: "aggregations",
	Path: "aggregations",

	Get:  APIEndpointAction{Handler: aggregationsGet},
	Post: APIEndpointAction{Handler: aggregationsPost},
}

var aggregationCmd = APIEndpoint{
	Name: "aggregation",
	Path: "aggregations/{id}",

	Get:    APIEndpointAction{Handler: aggregationGet},
	Put:    APIEndpointAction{Handler: aggregationPut},
	Delete: APIEndpointAction{Handler: aggregationDelete},
}

func aggregationsGet(d *Daemon, r *http.Request) response.Response {
	var params models.AggregationListParams

	err := decodeQuery(r, &params)
	if err != nil {
		return response.SmartError(err)
	}

	aggrs, total, err := d.State().ListAggregations(r.Context(), params)
	if err != nil {
		return response.SmartError(err)
	}

	return response.SyncResponseHeaders(aggrs, map[string]string{"X-Total-Count": strconv.Itoa(total)})
}

func aggregationsPost(d *Daemon, r *http.Request) response.Response {
	var params api.AggregationCreate

	err := decodeBody(r, &params)
	if err != nil {
		return response.SmartError(err)
	}

	aggr, err := d.State().CreateAggregation(r.Context(), params)
	if err != nil {
		return response.SmartError(err)
	}

	return response.SyncResponse(aggr)
}

func aggregationGet(d *Daemon, r *http.Request) response.Response {
	aggr, err := d.State().GetAggregation(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		return response.SmartError(err)
	}

	return response.SyncResponse(aggr)
}

func aggregationPut(d *Daemon, r *http.Request) response.Response {
	var params api.AggregationUpdate

	err := decodeBody(r, &params)
	if err != nil {
		return response.SmartError(err)
	}

	aggr, err := d.State().UpdateAggregation(r.Context(), mux.Vars(r)["id"], params)
	if err != nil {
		return response.SmartError(err)
	}

	return response.SyncResponse(aggr)
}

func aggregationDelete(d *Daemon, r *http.Request) response.Response {
	return response.SmartError(d.State().DeleteAggregation(r.Context(), mux.Vars(r)["id"]))
}
