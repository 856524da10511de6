package napi

import (
	"fmt"
	"net/url"

	"github.com/netfabric/napi/shared/api"
)

// GetAggregations returns a page of link aggregations and the collection
// total.
func (r *ProtocolNAPI) GetAggregations(filter AggregationFilter) ([]api.Aggregation, int, error) {
	aggrs := []api.Aggregation{}

	total, err := r.queryList("/aggregations", filter.values(), &aggrs)
	if err != nil {
		return nil, 0, err
	}

	return aggrs, total, nil
}

// GetAggregation returns an aggregation entry for the provided id, which
// is "<belongs_to_uuid>:<name>".
func (r *ProtocolNAPI) GetAggregation(id string) (*api.Aggregation, error) {
	aggr := api.Aggregation{}

	err := r.queryStruct("GET", fmt.Sprintf("/aggregations/%s", url.PathEscape(id)), nil, nil, &aggr)
	if err != nil {
		return nil, err
	}

	return &aggr, nil
}

// CreateAggregation defines a new link aggregation over existing server
// nics.
func (r *ProtocolNAPI) CreateAggregation(aggr api.AggregationCreate) (*api.Aggregation, error) {
	created := api.Aggregation{}

	err := r.queryStruct("POST", "/aggregations", nil, aggr, &created)
	if err != nil {
		return nil, err
	}

	return &created, nil
}

// UpdateAggregation updates the aggregation to match the provided fields.
func (r *ProtocolNAPI) UpdateAggregation(id string, aggr api.AggregationUpdate) (*api.Aggregation, error) {
	updated := api.Aggregation{}

	err := r.queryStruct("PUT", fmt.Sprintf("/aggregations/%s", url.PathEscape(id)), nil, aggr, &updated)
	if err != nil {
		return nil, err
	}

	return &updated, nil
}

// DeleteAggregation removes a link aggregation. Member nics are untouched.
func (r *ProtocolNAPI) DeleteAggregation(id string) error {
	return r.queryStruct("DELETE", fmt.Sprintf("/aggregations/%s", url.PathEscape(id)), nil, nil, nil)
}
