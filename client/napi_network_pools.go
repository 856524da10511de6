package napi

import (
	"fmt"
	"net/url"

	"github.com/netfabric/napi/shared/api"
)

// GetNetworkPools returns a page of network pools and the collection total.
func (r *ProtocolNAPI) GetNetworkPools(filter NetworkPoolFilter) ([]api.NetworkPool, int, error) {
	pools := []api.NetworkPool{}

	total, err := r.queryList("/network_pools", filter.values(), &pools)
	if err != nil {
		return nil, 0, err
	}

	return pools, total, nil
}

// GetNetworkPool returns a network pool entry for the provided UUID.
func (r *ProtocolNAPI) GetNetworkPool(poolUUID string) (*api.NetworkPool, error) {
	pool := api.NetworkPool{}

	err := r.queryStruct("GET", fmt.Sprintf("/network_pools/%s", url.PathEscape(poolUUID)), nil, nil, &pool)
	if err != nil {
		return nil, err
	}

	return &pool, nil
}

// GetNetworkPoolProvisionableBy returns the pool only if the given owner
// passes its ownership predicate; otherwise the daemon answers 403.
func (r *ProtocolNAPI) GetNetworkPoolProvisionableBy(poolUUID string, ownerUUID string) (*api.NetworkPool, error) {
	pool := api.NetworkPool{}
	params := url.Values{"provisionable_by": []string{ownerUUID}}

	err := r.queryStruct("GET", fmt.Sprintf("/network_pools/%s", url.PathEscape(poolUUID)), params, nil, &pool)
	if err != nil {
		return nil, err
	}

	return &pool, nil
}

// CreateNetworkPool defines a new network pool over existing networks of
// one address family.
func (r *ProtocolNAPI) CreateNetworkPool(pool api.NetworkPoolCreate) (*api.NetworkPool, error) {
	created := api.NetworkPool{}

	err := r.queryStruct("POST", "/network_pools", nil, pool, &created)
	if err != nil {
		return nil, err
	}

	return &created, nil
}

// UpdateNetworkPool updates the pool to match the provided fields.
func (r *ProtocolNAPI) UpdateNetworkPool(poolUUID string, pool api.NetworkPoolUpdate) (*api.NetworkPool, error) {
	updated := api.NetworkPool{}

	err := r.queryStruct("PUT", fmt.Sprintf("/network_pools/%s", url.PathEscape(poolUUID)), nil, pool, &updated)
	if err != nil {
		return nil, err
	}

	return &updated, nil
}

// DeleteNetworkPool removes a network pool. Member networks are untouched.
func (r *ProtocolNAPI) DeleteNetworkPool(poolUUID string) error {
	return r.queryStruct("DELETE", fmt.Sprintf("/network_pools/%s", url.PathEscape(poolUUID)), nil, nil, nil)
}

// ProvisionPoolNic creates a nic via the pool dispatcher, which walks the
// member networks in declared order until one yields an address.
// Exhaustion of every eligible member surfaces as a PoolFull error.
func (r *ProtocolNAPI) ProvisionPoolNic(poolUUID string, nic api.NicCreate) (*api.Nic, error) {
	provisioned := api.Nic{}

	err := r.queryStruct("POST", fmt.Sprintf("/network_pools/%s/nics", url.PathEscape(poolUUID)), nil, nic, &provisioned)
	if err != nil {
		return nil, err
	}

	return &provisioned, nil
}
