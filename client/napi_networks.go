package napi

import (
	"fmt"
	"net/url"

	"github.com/netfabric/napi/shared/api"
)

// GetNetworks returns a page of networks and the collection total.
func (r *ProtocolNAPI) GetNetworks(filter NetworkFilter) ([]api.Network, int, error) {
	networks := []api.Network{}

	total, err := r.queryList("/networks", filter.values(), &networks)
	if err != nil {
		return nil, 0, err
	}

	return networks, total, nil
}

// GetNetwork returns a network entry for the provided UUID.
func (r *ProtocolNAPI) GetNetwork(networkUUID string) (*api.Network, error) {
	network := api.Network{}

	err := r.queryStruct("GET", fmt.Sprintf("/networks/%s", url.PathEscape(networkUUID)), nil, nil, &network)
	if err != nil {
		return nil, err
	}

	return &network, nil
}

// GetNetworkProvisionableBy returns the network only if the given owner
// passes its ownership predicate; otherwise the daemon answers 403.
func (r *ProtocolNAPI) GetNetworkProvisionableBy(networkUUID string, ownerUUID string) (*api.Network, error) {
	network := api.Network{}
	params := url.Values{"provisionable_by": []string{ownerUUID}}

	err := r.queryStruct("GET", fmt.Sprintf("/networks/%s", url.PathEscape(networkUUID)), params, nil, &network)
	if err != nil {
		return nil, err
	}

	return &network, nil
}

// CreateNetwork defines a new network. Derived fields (netmask, subnet
// bounds, family) are filled in by the daemon.
func (r *ProtocolNAPI) CreateNetwork(network api.NetworkCreate) (*api.Network, error) {
	created := api.Network{}

	err := r.queryStruct("POST", "/networks", nil, network, &created)
	if err != nil {
		return nil, err
	}

	return &created, nil
}

// UpdateNetwork updates the network to match the provided fields.
func (r *ProtocolNAPI) UpdateNetwork(networkUUID string, network api.NetworkUpdate) (*api.Network, error) {
	updated := api.Network{}

	err := r.queryStruct("PUT", fmt.Sprintf("/networks/%s", url.PathEscape(networkUUID)), nil, network, &updated)
	if err != nil {
		return nil, err
	}

	return &updated, nil
}

// DeleteNetwork removes a network. Networks still holding provisioned nics
// or referenced by a pool are refused with an InUse error.
func (r *ProtocolNAPI) DeleteNetwork(networkUUID string) error {
	return r.queryStruct("DELETE", fmt.Sprintf("/networks/%s", url.PathEscape(networkUUID)), nil, nil, nil)
}

// ProvisionNic creates a nic on the network, allocating its address there.
// Exhaustion surfaces as a SubnetFull error.
func (r *ProtocolNAPI) ProvisionNic(networkUUID string, nic api.NicCreate) (*api.Nic, error) {
	provisioned := api.Nic{}

	err := r.queryStruct("POST", fmt.Sprintf("/networks/%s/nics", url.PathEscape(networkUUID)), nil, nic, &provisioned)
	if err != nil {
		return nil, err
	}

	return &provisioned, nil
}
