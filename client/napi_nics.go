package napi

import (
	"fmt"
	"net/url"

	"github.com/netfabric/napi/shared/api"
)

// GetNics returns a page of nics and the collection total.
func (r *ProtocolNAPI) GetNics(filter NicFilter) ([]api.Nic, int, error) {
	nics := []api.Nic{}

	total, err := r.queryList("/nics", filter.values(), &nics)
	if err != nil {
		return nil, 0, err
	}

	return nics, total, nil
}

// GetNic returns a nic entry for the provided MAC. The address is accepted
// in colon-hex, dashed-hex, bare hex or decimal form.
func (r *ProtocolNAPI) GetNic(mac string) (*api.Nic, error) {
	nic := api.Nic{}

	err := r.queryStruct("GET", fmt.Sprintf("/nics/%s", url.PathEscape(mac)), nil, nil, &nic)
	if err != nil {
		return nil, err
	}

	return &nic, nil
}

// CreateNic registers a nic without allocating an address for it. Supplying
// a network_uuid and ip binds an existing record instead.
func (r *ProtocolNAPI) CreateNic(nic api.NicCreate) (*api.Nic, error) {
	created := api.Nic{}

	err := r.queryStruct("POST", "/nics", nil, nic, &created)
	if err != nil {
		return nil, err
	}

	return &created, nil
}

// UpdateNic updates the nic to match the provided fields.
func (r *ProtocolNAPI) UpdateNic(mac string, nic api.NicUpdate) (*api.Nic, error) {
	updated := api.Nic{}

	err := r.queryStruct("PUT", fmt.Sprintf("/nics/%s", url.PathEscape(mac)), nil, nic, &updated)
	if err != nil {
		return nil, err
	}

	return &updated, nil
}

// DeleteNic removes a nic, releasing any address it held back to the
// allocator.
func (r *ProtocolNAPI) DeleteNic(mac string) error {
	return r.queryStruct("DELETE", fmt.Sprintf("/nics/%s", url.PathEscape(mac)), nil, nil, nil)
}
