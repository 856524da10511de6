package napi

import (
	"fmt"
	"net/url"

	"github.com/netfabric/napi/shared/api"
)

// GetNicTags returns a page of nic tags and the collection total.
func (r *ProtocolNAPI) GetNicTags(filter NicTagFilter) ([]api.NicTag, int, error) {
	tags := []api.NicTag{}

	total, err := r.queryList("/nic_tags", filter.values(), &tags)
	if err != nil {
		return nil, 0, err
	}

	return tags, total, nil
}

// GetNicTag returns a nic tag entry for the provided name.
func (r *ProtocolNAPI) GetNicTag(name string) (*api.NicTag, error) {
	tag := api.NicTag{}

	err := r.queryStruct("GET", fmt.Sprintf("/nic_tags/%s", url.PathEscape(name)), nil, nil, &tag)
	if err != nil {
		return nil, err
	}

	return &tag, nil
}

// CreateNicTag defines a new nic tag.
func (r *ProtocolNAPI) CreateNicTag(tag api.NicTagCreate) (*api.NicTag, error) {
	created := api.NicTag{}

	err := r.queryStruct("POST", "/nic_tags", nil, tag, &created)
	if err != nil {
		return nil, err
	}

	return &created, nil
}

// UpdateNicTag updates the nic tag to match the provided fields.
func (r *ProtocolNAPI) UpdateNicTag(name string, tag api.NicTagUpdate) (*api.NicTag, error) {
	updated := api.NicTag{}

	err := r.queryStruct("PUT", fmt.Sprintf("/nic_tags/%s", url.PathEscape(name)), nil, tag, &updated)
	if err != nil {
		return nil, err
	}

	return &updated, nil
}

// DeleteNicTag removes a nic tag. Tags still referenced by a network are
// refused with an InUse error.
func (r *ProtocolNAPI) DeleteNicTag(name string) error {
	return r.queryStruct("DELETE", fmt.Sprintf("/nic_tags/%s", url.PathEscape(name)), nil, nil, nil)
}
