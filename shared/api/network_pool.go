package api

// NetworkPool is an ordered collection of same-family networks traversed in
// declared order when provisioning. nic_tag is derived from the first
// member; nic_tags_present lists every tag appearing across members.
type NetworkPool struct {
	UUID           string   `json:"uuid"`
	Name           string   `json:"name"`
	Description    string   `json:"description,omitempty"`
	Family         string   `json:"family"`
	NicTag         string   `json:"nic_tag"`
	NicTagsPresent []string `json:"nic_tags_present"`
	Networks       []string `json:"networks"`
	OwnerUUIDs     []string `json:"owner_uuids,omitempty"`
}

// NetworkPoolCreate are the accepted parameters of POST /network_pools.
type NetworkPoolCreate struct {
	UUID        string   `json:"uuid,omitempty" mapstructure:"uuid"`
	Name        string   `json:"name" mapstructure:"name"`
	Description string   `json:"description,omitempty" mapstructure:"description"`
	Networks    []string `json:"networks" mapstructure:"networks"`
	OwnerUUIDs  []string `json:"owner_uuids,omitempty" mapstructure:"owner_uuids"`
}

// NetworkPoolUpdate are the accepted parameters of PUT /network_pools/:uuid.
type NetworkPoolUpdate struct {
	Name        *string   `json:"name,omitempty" mapstructure:"name"`
	Description *string   `json:"description,omitempty" mapstructure:"description"`
	Networks    *[]string `json:"networks,omitempty" mapstructure:"networks"`
	OwnerUUIDs  *[]string `json:"owner_uuids,omitempty" mapstructure:"owner_uuids"`
}
