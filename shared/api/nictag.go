package api

// NicTag is a named link-layer domain. A nic may only attach to a network
// whose nic_tag it carries.
type NicTag struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
	MTU  int    `json:"mtu"`
}

// NicTagCreate are the accepted parameters of POST /nic_tags.
type NicTagCreate struct {
	Name string `json:"name" mapstructure:"name"`
	MTU  *int   `json:"mtu,omitempty" mapstructure:"mtu"`
}

// NicTagUpdate are the accepted parameters of PUT /nic_tags/:name.
type NicTagUpdate struct {
	Name *string `json:"name,omitempty" mapstructure:"name"`
	MTU  *int    `json:"mtu,omitempty" mapstructure:"mtu"`
}
