package api

// LACP modes accepted on an aggregation.
const (
	LACPModeOff     = "off"
	LACPModeActive  = "active"
	LACPModePassive = "passive"
)

// Aggregation is an LACP bond over 2..16 nics of the same server. Its id is
// derived as "<belongs_to_uuid>:<name>".
type Aggregation struct {
	ID              string   `json:"id"`
	BelongsToUUID   string   `json:"belongs_to_uuid"`
	Name            string   `json:"name"`
	LACPMode        string   `json:"lacp_mode"`
	MACs            []string `json:"macs"`
	NicTagsProvided []string `json:"nic_tags_provided,omitempty"`
}

// AggregationCreate are the accepted parameters of POST /aggregations.
type AggregationCreate struct {
	Name            string   `json:"name" mapstructure:"name"`
	MACs            []string `json:"macs" mapstructure:"macs"`
	LACPMode        string   `json:"lacp_mode,omitempty" mapstructure:"lacp_mode"`
	NicTagsProvided []string `json:"nic_tags_provided,omitempty" mapstructure:"nic_tags_provided"`
}

// AggregationUpdate are the accepted parameters of PUT /aggregations/:id.
type AggregationUpdate struct {
	MACs            *[]string `json:"macs,omitempty" mapstructure:"macs"`
	LACPMode        *string   `json:"lacp_mode,omitempty" mapstructure:"lacp_mode"`
	NicTagsProvided *[]string `json:"nic_tags_provided,omitempty" mapstructure:"nic_tags_provided"`
}
