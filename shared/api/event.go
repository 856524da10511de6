package api

import (
	"encoding/json"
)

// Changefeed resource names.
const (
	EventTypeNicTag      = "nictag"
	EventTypeNetwork     = "network"
	EventTypeNetworkPool = "network_pool"
	EventTypeNic         = "nic"
	EventTypeIP          = "ip"
	EventTypeAggregation = "aggregation"
)

// Changefeed actions.
const (
	EventActionCreate = "create"
	EventActionUpdate = "update"
	EventActionDelete = "delete"
)

// Event is one changefeed entry streamed to /events listeners.
type Event struct {
	Type      string          `json:"type"`
	Action    string          `json:"action"`
	ID        string          `json:"id"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	Timestamp int64           `json:"timestamp"`
}
