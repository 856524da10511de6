// Package models holds the NAPI entities and the operations that orchestrate
// them: nic tags, networks and their per-network IP buckets, network pools,
// nics and aggregations. The IP allocator, the nic state machine and the
// pool dispatcher live here too, all speaking to storage through the bucket
// adapter in napid/db.
package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/netfabric/napi/napid/db"
	"github.com/netfabric/napi/shared/api"
	"github.com/netfabric/napi/shared/logger"
)

// EventPublisher receives one event per entity mutation. Implementations
// must not block.
type EventPublisher interface {
	Publish(event api.Event)
}

// AllocatorMetrics observes the IP allocator. Outcomes are "ok",
// "subnet_full", "pool_full" and "conflict".
type AllocatorMetrics interface {
	AllocationOutcome(outcome string)
	AllocationConflict(networkUUID string)
}

// State carries the handles every model operation needs. It is constructed
// once at daemon startup and passed explicitly; the only process globals
// are in the logger.
type State struct {
	DB      *db.Store
	Subnets *SubnetIndex
	Events  EventPublisher
	Metrics AllocatorMetrics

	AdminUUID  string
	MacOUI     uint64
	MTUDefault int
}

// How many times a CAS write is rebuilt from a fresh read before giving up.
const casAttempts = 5

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

func (s *State) publish(eventType string, action string, id string, body any) {
	if s.Events == nil {
		return
	}

	var metadata json.RawMessage
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			logger.Warn("Failed to encode event metadata", logger.Ctx{"type": eventType, "id": id, "err": err})
		} else {
			metadata = raw
		}
	}

	s.Events.Publish(api.Event{
		Type:      eventType,
		Action:    action,
		ID:        id,
		Metadata:  metadata,
		Timestamp: nowMillis(),
	})
}

func (s *State) observeAllocation(outcome string) {
	if s.Metrics != nil {
		s.Metrics.AllocationOutcome(outcome)
	}
}

func (s *State) observeConflict(networkUUID string) {
	if s.Metrics != nil {
		s.Metrics.AllocationConflict(networkUUID)
	}
}

// Page bounds for list operations.
const (
	ListLimitMax     = 1000
	ListLimitDefault = 1000
)

// PageParams are the common limit/offset list parameters. A nil limit means
// the parameter was not supplied; an explicit zero is out of bounds.
type PageParams struct {
	Limit  *int `mapstructure:"limit"`
	Offset int  `mapstructure:"offset"`
}

// normalize applies the default limit and bounds checks.
func (p PageParams) normalize() (int, int, []api.FieldError) {
	var fieldErrs []api.FieldError

	limit := ListLimitDefault
	if p.Limit != nil {
		limit = *p.Limit
		if limit < 1 || limit > ListLimitMax {
			fieldErrs = append(fieldErrs, api.InvalidField("limit", "limit must be between 1 and %d", ListLimitMax))
		}
	}

	if p.Offset < 0 {
		fieldErrs = append(fieldErrs, api.InvalidField("offset", "offset must not be negative"))
	}

	return limit, p.Offset, fieldErrs
}

// storeErr wraps unexpected adapter failures into the API error taxonomy.
// Conflicts and not-found conditions are handled by the callers before this
// runs; anything arriving here is either a transient storage problem that
// survived the retry budget or a bug.
func storeErr(ctx context.Context, err error) error {
	if db.IsRetriableError(err) || ctx.Err() != nil {
		return api.TransientError(err)
	}

	return api.InternalError(err)
}
