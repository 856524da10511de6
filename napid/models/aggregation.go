package models

import (
	"context"
	"errors"
	"strings"

	"github.com/netfabric/napi/napid/db"
	"github.com/netfabric/napi/shared/api"
	"github.com/netfabric/napi/shared/logger"
	"github.com/netfabric/napi/shared/macaddr"
	"github.com/netfabric/napi/shared/validate"
)

// Aggregation member bounds.
const (
	aggrMinMACs = 2
	aggrMaxMACs = 16
)

// AggregationListParams filter GET /aggregations.
type AggregationListParams struct {
	PageParams `mapstructure:",squash"`

	BelongsToUUID string `mapstructure:"belongs_to_uuid"`
	Name          string `mapstructure:"name"`
	MAC           string `mapstructure:"mac"`
}

// aggregationID derives the natural key of an aggregation.
func aggregationID(belongsToUUID string, name string) string {
	return belongsToUUID + ":" + name
}

// parseAggregationID splits an id path parameter back into its parts.
func parseAggregationID(id string) (string, string, error) {
	belongsToUUID, name, ok := strings.Cut(id, ":")
	if !ok || validate.IsUUID(belongsToUUID) != nil || validate.IsName(name) != nil {
		return "", "", api.InvalidParamsError(api.InvalidField("id", "invalid aggregation id %q", id))
	}

	return belongsToUUID, name, nil
}

func (s *State) aggregationByID(ctx context.Context, id string) (*api.Aggregation, string, error) {
	obj, err := s.DB.Get(ctx, bucketAggregations, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, "", api.NotFoundError("Aggregation %q not found", id)
		}

		return nil, "", storeErr(ctx, err)
	}

	var aggr api.Aggregation
	err = obj.Unmarshal(&aggr)
	if err != nil {
		return nil, "", api.InternalError(err)
	}

	return &aggr, obj.Etag, nil
}

// aggregationMembers normalizes and validates the member MAC list: 2..16
// distinct MACs, each an existing nic, all belonging to the same server.
// The shared belongs_to_uuid comes back with the canonical MAC forms.
func (s *State) aggregationMembers(ctx context.Context, macs []string) ([]string, string, []api.FieldError, error) {
	if len(macs) < aggrMinMACs || len(macs) > aggrMaxMACs {
		return nil, "", []api.FieldError{api.InvalidField("macs", "between %d and %d MACs per aggregation", aggrMinMACs, aggrMaxMACs)}, nil
	}

	var fieldErrs []api.FieldError
	var belongsToUUID string

	normalized := make([]string, 0, len(macs))
	seen := make(map[uint64]struct{}, len(macs))

	for _, macStr := range macs {
		mac, err := macaddr.Parse(macStr)
		if err != nil {
			fieldErrs = append(fieldErrs, api.InvalidField("macs", "invalid MAC address %q", macStr))
			continue
		}

		_, dup := seen[mac]
		if dup {
			fieldErrs = append(fieldErrs, api.DuplicateField("macs", "MAC %q appears twice", macaddr.Format(mac)))
			continue
		}

		seen[mac] = struct{}{}

		nic, _, err := s.nicByKey(ctx, macaddr.Key(mac), mac)
		if err != nil {
			if api.IsErrorCode(err, api.ErrCodeResourceNotFound) {
				fieldErrs = append(fieldErrs, api.InvalidField("macs", "nic %q does not exist", macaddr.Format(mac)))
				continue
			}

			return nil, "", nil, err
		}

		if nic.BelongsToType != api.BelongsToTypeServer {
			fieldErrs = append(fieldErrs, api.InvalidField("macs", "nic %q does not belong to a server", nic.MAC))
			continue
		}

		if belongsToUUID == "" {
			belongsToUUID = nic.BelongsToUUID
		} else if nic.BelongsToUUID != belongsToUUID {
			fieldErrs = append(fieldErrs, api.InvalidField("macs", "nic %q belongs to a different server", nic.MAC))
			continue
		}

		normalized = append(normalized, nic.MAC)
	}

	return normalized, belongsToUUID, fieldErrs, nil
}

// macsElsewhere checks that none of the MACs already sit in another
// aggregation.
func (s *State) macsElsewhere(ctx context.Context, macs []string, selfID string) ([]api.FieldError, error) {
	var fieldErrs []api.FieldError

	for _, mac := range macs {
		res, err := s.DB.Find(ctx, bucketAggregations, db.Eq("macs", mac), db.FindOptions{})
		if err != nil {
			return nil, storeErr(ctx, err)
		}

		for _, obj := range res.Objects {
			if obj.Key != selfID {
				fieldErrs = append(fieldErrs, api.DuplicateField("macs", "MAC %q is already in aggregation %q", mac, obj.Key))
				break
			}
		}
	}

	return fieldErrs, nil
}

// validateNicTagsProvided checks that every named tag exists.
func (s *State) validateNicTagsProvided(ctx context.Context, tags []string) ([]api.FieldError, error) {
	var fieldErrs []api.FieldError

	for _, tag := range tags {
		_, _, err := s.nicTagByName(ctx, tag)
		if err != nil {
			if api.IsErrorCode(err, api.ErrCodeResourceNotFound) {
				fieldErrs = append(fieldErrs, api.InvalidField("nic_tags_provided", "nic tag %q does not exist", tag))
				continue
			}

			return nil, err
		}
	}

	return fieldErrs, nil
}

// ListAggregations returns aggregations sorted by id plus the total match
// count.
func (s *State) ListAggregations(ctx context.Context, params AggregationListParams) ([]api.Aggregation, int, error) {
	limit, offset, fieldErrs := params.normalize()
	if len(fieldErrs) > 0 {
		return nil, 0, api.InvalidParamsError(fieldErrs...)
	}

	var clauses []db.Filter
	if params.BelongsToUUID != "" {
		clauses = append(clauses, db.Eq("belongs_to_uuid", params.BelongsToUUID))
	}

	if params.Name != "" {
		clauses = append(clauses, db.Eq("name", params.Name))
	}

	if params.MAC != "" {
		mac, err := parseMACParam(params.MAC)
		if err != nil {
			return nil, 0, err
		}

		clauses = append(clauses, db.Eq("macs", macaddr.Format(mac)))
	}

	res, err := s.DB.Find(ctx, bucketAggregations, db.And(clauses...), db.FindOptions{Limit: limit, Offset: offset})
	if err != nil {
		return nil, 0, storeErr(ctx, err)
	}

	aggrs := make([]api.Aggregation, 0, len(res.Objects))
	for _, obj := range res.Objects {
		var aggr api.Aggregation

		err = obj.Unmarshal(&aggr)
		if err != nil {
			return nil, 0, api.InternalError(err)
		}

		aggrs = append(aggrs, aggr)
	}

	return aggrs, res.Total, nil
}

// GetAggregation returns one aggregation by id.
func (s *State) GetAggregation(ctx context.Context, id string) (*api.Aggregation, error) {
	_, _, err := parseAggregationID(id)
	if err != nil {
		return nil, err
	}

	aggr, _, err := s.aggregationByID(ctx, id)
	return aggr, err
}

// CreateAggregation bonds 2..16 nics of one server under a name. The server
// uuid is derived from the member nics, so the id is too.
func (s *State) CreateAggregation(ctx context.Context, params api.AggregationCreate) (*api.Aggregation, error) {
	var fieldErrs []api.FieldError

	if params.Name == "" {
		fieldErrs = append(fieldErrs, api.MissingField("name"))
	} else {
		err := validate.IsName(params.Name)
		if err != nil {
			fieldErrs = append(fieldErrs, api.InvalidField("name", "%v", err))
		}
	}

	lacpMode := params.LACPMode
	if lacpMode == "" {
		lacpMode = api.LACPModeOff
	} else {
		err := validate.IsLACPMode(lacpMode)
		if err != nil {
			fieldErrs = append(fieldErrs, api.InvalidField("lacp_mode", "%v", err))
		}
	}

	macs, belongsToUUID, memberErrs, err := s.aggregationMembers(ctx, params.MACs)
	if err != nil {
		return nil, err
	}

	fieldErrs = append(fieldErrs, memberErrs...)

	tagErrs, err := s.validateNicTagsProvided(ctx, params.NicTagsProvided)
	if err != nil {
		return nil, err
	}

	fieldErrs = append(fieldErrs, tagErrs...)
	if len(fieldErrs) > 0 {
		return nil, api.InvalidParamsError(fieldErrs...)
	}

	elsewhereErrs, err := s.macsElsewhere(ctx, macs, "")
	if err != nil {
		return nil, err
	}

	if len(elsewhereErrs) > 0 {
		return nil, api.InvalidParamsError(elsewhereErrs...)
	}

	aggr := api.Aggregation{
		ID:              aggregationID(belongsToUUID, params.Name),
		BelongsToUUID:   belongsToUUID,
		Name:            params.Name,
		LACPMode:        lacpMode,
		MACs:            macs,
		NicTagsProvided: params.NicTagsProvided,
	}

	_, err = s.DB.Put(ctx, bucketAggregations, aggr.ID, aggr, db.PutOptions{IfMissing: true})
	if err != nil {
		if errors.Is(err, db.ErrEtagConflict) {
			return nil, api.InvalidParamsError(api.DuplicateField("name", "Aggregation %q already exists", aggr.ID))
		}

		return nil, storeErr(ctx, err)
	}

	s.publish(api.EventTypeAggregation, api.EventActionCreate, aggr.ID, aggr)

	logger.Info("Created aggregation", logger.Ctx{"id": aggr.ID, "macs": len(aggr.MACs)})

	return &aggr, nil
}

// UpdateAggregation changes the member list, the LACP mode or the provided
// tags. The name and the owning server are part of the id and immutable;
// replacement members must still belong to the same server.
func (s *State) UpdateAggregation(ctx context.Context, id string, params api.AggregationUpdate) (*api.Aggregation, error) {
	_, _, err := parseAggregationID(id)
	if err != nil {
		return nil, err
	}

	var fieldErrs []api.FieldError

	if params.LACPMode != nil {
		err := validate.IsLACPMode(*params.LACPMode)
		if err != nil {
			fieldErrs = append(fieldErrs, api.InvalidField("lacp_mode", "%v", err))
		}
	}

	if len(fieldErrs) > 0 {
		return nil, api.InvalidParamsError(fieldErrs...)
	}

	for attempt := 0; attempt < casAttempts; attempt++ {
		aggr, etag, err := s.aggregationByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if params.LACPMode != nil {
			aggr.LACPMode = *params.LACPMode
		}

		if params.NicTagsProvided != nil {
			tagErrs, err := s.validateNicTagsProvided(ctx, *params.NicTagsProvided)
			if err != nil {
				return nil, err
			}

			if len(tagErrs) > 0 {
				return nil, api.InvalidParamsError(tagErrs...)
			}

			aggr.NicTagsProvided = *params.NicTagsProvided
		}

		if params.MACs != nil {
			macs, belongsToUUID, memberErrs, err := s.aggregationMembers(ctx, *params.MACs)
			if err != nil {
				return nil, err
			}

			if len(memberErrs) > 0 {
				return nil, api.InvalidParamsError(memberErrs...)
			}

			if belongsToUUID != aggr.BelongsToUUID {
				return nil, api.InvalidParamsError(api.InvalidField("macs", "nics belong to a different server than the aggregation"))
			}

			elsewhereErrs, err := s.macsElsewhere(ctx, macs, id)
			if err != nil {
				return nil, err
			}

			if len(elsewhereErrs) > 0 {
				return nil, api.InvalidParamsError(elsewhereErrs...)
			}

			aggr.MACs = macs
		}

		_, err = s.DB.Put(ctx, bucketAggregations, id, aggr, db.PutOptions{IfMatch: etag})
		if err != nil {
			if errors.Is(err, db.ErrEtagConflict) {
				continue
			}

			return nil, storeErr(ctx, err)
		}

		s.publish(api.EventTypeAggregation, api.EventActionUpdate, id, *aggr)

		return aggr, nil
	}

	return nil, api.TransientError(db.ErrEtagConflict)
}

// DeleteAggregation removes an aggregation. Member nics are untouched.
func (s *State) DeleteAggregation(ctx context.Context, id string) error {
	_, _, err := parseAggregationID(id)
	if err != nil {
		return err
	}

	_, etag, err := s.aggregationByID(ctx, id)
	if err != nil {
		return err
	}

	err = s.DB.Delete(ctx, bucketAggregations, id, db.DeleteOptions{IfMatch: etag})
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return api.NotFoundError("Aggregation %q not found", id)
		}

		if errors.Is(err, db.ErrEtagConflict) {
			return api.TransientError(err)
		}

		return storeErr(ctx, err)
	}

	s.publish(api.EventTypeAggregation, api.EventActionDelete, id, nil)

	logger.Info("Deleted aggregation", logger.Ctx{"id": id})

	return nil
}
