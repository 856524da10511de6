package models

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/netfabric/napi/napid/db"
	"github.com/netfabric/napi/shared/api"
	"github.com/netfabric/napi/shared/validate"
)

// NicTagListParams filter GET /nic_tags.
type NicTagListParams struct {
	PageParams `mapstructure:",squash"`

	Name string `mapstructure:"name"`
	UUID string `mapstructure:"uuid"`
}

func (s *State) nicTagByName(ctx context.Context, name string) (*api.NicTag, string, error) {
	obj, err := s.DB.Get(ctx, bucketNicTags, name)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, "", api.NotFoundError("Nic tag %q not found", name)
		}

		return nil, "", storeErr(ctx, err)
	}

	var tag api.NicTag
	err = obj.Unmarshal(&tag)
	if err != nil {
		return nil, "", api.InternalError(err)
	}

	return &tag, obj.Etag, nil
}

// networksUsingTag returns the networks whose nic_tag is name; used for
// reference checks on rename, mtu change and delete.
func (s *State) networksUsingTag(ctx context.Context, name string) ([]api.Network, error) {
	res, err := s.DB.Find(ctx, bucketNetworks, db.Eq("nic_tag", name), db.FindOptions{})
	if err != nil {
		return nil, storeErr(ctx, err)
	}

	networks := make([]api.Network, 0, len(res.Objects))
	for _, obj := range res.Objects {
		var network api.Network

		err = obj.Unmarshal(&network)
		if err != nil {
			return nil, api.InternalError(err)
		}

		networks = append(networks, network)
	}

	return networks, nil
}

// ListNicTags returns nic tags sorted by name, plus the total match count.
func (s *State) ListNicTags(ctx context.Context, params NicTagListParams) ([]api.NicTag, int, error) {
	limit, offset, fieldErrs := params.normalize()
	if len(fieldErrs) > 0 {
		return nil, 0, api.InvalidParamsError(fieldErrs...)
	}

	var clauses []db.Filter
	if params.Name != "" {
		clauses = append(clauses, db.Eq("name", params.Name))
	}

	if params.UUID != "" {
		clauses = append(clauses, db.Eq("uuid", params.UUID))
	}

	res, err := s.DB.Find(ctx, bucketNicTags, db.And(clauses...), db.FindOptions{Limit: limit, Offset: offset})
	if err != nil {
		return nil, 0, storeErr(ctx, err)
	}

	tags := make([]api.NicTag, 0, len(res.Objects))
	for _, obj := range res.Objects {
		var tag api.NicTag

		err = obj.Unmarshal(&tag)
		if err != nil {
			return nil, 0, api.InternalError(err)
		}

		tags = append(tags, tag)
	}

	return tags, res.Total, nil
}

// GetNicTag returns one nic tag by name.
func (s *State) GetNicTag(ctx context.Context, name string) (*api.NicTag, error) {
	tag, _, err := s.nicTagByName(ctx, name)
	return tag, err
}

// CreateNicTag validates and persists a new nic tag. The name is the bucket
// key, so uniqueness comes from the conditional put.
func (s *State) CreateNicTag(ctx context.Context, params api.NicTagCreate) (*api.NicTag, error) {
	var fieldErrs []api.FieldError

	if params.Name == "" {
		fieldErrs = append(fieldErrs, api.MissingField("name"))
	} else {
		err := validate.IsName(params.Name)
		if err != nil {
			fieldErrs = append(fieldErrs, api.InvalidField("name", "%v", err))
		}
	}

	mtu := s.MTUDefault
	if params.MTU != nil {
		mtu = *params.MTU
	}

	err := validate.IsMTU(mtu)
	if err != nil {
		fieldErrs = append(fieldErrs, api.InvalidField("mtu", "%v", err))
	}

	if len(fieldErrs) > 0 {
		return nil, api.InvalidParamsError(fieldErrs...)
	}

	tag := api.NicTag{
		UUID: uuid.New().String(),
		Name: params.Name,
		MTU:  mtu,
	}

	_, err = s.DB.Put(ctx, bucketNicTags, tag.Name, tag, db.PutOptions{IfMissing: true})
	if err != nil {
		if errors.Is(err, db.ErrEtagConflict) {
			return nil, api.InvalidParamsError(api.DuplicateField("name", "Nic tag %q already exists", tag.Name))
		}

		return nil, storeErr(ctx, err)
	}

	s.publish(api.EventTypeNicTag, api.EventActionCreate, tag.Name, tag)

	return &tag, nil
}

// UpdateNicTag changes a nic tag's name or mtu. Renames are refused while
// networks reference the tag; mtu may not drop below the largest mtu of a
// referencing network.
func (s *State) UpdateNicTag(ctx context.Context, name string, params api.NicTagUpdate) (*api.NicTag, error) {
	var fieldErrs []api.FieldError

	if params.Name != nil && *params.Name != name {
		err := validate.IsName(*params.Name)
		if err != nil {
			fieldErrs = append(fieldErrs, api.InvalidField("name", "%v", err))
		}
	}

	if params.MTU != nil {
		err := validate.IsMTU(*params.MTU)
		if err != nil {
			fieldErrs = append(fieldErrs, api.InvalidField("mtu", "%v", err))
		}
	}

	if len(fieldErrs) > 0 {
		return nil, api.InvalidParamsError(fieldErrs...)
	}

	for attempt := 0; attempt < casAttempts; attempt++ {
		tag, etag, err := s.nicTagByName(ctx, name)
		if err != nil {
			return nil, err
		}

		networks, err := s.networksUsingTag(ctx, name)
		if err != nil {
			return nil, err
		}

		rename := params.Name != nil && *params.Name != tag.Name
		if rename && len(networks) > 0 {
			return nil, api.InUseError("Nic tag is referenced by networks and cannot be renamed", networkUseItems(networks)...)
		}

		if params.MTU != nil {
			for _, network := range networks {
				if network.MTU > *params.MTU {
					return nil, api.InvalidParamsError(api.InvalidField("mtu", "mtu is below that of network %q (%d)", network.Name, network.MTU))
				}
			}

			tag.MTU = *params.MTU
		}

		if !rename {
			_, err = s.DB.Put(ctx, bucketNicTags, tag.Name, tag, db.PutOptions{IfMatch: etag})
			if err != nil {
				if errors.Is(err, db.ErrEtagConflict) {
					continue
				}

				return nil, storeErr(ctx, err)
			}

			s.publish(api.EventTypeNicTag, api.EventActionUpdate, tag.Name, tag)

			return tag, nil
		}

		tag.Name = *params.Name

		err = s.DB.Batch(ctx, []db.Op{
			db.PutOp(bucketNicTags, tag.Name, tag, db.PutOptions{IfMissing: true}),
			db.DeleteOp(bucketNicTags, name, db.DeleteOptions{IfMatch: etag}),
		})
		if err != nil {
			var batchErr *db.BatchError
			if errors.As(err, &batchErr) && errors.Is(batchErr.Err, db.ErrEtagConflict) {
				if batchErr.Index == 0 {
					return nil, api.InvalidParamsError(api.DuplicateField("name", "Nic tag %q already exists", tag.Name))
				}

				continue
			}

			return nil, storeErr(ctx, err)
		}

		s.publish(api.EventTypeNicTag, api.EventActionUpdate, tag.Name, tag)

		return tag, nil
	}

	return nil, api.TransientError(db.ErrEtagConflict)
}

// DeleteNicTag removes a nic tag that no network references.
func (s *State) DeleteNicTag(ctx context.Context, name string) error {
	_, etag, err := s.nicTagByName(ctx, name)
	if err != nil {
		return err
	}

	networks, err := s.networksUsingTag(ctx, name)
	if err != nil {
		return err
	}

	if len(networks) > 0 {
		return api.InUseError("Nic tag is referenced by networks", networkUseItems(networks)...)
	}

	err = s.DB.Delete(ctx, bucketNicTags, name, db.DeleteOptions{IfMatch: etag})
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return api.NotFoundError("Nic tag %q not found", name)
		}

		if errors.Is(err, db.ErrEtagConflict) {
			return api.TransientError(err)
		}

		return storeErr(ctx, err)
	}

	s.publish(api.EventTypeNicTag, api.EventActionDelete, name, nil)

	return nil
}

func networkUseItems(networks []api.Network) []api.FieldError {
	items := make([]api.FieldError, 0, len(networks))
	for _, network := range networks {
		items = append(items, api.FieldError{Type: "network", ID: network.UUID, Message: network.Name})
	}

	return items
}
