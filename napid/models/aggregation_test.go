package models_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netfabric/napi/napid/models"
	"github.com/netfabric/napi/shared/api"
)

const cn2UUID = "eeeeeeee-eeee-4eee-8eee-eeeeeeeeeeee"

// createServerNic creates an unbound nic attached to a server, as
// aggregation members must be.
func createServerNic(t *testing.T, s *models.State, mac string, serverUUID string) *api.Nic {
	t.Helper()

	nic, err := s.CreateNic(context.Background(), api.NicCreate{
		MAC:           mac,
		OwnerUUID:     adminUUID,
		BelongsToUUID: serverUUID,
		BelongsToType: api.BelongsToTypeServer,
	})
	require.NoError(t, err)

	return nic
}

func TestCreateAggregation(t *testing.T) {
	state, cleanup := newTestState(t)
	defer cleanup()

	createServerNic(t, state, "90:b8:d0:11:00:01", cnUUID)
	createServerNic(t, state, "90:b8:d0:11:00:02", cnUUID)

	ctx := context.Background()

	// Member spellings normalize to colon hex.
	aggr, err := state.CreateAggregation(ctx, api.AggregationCreate{
		Name: "aggr0",
		MACs: []string{"90-b8-d0-11-00-01", "90b8d0110002"},
	})
	require.NoError(t, err)

	assert.Equal(t, cnUUID+":aggr0", aggr.ID)
	assert.Equal(t, cnUUID, aggr.BelongsToUUID)
	assert.Equal(t, api.LACPModeOff, aggr.LACPMode)
	assert.Equal(t, []string{"90:b8:d0:11:00:01", "90:b8:d0:11:00:02"}, aggr.MACs)

	got, err := state.GetAggregation(ctx, aggr.ID)
	require.NoError(t, err)
	assert.Equal(t, aggr, got)
}

func TestCreateAggregationValidation(t *testing.T) {
	state, cleanup := newTestState(t)
	defer cleanup()

	createServerNic(t, state, "90:b8:d0:12:00:01", cnUUID)
	createServerNic(t, state, "90:b8:d0:12:00:02", cnUUID)
	createServerNic(t, state, "90:b8:d0:12:00:03", cn2UUID)

	zoned, err := state.CreateNic(context.Background(), api.NicCreate{
		MAC:           "90:b8:d0:12:00:04",
		OwnerUUID:     ownerA,
		BelongsToUUID: zoneUUID,
		BelongsToType: api.BelongsToTypeZone,
	})
	require.NoError(t, err)

	ctx := context.Background()

	cases := map[string]struct {
		params api.AggregationCreate
		field  string
		code   string
	}{
		"missing name": {
			params: api.AggregationCreate{MACs: []string{"90:b8:d0:12:00:01", "90:b8:d0:12:00:02"}},
			field:  "name",
			code:   api.FieldCodeMissing,
		},
		"single member": {
			params: api.AggregationCreate{Name: "bond0", MACs: []string{"90:b8:d0:12:00:01"}},
			field:  "macs",
			code:   api.FieldCodeInvalid,
		},
		"member listed twice": {
			params: api.AggregationCreate{Name: "bond0", MACs: []string{"90:b8:d0:12:00:01", "90b8d0120001"}},
			field:  "macs",
			code:   api.FieldCodeDuplicate,
		},
		"unknown member": {
			params: api.AggregationCreate{Name: "bond0", MACs: []string{"90:b8:d0:12:00:01", "90:b8:d0:12:00:ff"}},
			field:  "macs",
			code:   api.FieldCodeInvalid,
		},
		"zone nic": {
			params: api.AggregationCreate{Name: "bond0", MACs: []string{"90:b8:d0:12:00:01", zoned.MAC}},
			field:  "macs",
			code:   api.FieldCodeInvalid,
		},
		"mixed servers": {
			params: api.AggregationCreate{Name: "bond0", MACs: []string{"90:b8:d0:12:00:01", "90:b8:d0:12:00:03"}},
			field:  "macs",
			code:   api.FieldCodeInvalid,
		},
		"bad lacp mode": {
			params: api.AggregationCreate{Name: "bond0", LACPMode: "auto", MACs: []string{"90:b8:d0:12:00:01", "90:b8:d0:12:00:02"}},
			field:  "lacp_mode",
			code:   api.FieldCodeInvalid,
		},
		"unknown provided tag": {
			params: api.AggregationCreate{Name: "bond0", NicTagsProvided: []string{"ghost"}, MACs: []string{"90:b8:d0:12:00:01", "90:b8:d0:12:00:02"}},
			field:  "nic_tags_provided",
			code:   api.FieldCodeInvalid,
		},
	}

	for name, tc := range cases {
		_, err := state.CreateAggregation(ctx, tc.params)
		apiErr := requireAPIError(t, err, api.ErrCodeInvalidParameters, http.StatusUnprocessableEntity)
		assert.Equal(t, tc.code, fieldCodes(apiErr)[tc.field], "case %q", name)
	}
}

// A MAC sits in at most one aggregation, and ids are unique.
func TestAggregationExclusivity(t *testing.T) {
	state, cleanup := newTestState(t)
	defer cleanup()

	for i := 1; i <= 4; i++ {
		createServerNic(t, state, fmt.Sprintf("90:b8:d0:13:00:0%d", i), cnUUID)
	}

	ctx := context.Background()

	_, err := state.CreateAggregation(ctx, api.AggregationCreate{
		Name: "bond0",
		MACs: []string{"90:b8:d0:13:00:01", "90:b8:d0:13:00:02"},
	})
	require.NoError(t, err)

	_, err = state.CreateAggregation(ctx, api.AggregationCreate{
		Name: "bond1",
		MACs: []string{"90:b8:d0:13:00:02", "90:b8:d0:13:00:03"},
	})
	apiErr := requireAPIError(t, err, api.ErrCodeInvalidParameters, http.StatusUnprocessableEntity)
	assert.Equal(t, api.FieldCodeDuplicate, fieldCodes(apiErr)["macs"])

	_, err = state.CreateAggregation(ctx, api.AggregationCreate{
		Name: "bond0",
		MACs: []string{"90:b8:d0:13:00:03", "90:b8:d0:13:00:04"},
	})
	apiErr = requireAPIError(t, err, api.ErrCodeInvalidParameters, http.StatusUnprocessableEntity)
	assert.Equal(t, api.FieldCodeDuplicate, fieldCodes(apiErr)["name"])
}

func TestUpdateAggregation(t *testing.T) {
	state, cleanup := newTestState(t)
	defer cleanup()

	for i := 1; i <= 3; i++ {
		createServerNic(t, state, fmt.Sprintf("90:b8:d0:14:00:0%d", i), cnUUID)
	}

	createServerNic(t, state, "90:b8:d0:14:00:04", cn2UUID)
	createServerNic(t, state, "90:b8:d0:14:00:05", cn2UUID)
	createTag(t, state, "external")

	ctx := context.Background()

	aggr, err := state.CreateAggregation(ctx, api.AggregationCreate{
		Name: "bond0",
		MACs: []string{"90:b8:d0:14:00:01", "90:b8:d0:14:00:02"},
	})
	require.NoError(t, err)

	active := api.LACPModeActive
	tags := []string{"external"}

	updated, err := state.UpdateAggregation(ctx, aggr.ID, api.AggregationUpdate{
		LACPMode:        &active,
		NicTagsProvided: &tags,
	})
	require.NoError(t, err)
	assert.Equal(t, api.LACPModeActive, updated.LACPMode)
	assert.Equal(t, []string{"external"}, updated.NicTagsProvided)

	// Swap a member for another nic of the same server.
	macs := []string{"90:b8:d0:14:00:01", "90:b8:d0:14:00:03"}
	updated, err = state.UpdateAggregation(ctx, aggr.ID, api.AggregationUpdate{MACs: &macs})
	require.NoError(t, err)
	assert.Equal(t, macs, updated.MACs)

	// Members of another server cannot take over the aggregation.
	foreign := []string{"90:b8:d0:14:00:04", "90:b8:d0:14:00:05"}
	_, err = state.UpdateAggregation(ctx, aggr.ID, api.AggregationUpdate{MACs: &foreign})
	requireAPIError(t, err, api.ErrCodeInvalidParameters, http.StatusUnprocessableEntity)

	ghost := []string{"nope"}
	_, err = state.UpdateAggregation(ctx, aggr.ID, api.AggregationUpdate{NicTagsProvided: &ghost})
	requireAPIError(t, err, api.ErrCodeInvalidParameters, http.StatusUnprocessableEntity)
}

func TestDeleteAggregation(t *testing.T) {
	state, cleanup := newTestState(t)
	defer cleanup()

	createServerNic(t, state, "90:b8:d0:15:00:01", cnUUID)
	createServerNic(t, state, "90:b8:d0:15:00:02", cnUUID)

	ctx := context.Background()

	aggr, err := state.CreateAggregation(ctx, api.AggregationCreate{
		Name: "bond0",
		MACs: []string{"90:b8:d0:15:00:01", "90:b8:d0:15:00:02"},
	})
	require.NoError(t, err)

	// Member nics are pinned while the aggregation exists.
	err = state.DeleteNic(ctx, "90:b8:d0:15:00:01")
	apiErr := requireAPIError(t, err, api.ErrCodeInUse, http.StatusUnprocessableEntity)
	require.Len(t, apiErr.Errors, 1)
	assert.Equal(t, "aggregation", apiErr.Errors[0].Type)
	assert.Equal(t, aggr.ID, apiErr.Errors[0].ID)

	require.NoError(t, state.DeleteAggregation(ctx, aggr.ID))

	_, err = state.GetAggregation(ctx, aggr.ID)
	requireAPIError(t, err, api.ErrCodeResourceNotFound, http.StatusNotFound)

	// Members survive the aggregation and are deletable again.
	require.NoError(t, state.DeleteNic(ctx, "90:b8:d0:15:00:01"))
}

func TestGetAggregationBadID(t *testing.T) {
	state, cleanup := newTestState(t)
	defer cleanup()

	for _, id := range []string{"no-colon", "not-a-uuid:bond0", cnUUID + ":"} {
		_, err := state.GetAggregation(context.Background(), id)
		requireAPIError(t, err, api.ErrCodeInvalidParameters, http.StatusUnprocessableEntity)
	}
}

func TestListAggregationsFilters(t *testing.T) {
	state, cleanup := newTestState(t)
	defer cleanup()

	for i := 1; i <= 4; i++ {
		createServerNic(t, state, fmt.Sprintf("90:b8:d0:16:00:0%d", i), cnUUID)
	}

	createServerNic(t, state, "90:b8:d0:16:00:05", cn2UUID)
	createServerNic(t, state, "90:b8:d0:16:00:06", cn2UUID)

	ctx := context.Background()

	mkAggr := func(name string, macs []string) {
		_, err := state.CreateAggregation(ctx, api.AggregationCreate{Name: name, MACs: macs})
		require.NoError(t, err)
	}

	mkAggr("bond0", []string{"90:b8:d0:16:00:01", "90:b8:d0:16:00:02"})
	mkAggr("bond1", []string{"90:b8:d0:16:00:03", "90:b8:d0:16:00:04"})
	mkAggr("bond0", []string{"90:b8:d0:16:00:05", "90:b8:d0:16:00:06"})

	aggrs, total, err := state.ListAggregations(ctx, models.AggregationListParams{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, aggrs, 3)

	_, total, err = state.ListAggregations(ctx, models.AggregationListParams{BelongsToUUID: cnUUID})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	_, total, err = state.ListAggregations(ctx, models.AggregationListParams{Name: "bond0"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	aggrs, total, err = state.ListAggregations(ctx, models.AggregationListParams{MAC: "90b8d0160003"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, cnUUID+":bond1", aggrs[0].ID)
}
