package models_test

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netfabric/napi/napid/models"
	"github.com/netfabric/napi/shared/api"
)

func TestCreateNicTag(t *testing.T) {
	state, cleanup := newTestState(t)
	defer cleanup()

	ctx := context.Background()

	tag, err := state.CreateNicTag(ctx, api.NicTagCreate{Name: "external"})
	require.NoError(t, err)
	assert.Equal(t, "external", tag.Name)
	assert.Equal(t, 1500, tag.MTU)
	assert.NotEmpty(t, tag.UUID)

	jumbo, err := state.CreateNicTag(ctx, api.NicTagCreate{Name: "storage", MTU: intPtr(9000)})
	require.NoError(t, err)
	assert.Equal(t, 9000, jumbo.MTU)

	got, err := state.GetNicTag(ctx, "external")
	require.NoError(t, err)
	assert.Equal(t, tag, got)

	_, err = state.GetNicTag(ctx, "missing")
	requireAPIError(t, err, api.ErrCodeResourceNotFound, http.StatusNotFound)
}

func TestCreateNicTagValidation(t *testing.T) {
	state, cleanup := newTestState(t)
	defer cleanup()

	ctx := context.Background()

	cases := map[string]struct {
		params api.NicTagCreate
		field  string
		code   string
	}{
		"missing name":  {api.NicTagCreate{}, "name", api.FieldCodeMissing},
		"bad character": {api.NicTagCreate{Name: "ad min"}, "name", api.FieldCodeInvalid},
		"too long":      {api.NicTagCreate{Name: strings.Repeat("x", 32)}, "name", api.FieldCodeInvalid},
		"mtu too small": {api.NicTagCreate{Name: "small", MTU: intPtr(1279)}, "mtu", api.FieldCodeInvalid},
		"mtu too large": {api.NicTagCreate{Name: "large", MTU: intPtr(9001)}, "mtu", api.FieldCodeInvalid},
	}

	for name, tc := range cases {
		_, err := state.CreateNicTag(ctx, tc.params)
		apiErr := requireAPIError(t, err, api.ErrCodeInvalidParameters, http.StatusUnprocessableEntity)
		assert.Equal(t, tc.code, fieldCodes(apiErr)[tc.field], "case %q", name)
	}

	createTag(t, state, "taken")
	_, err := state.CreateNicTag(ctx, api.NicTagCreate{Name: "taken"})
	apiErr := requireAPIError(t, err, api.ErrCodeInvalidParameters, http.StatusUnprocessableEntity)
	assert.Equal(t, api.FieldCodeDuplicate, fieldCodes(apiErr)["name"])
}

// A tag's mtu may not drop below the mtu of a network using it.
func TestUpdateNicTagMTUFloor(t *testing.T) {
	state, cleanup := newTestState(t)
	defer cleanup()

	network := createNetwork(t, state, "floor", "10.60.0.0/24", "10.60.0.10", "10.60.0.20", nil)
	require.Equal(t, 1500, network.MTU)

	ctx := context.Background()

	_, err := state.UpdateNicTag(ctx, "floor", api.NicTagUpdate{MTU: intPtr(1400)})
	apiErr := requireAPIError(t, err, api.ErrCodeInvalidParameters, http.StatusUnprocessableEntity)
	assert.Equal(t, api.FieldCodeInvalid, fieldCodes(apiErr)["mtu"])

	updated, err := state.UpdateNicTag(ctx, "floor", api.NicTagUpdate{MTU: intPtr(9000)})
	require.NoError(t, err)
	assert.Equal(t, 9000, updated.MTU)
}

func TestRenameNicTag(t *testing.T) {
	state, cleanup := newTestState(t)
	defer cleanup()

	tag := createTag(t, state, "oldname")
	createTag(t, state, "occupied")

	ctx := context.Background()

	newName := "newname"
	renamed, err := state.UpdateNicTag(ctx, "oldname", api.NicTagUpdate{Name: &newName})
	require.NoError(t, err)
	assert.Equal(t, "newname", renamed.Name)
	assert.Equal(t, tag.UUID, renamed.UUID)

	_, err = state.GetNicTag(ctx, "oldname")
	requireAPIError(t, err, api.ErrCodeResourceNotFound, http.StatusNotFound)

	_, err = state.GetNicTag(ctx, "newname")
	require.NoError(t, err)

	// Rename onto an existing tag name.
	occupied := "occupied"
	_, err = state.UpdateNicTag(ctx, "newname", api.NicTagUpdate{Name: &occupied})
	apiErr := requireAPIError(t, err, api.ErrCodeInvalidParameters, http.StatusUnprocessableEntity)
	assert.Equal(t, api.FieldCodeDuplicate, fieldCodes(apiErr)["name"])
}

// A tag referenced by networks cannot be renamed or deleted; the error
// names the referencing networks.
func TestNicTagInUse(t *testing.T) {
	state, cleanup := newTestState(t)
	defer cleanup()

	network := createNetwork(t, state, "pinned", "10.61.0.0/24", "10.61.0.10", "10.61.0.20", nil)

	ctx := context.Background()

	newName := "unpinned"
	_, err := state.UpdateNicTag(ctx, "pinned", api.NicTagUpdate{Name: &newName})
	apiErr := requireAPIError(t, err, api.ErrCodeInUse, http.StatusUnprocessableEntity)
	require.Len(t, apiErr.Errors, 1)
	assert.Equal(t, "network", apiErr.Errors[0].Type)
	assert.Equal(t, network.UUID, apiErr.Errors[0].ID)
	assert.Equal(t, api.FieldCodeUsedBy, apiErr.Errors[0].Code)

	err = state.DeleteNicTag(ctx, "pinned")
	requireAPIError(t, err, api.ErrCodeInUse, http.StatusUnprocessableEntity)

	// An mtu change alone is still allowed while referenced.
	_, err = state.UpdateNicTag(ctx, "pinned", api.NicTagUpdate{MTU: intPtr(1600)})
	require.NoError(t, err)

	require.NoError(t, state.DeleteNetwork(ctx, network.UUID))
	require.NoError(t, state.DeleteNicTag(ctx, "pinned"))

	err = state.DeleteNicTag(ctx, "pinned")
	requireAPIError(t, err, api.ErrCodeResourceNotFound, http.StatusNotFound)
}

func TestListNicTags(t *testing.T) {
	state, cleanup := newTestState(t)
	defer cleanup()

	createTag(t, state, "alpha")
	beta := createTag(t, state, "beta")
	createTag(t, state, "gamma")

	ctx := context.Background()

	tags, total, err := state.ListNicTags(ctx, models.NicTagListParams{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, tags, 3)
	assert.Equal(t, "alpha", tags[0].Name)
	assert.Equal(t, "gamma", tags[2].Name)

	tags, total, err = state.ListNicTags(ctx, models.NicTagListParams{UUID: beta.UUID})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "beta", tags[0].Name)

	// Paging keeps the full total.
	tags, total, err = state.ListNicTags(ctx, models.NicTagListParams{
		PageParams: models.PageParams{Limit: intPtr(2), Offset: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, tags, 1)
	assert.Equal(t, "gamma", tags[0].Name)
}
