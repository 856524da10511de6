package models_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/netfabric/napi/napid/db"
	"github.com/netfabric/napi/napid/models"
	"github.com/netfabric/napi/shared/api"
)

// Fixed principals used across the model tests.
const (
	adminUUID = "00000000-0000-4000-8000-000000000001"
	ownerA    = "aaaaaaaa-aaaa-4aaa-8aaa-aaaaaaaaaaaa"
	ownerB    = "bbbbbbbb-bbbb-4bbb-8bbb-bbbbbbbbbbbb"
	zoneUUID  = "cccccccc-cccc-4ccc-8ccc-cccccccccccc"
	cnUUID    = "dddddddd-dddd-4ddd-8ddd-dddddddddddd"
)

func newTestState(t *testing.T) (*models.State, func()) {
	store, cleanup := db.NewTestStore(t)

	state := &models.State{
		DB:         store,
		Subnets:    models.NewSubnetIndex(),
		AdminUUID:  adminUUID,
		MacOUI:     0x90b8d0 << 24,
		MTUDefault: 1500,
	}

	require.NoError(t, state.EnsureBuckets(context.Background()))

	return state, cleanup
}

func createTag(t *testing.T, s *models.State, name string) *api.NicTag {
	t.Helper()

	tag, err := s.CreateNicTag(context.Background(), api.NicTagCreate{Name: name})
	require.NoError(t, err)

	return tag
}

// createNetwork builds a network on a nic tag of the same name, with an
// optional hook to adjust the parameters before the call.
func createNetwork(t *testing.T, s *models.State, name string, subnet string, start string, end string, mutate func(*api.NetworkCreate)) *api.Network {
	t.Helper()

	ctx := context.Background()

	_, err := s.GetNicTag(ctx, name)
	if err != nil {
		createTag(t, s, name)
	}

	params := api.NetworkCreate{
		Name:             name,
		NicTag:           name,
		Subnet:           subnet,
		ProvisionStartIP: start,
		ProvisionEndIP:   end,
	}

	if mutate != nil {
		mutate(&params)
	}

	network, err := s.CreateNetwork(ctx, params)
	require.NoError(t, err)

	return network
}

// provisionNic provisions one nic on the network for ownerA / zoneUUID with
// a generated MAC.
func provisionNic(t *testing.T, s *models.State, networkUUID string, mutate func(*api.NicCreate)) *api.Nic {
	t.Helper()

	params := api.NicCreate{
		OwnerUUID:     ownerA,
		BelongsToUUID: zoneUUID,
		BelongsToType: api.BelongsToTypeZone,
	}

	if mutate != nil {
		mutate(&params)
	}

	nic, err := s.ProvisionNic(context.Background(), networkUUID, params)
	require.NoError(t, err)

	return nic
}

// requireAPIError asserts err is an *api.Error with the given top-level
// code and HTTP status.
func requireAPIError(t *testing.T, err error, code string, status int) *api.Error {
	t.Helper()

	require.Error(t, err)

	apiErr, ok := err.(*api.Error)
	require.True(t, ok, "expected *api.Error, got %T: %v", err, err)
	require.Equal(t, code, apiErr.Code, "error: %v", apiErr)
	require.Equal(t, status, apiErr.Status())

	return apiErr
}

// fieldCodes maps field name to per-field code for asserting aggregated
// validation errors.
func fieldCodes(apiErr *api.Error) map[string]string {
	codes := make(map[string]string, len(apiErr.Errors))
	for _, fe := range apiErr.Errors {
		codes[fe.Field] = fe.Code
	}

	return codes
}
