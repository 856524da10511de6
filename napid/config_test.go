package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "napid.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"admin_uuid": "00000000-0000-4000-8000-000000000001",
		"mac_oui": "90:b8:d0",
		"storage": {"path": "/var/lib/napid/napi.db"}
	}`)

	config, err := loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, defaultPort, config.Port)
	assert.Equal(t, defaultMTU, config.MTUDefault)
	assert.Equal(t, defaultBusyTimeoutMS, config.Storage.BusyTimeoutMS)
	assert.Empty(t, config.InitialNetworks)
}

func TestLoadConfigMissing(t *testing.T) {
	_, err := loadConfig("")
	assert.ErrorContains(t, err, "--config")

	_, err = loadConfig(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)

	_, err = loadConfig(writeConfig(t, "{broken"))
	assert.ErrorContains(t, err, "parsing")
}

func TestLoadConfigValidation(t *testing.T) {
	cases := map[string]struct {
		content string
		wantErr string
	}{
		"missing admin uuid": {
			content: `{"mac_oui": "90:b8:d0", "storage": {"path": "/tmp/x.db"}}`,
			wantErr: "admin_uuid",
		},
		"bad admin uuid": {
			content: `{"admin_uuid": "nope", "mac_oui": "90:b8:d0", "storage": {"path": "/tmp/x.db"}}`,
			wantErr: "admin_uuid",
		},
		"missing mac oui": {
			content: `{"admin_uuid": "00000000-0000-4000-8000-000000000001", "storage": {"path": "/tmp/x.db"}}`,
			wantErr: "mac_oui",
		},
		"bad mac oui": {
			content: `{"admin_uuid": "00000000-0000-4000-8000-000000000001", "mac_oui": "zz:zz:zz", "storage": {"path": "/tmp/x.db"}}`,
			wantErr: "mac_oui",
		},
		"missing storage path": {
			content: `{"admin_uuid": "00000000-0000-4000-8000-000000000001", "mac_oui": "90:b8:d0"}`,
			wantErr: "storage.path",
		},
		"bad port": {
			content: `{"admin_uuid": "00000000-0000-4000-8000-000000000001", "mac_oui": "90:b8:d0", "storage": {"path": "/tmp/x.db"}, "port": 70000}`,
			wantErr: "port",
		},
		"bad mtu": {
			content: `{"admin_uuid": "00000000-0000-4000-8000-000000000001", "mac_oui": "90:b8:d0", "storage": {"path": "/tmp/x.db"}, "mtu_default": 100}`,
			wantErr: "mtu_default",
		},
		"bad log level": {
			content: `{"admin_uuid": "00000000-0000-4000-8000-000000000001", "mac_oui": "90:b8:d0", "storage": {"path": "/tmp/x.db"}, "log_level": "loud"}`,
			wantErr: "log_level",
		},
	}

	for name, tc := range cases {
		_, err := loadConfig(writeConfig(t, tc.content))
		assert.ErrorContains(t, err, tc.wantErr, "case %q", name)
	}
}
