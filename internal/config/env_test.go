package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadEnvOverrides_AllSet(t *testing.T) {
	t.Setenv("CONTACTSYNC_CONFIG", "/custom/config.toml")
	t.Setenv("CONTACTSYNC_TENANT_ID", "contoso.onmicrosoft.com")
	t.Setenv("CONTACTSYNC_CLIENT_ID", "11111111-2222-3333-4444-555555555555")
	t.Setenv("CONTACTSYNC_CLIENT_SECRET", "s3cret")

	overrides := ReadEnvOverrides(testLogger(t))
	assert.Equal(t, "/custom/config.toml", overrides.ConfigPath)
	assert.Equal(t, "contoso.onmicrosoft.com", overrides.TenantID)
	assert.Equal(t, "11111111-2222-3333-4444-555555555555", overrides.ClientID)
	assert.Equal(t, "s3cret", overrides.ClientSecret)
}

func TestReadEnvOverrides_NoneSet(t *testing.T) {
	t.Setenv("CONTACTSYNC_CONFIG", "")
	t.Setenv("CONTACTSYNC_TENANT_ID", "")
	t.Setenv("CONTACTSYNC_CLIENT_ID", "")
	t.Setenv("CONTACTSYNC_CLIENT_SECRET", "")

	overrides := ReadEnvOverrides(testLogger(t))
	assert.Equal(t, EnvOverrides{}, overrides)
}

func TestEnvVarConstants(t *testing.T) {
	assert.Equal(t, "CONTACTSYNC_CONFIG", EnvConfig)
	assert.Equal(t, "CONTACTSYNC_TENANT_ID", EnvTenantID)
	assert.Equal(t, "CONTACTSYNC_CLIENT_ID", EnvClientID)
	assert.Equal(t, "CONTACTSYNC_CLIENT_SECRET", EnvClientSecret)
}
