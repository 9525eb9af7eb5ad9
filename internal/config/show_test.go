package config

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderEffective_AllSections(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Auth.TenantID = "contoso.onmicrosoft.com"
	cfg.Source.Exclude = []string{"ceo@contoso.com"}

	var buf bytes.Buffer
	require.NoError(t, RenderEffective(cfg, &buf))

	output := buf.String()
	for _, section := range []string{"[auth]", "[source]", "[target]", "[sync]", "[cleanup]", "[logging]", "[network]"} {
		assert.Contains(t, output, section)
	}

	assert.Contains(t, output, `"contoso.onmicrosoft.com"`)
	assert.Contains(t, output, `exclude          = ["ceo@contoso.com"]`)
	assert.Contains(t, output, `category        = "Company Contacts"`)
	assert.NotContains(t, output, "client_secret", "no secret line when unset")
}

func TestRenderEffective_SecretRedacted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Auth.ClientSecret = "super-secret-value"

	var buf bytes.Buffer
	require.NoError(t, RenderEffective(cfg, &buf))

	assert.NotContains(t, buf.String(), "super-secret-value")
	assert.Contains(t, buf.String(), redacted)
}

// failWriter fails every write.
type failWriter struct{}

func (failWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestRenderEffective_WriteError(t *testing.T) {
	err := RenderEffective(DefaultConfig(), failWriter{})
	assert.EqualError(t, err, "disk full")
}
