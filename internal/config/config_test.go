package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("EVC_CONFIG_FILE", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 2*time.Minute, cfg.Dispatch.OfferTTL)
	assert.Equal(t, 50.0, cfg.Dispatch.MaxDistanceMiles)
	assert.Equal(t, time.Hour, cfg.Dispatch.MaxTravelTime)
	assert.Equal(t, 0.5, cfg.Dispatch.FlexibilityThreshold)
	assert.Equal(t, 0.8, cfg.Dispatch.PolygonFactor)
	assert.Equal(t, 30*time.Second, cfg.Dispatch.ExpiryLease)
}

func TestLoad_YAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evconnect.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
dispatch:
  offer_ttl: 90s
  flexibility_threshold: 0.6
  expiry_lease: 45s
  link_base_url: https://example.test/
`), 0o600))
	t.Setenv("EVC_CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.Dispatch.OfferTTL)
	assert.Equal(t, 0.6, cfg.Dispatch.FlexibilityThreshold)
	assert.Equal(t, 45*time.Second, cfg.Dispatch.ExpiryLease)
	assert.Equal(t, "https://example.test/", cfg.Dispatch.LinkBaseURL)
	assert.Equal(t, 50.0, cfg.Dispatch.MaxDistanceMiles, "absent keys keep defaults")
}

func TestApplyDispatchYAML_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"bad duration", "dispatch:\n  offer_ttl: soon\n"},
		{"not yaml", "dispatch: [\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := DefaultDispatch()
			assert.Error(t, ApplyDispatchYAML(&d, []byte(tc.doc)))
		})
	}
}

func TestDispatchConfig_Validate(t *testing.T) {
	d := DefaultDispatch()
	require.NoError(t, d.Validate())

	d.FlexibilityThreshold = 1.5
	assert.Error(t, d.Validate())

	d = DefaultDispatch()
	d.OfferTTL = 0
	assert.Error(t, d.Validate())

	d = DefaultDispatch()
	d.ExpiryLease = d.ExpiryTick / 2
	assert.Error(t, d.Validate())
}
