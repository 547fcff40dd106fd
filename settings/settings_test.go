package settings

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSettingsDefaults(t *testing.T) {
	s := NewSettings()
	require.NotNil(t, s)

	assert.Equal(t, "slpdag", s.ClientName)
	assert.Equal(t, 2000, s.Validation.DownloadLimit)
	assert.Equal(t, 0, s.Validation.DepthLimit)
	assert.Equal(t, 20, s.Validation.FetchBatchSize)
	assert.Equal(t, 30*time.Second, s.Validation.FetchTimeout)
	assert.Equal(t, 10*time.Second, s.TxStore.HTTPTimeout)
	assert.Equal(t, 3*time.Second, s.Proxy.Timeout)
	assert.False(t, s.Proxy.Enabled)
}

func TestGetDurationFallback(t *testing.T) {
	// unknown key falls back to the default
	assert.Equal(t, 5*time.Second, getDuration("definitely_not_set", 5*time.Second))
}
