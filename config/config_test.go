package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lukehollenback/neutrino/exchange/coinbase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const settings = `
key: key-1
secret: c2VjcmV0
passphrase: phrase
default_timeout: 5s
retry_attempts: 2
streams:
  btc:
    channels: [ticker, heartbeat]
    product_ids: [BTC-USD]
  mine:
    channels: [user]
    product_ids: [ETH-USD]
    authenticate: true
`

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, coinbase.BaseURL, cfg.RESTBaseURL)
	assert.Equal(t, 300, cfg.MaxRecordsPerCandleRequest)
	assert.True(t, cfg.Credentials().Empty())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "neutrino.yaml")
	require.NoError(t, os.WriteFile(path, []byte(settings), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.DefaultTimeout)
	assert.Equal(t, 2, cfg.RetryAttempts)
	assert.Equal(t, DefaultRetryMaxInterval, cfg.RetryMaxInterval)
	assert.Equal(t, coinbase.FeedURL, cfg.WSBaseURL)
	assert.Equal(t, "key-1", cfg.Credentials().Key())

	require.Len(t, cfg.Streams, 2)
	assert.Equal(t, []string{"ticker", "heartbeat"}, cfg.Streams["btc"].Channels)
	assert.True(t, cfg.Streams["mine"].Authenticate)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))

	assert.Error(t, err)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"partial credentials": func(c *Config) { c.Key = "only-a-key" },
		"bad rest url":        func(c *Config) { c.RESTBaseURL = "ftp://example.com" },
		"relative ws url":     func(c *Config) { c.WSBaseURL = "/feed" },
		"zero candle limit":   func(c *Config) { c.MaxRecordsPerCandleRequest = 0 },
		"zero buffer":         func(c *Config) { c.StreamBuffer = 0 },
		"negative retries":    func(c *Config) { c.RetryAttempts = -1 },
		"inverted intervals":  func(c *Config) { c.RetryMaxInterval = time.Millisecond },
		"negative timeout":    func(c *Config) { c.DefaultTimeout = -time.Second },
	}

	for name, mutate := range cases {
		cfg := Default()
		mutate(&cfg)

		assert.Error(t, cfg.Validate(), name)
	}
}

func TestValidateAuthenticatedStreamNeedsCredentials(t *testing.T) {
	cfg := Default()

	err := Parse([]byte("streams:\n  mine:\n    channels: [user]\n    product_ids: [BTC-USD]\n    authenticate: true\n"), &cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), `stream "mine" authenticates`)
}
