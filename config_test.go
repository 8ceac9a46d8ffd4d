package dealerrfq

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadClientConfigFromEnv(t *testing.T) {
	t.Setenv("DEALER_URL", "https://dealer.example")
	t.Setenv("DEALER_TRANSPORT", "jsonrpc")
	t.Setenv("DEALER_CHAIN_ID", "42")
	t.Setenv("DEALER_TAKER_ADDRESS", fixtureTaker.Hex())
	t.Setenv("DEALER_REQUEST_TIMEOUT", "5s")
	t.Setenv("DEALER_SKIP_VALIDATION", "true")

	cfg, err := LoadClientConfig()
	require.NoError(t, err)

	assert.Equal(t, "https://dealer.example", cfg.DealerURL)
	assert.Equal(t, TransportJSONRPC, cfg.DealerTransport)
	assert.Equal(t, ChainIDKovan, cfg.ChainID)
	assert.Equal(t, fixtureTaker.Hex(), cfg.TakerAddress)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 2*time.Second, cfg.ConfirmationPollInterval)
	assert.True(t, cfg.SkipValidation)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadClientConfigFromDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("DEALER_CHAIN_ID=1337\nDEALER_LOG_LEVEL=debug\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("DEALER_CHAIN_ID")
		os.Unsetenv("DEALER_LOG_LEVEL")
	})

	cfg, err := LoadClientConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ChainIDGanache, cfg.ChainID)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadClientConfigBadValue(t *testing.T) {
	t.Setenv("DEALER_CHAIN_ID", "mainnet")

	_, err := LoadClientConfig()
	require.Error(t, err)
}

func TestApplyDefaults(t *testing.T) {
	cfg := ClientConfig{ChainID: ChainIDMainnet}
	require.NoError(t, cfg.applyDefaults())

	assert.Equal(t, DefaultContractAddresses[ChainIDMainnet].Exchange, cfg.ExchangeAddress)
	assert.Equal(t, DefaultContractAddresses[ChainIDMainnet].ERC20Proxy, cfg.ERC20ProxyAddress)
	assert.Equal(t, TransportHTTP, cfg.DealerTransport)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 2*time.Second, cfg.ConfirmationPollInterval)
}

func TestApplyDefaultsErrors(t *testing.T) {
	cases := map[string]ClientConfig{
		"zero chain":       {},
		"unknown chain":    {ChainID: 999},
		"partial override": {ChainID: 999, ExchangeAddress: fixtureExchange.Hex()},
		"bad transport":    {ChainID: ChainIDMainnet, DealerTransport: "grpc"},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			require.ErrorIs(t, cfg.applyDefaults(), ErrInvalidParam)
		})
	}

	custom := ClientConfig{ChainID: 999, ExchangeAddress: fixtureExchange.Hex(), ERC20ProxyAddress: fixtureProxy.Hex()}
	require.NoError(t, custom.applyDefaults())
}
