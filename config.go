package dealerrfq

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ChainID represents a blockchain chain ID
type ChainID int64

const (
	ChainIDMainnet ChainID = 1    // Ethereum mainnet
	ChainIDRopsten ChainID = 3    // Ropsten testnet
	ChainIDRinkeby ChainID = 4    // Rinkeby testnet
	ChainIDKovan   ChainID = 42   // Kovan testnet
	ChainIDGanache ChainID = 1337 // 0x ganache snapshot
)

// CompatibleAPIVersion is the dealer HTTP API version this client speaks.
const CompatibleAPIVersion = "2.0"

// EnvPrefix prefixes every environment variable read by LoadClientConfig.
const EnvPrefix = "DEALER_"

// DealerTransport selects how the client talks to the dealer.
type DealerTransport string

const (
	TransportHTTP    DealerTransport = "http"
	TransportJSONRPC DealerTransport = "jsonrpc"
)

// ContractAddresses holds the 0x v3 contract addresses for a chain
type ContractAddresses struct {
	Exchange   string
	ERC20Proxy string
}

// DefaultContractAddresses maps chain IDs to their 0x v3 deployments
var DefaultContractAddresses = map[ChainID]ContractAddresses{
	ChainIDMainnet: {
		Exchange:   "0x61935cbdd02287b511119ddb11aeb42f1593b7ef",
		ERC20Proxy: "0x95e6f48254609a6ee006f7d493c8e5fb97094cef",
	},
	ChainIDKovan: {
		Exchange:   "0x4eacd0af335451709e1e7b570b8ea68edec8bc97",
		ERC20Proxy: "0xf1ec01d6236d3cd881a0bf0130ea25fe4234003e",
	},
	ChainIDGanache: {
		Exchange:   "0x48bacb9266a570d521063ef5dd96e61686dbe788",
		ERC20Proxy: "0x1dc4c1cefef38a777b15aa20260a54e584b16c48",
	},
}

// explorerSubdomains maps chain IDs to their etherscan.io subdomain
var explorerSubdomains = map[ChainID]string{
	ChainIDMainnet: "www",
	ChainIDRopsten: "ropsten",
	ChainIDRinkeby: "rinkeby",
	ChainIDKovan:   "kovan",
}

// ClientConfig holds configuration for creating a Client
type ClientConfig struct {
	DealerURL       string          `env:"URL"`
	DealerTransport DealerTransport `env:"TRANSPORT" envDefault:"http"`
	RPCURL          string          `env:"RPC_URL"`
	ChainID         ChainID         `env:"CHAIN_ID"`

	// PrivateKey signs fills and approvals headlessly. When empty, the node
	// at RPCURL is asked to sign for TakerAddress.
	PrivateKey   string `env:"PRIVATE_KEY"`
	TakerAddress string `env:"TAKER_ADDRESS"`

	// Contract overrides; the chain's defaults are used when empty.
	ExchangeAddress   string `env:"EXCHANGE_ADDRESS"`
	ERC20ProxyAddress string `env:"ERC20_PROXY_ADDRESS"`

	RequestTimeout           time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	ConfirmationPollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"2s"`
	SkipValidation           bool          `env:"SKIP_VALIDATION"`
	VerifyMakerSignature     bool          `env:"VERIFY_MAKER_SIGNATURE"`
	LogLevel                 string        `env:"LOG_LEVEL" envDefault:"info"`
}

// LoadClientConfig reads DEALER_* variables from the environment, after
// loading the given .env files (or ./.env) when present.
func LoadClientConfig(envFiles ...string) (*ClientConfig, error) {
	// Load .env file if it exists
	_ = godotenv.Load(envFiles...)

	cfg := &ClientConfig{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

func (c *ClientConfig) applyDefaults() error {
	if c.ChainID <= 0 {
		return &InvalidParamError{Message: fmt.Sprintf("chain_id must be positive, got %d", c.ChainID)}
	}

	contracts, known := DefaultContractAddresses[c.ChainID]
	if c.ExchangeAddress == "" {
		c.ExchangeAddress = contracts.Exchange
	}
	if c.ERC20ProxyAddress == "" {
		c.ERC20ProxyAddress = contracts.ERC20Proxy
	}
	if !known && (c.ExchangeAddress == "" || c.ERC20ProxyAddress == "") {
		return &InvalidParamError{
			Message: fmt.Sprintf("no default 0x contracts for chain_id %d: set exchange and ERC20 proxy addresses", c.ChainID),
		}
	}

	switch c.DealerTransport {
	case "":
		c.DealerTransport = TransportHTTP
	case TransportHTTP, TransportJSONRPC:
	default:
		return &InvalidParamError{Message: fmt.Sprintf("unknown dealer transport %q", c.DealerTransport)}
	}

	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.ConfirmationPollInterval == 0 {
		c.ConfirmationPollInterval = 2 * time.Second
	}
	return nil
}
