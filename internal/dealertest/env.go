package dealertest

import (
	"math/big"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	dealerrfq "github.com/kaifufi/dealer-rfq-sdk-go"
	"github.com/kaifufi/dealer-rfq-sdk-go/chain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// Token addresses of the test environment
var (
	DAI  = common.HexToAddress("0x34d402f14d58e001d8efbe6585051bf9706aa064")
	WETH = common.HexToAddress("0x25b8fe1de9daf8ba351890744ff28cf7dfa8f5e3")
)

// Ether is 10^18 base units.
var Ether = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Env is a funded dealer, ledger and HTTP server on the ganache chain.
type Env struct {
	ChainID  *big.Int
	Exchange common.Address
	Proxy    common.Address
	Maker    *chain.KeySigner
	Taker    *chain.KeySigner
	Ledger   *Ledger
	Dealer   *Dealer
	Server   *httptest.Server
}

// NewEnv starts a dealer quoting DAI for WETH at 3 DAI per WETH. The taker
// holds and has approved 10 WETH; the maker holds and has approved 100 DAI.
func NewEnv(t testing.TB) *Env {
	t.Helper()

	contracts := dealerrfq.DefaultContractAddresses[dealerrfq.ChainIDGanache]
	chainID := big.NewInt(int64(dealerrfq.ChainIDGanache))
	proxy := common.HexToAddress(contracts.ERC20Proxy)

	e := &Env{
		ChainID:  chainID,
		Exchange: common.HexToAddress(contracts.Exchange),
		Proxy:    proxy,
		Maker:    newKeySigner(t),
		Taker:    newKeySigner(t),
		Ledger:   NewLedger(chainID, proxy),
	}

	e.Ledger.SetTransactor(e.Taker.Address())
	e.Ledger.SetBalance(WETH, e.Taker.Address(), Units(10))
	e.Ledger.SetProxyAllowance(WETH, e.Taker.Address(), Units(10))
	e.Ledger.SetBalance(DAI, e.Maker.Address(), Units(100))
	e.Ledger.SetProxyAllowance(DAI, e.Maker.Address(), Units(100))

	e.Dealer = New(Config{
		Maker:    e.Maker,
		Exchange: e.Exchange,
		ChainID:  chainID,
		Ledger:   e.Ledger,
		Tokens:   map[string]common.Address{"DAI": DAI, "WETH": WETH},
		Pairs:    []string{"WETH/DAI"},
		Price:    decimal.NewFromInt(3),
	})
	e.Server = httptest.NewServer(e.Dealer.Handler())
	t.Cleanup(e.Server.Close)

	return e
}

// Config returns a client configuration for the environment's taker.
func (e *Env) Config() dealerrfq.ClientConfig {
	return dealerrfq.ClientConfig{
		DealerURL:    e.Server.URL,
		ChainID:      dealerrfq.ChainIDGanache,
		TakerAddress: e.Taker.Address().Hex(),
	}
}

// Units returns n whole tokens in base units.
func Units(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), Ether)
}

func newKeySigner(t testing.TB) *chain.KeySigner {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return chain.NewKeySigner(key)
}
