package dealerrfq

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/kaifufi/dealer-rfq-sdk-go/chain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var (
	fixtureExchange = common.HexToAddress(DefaultContractAddresses[ChainIDGanache].Exchange)
	fixtureProxy    = common.HexToAddress(DefaultContractAddresses[ChainIDGanache].ERC20Proxy)
	fixtureDAI      = common.HexToAddress("0x34d402f14d58e001d8efbe6585051bf9706aa064")
	fixtureWETH     = common.HexToAddress("0x25b8fe1de9daf8ba351890744ff28cf7dfa8f5e3")
	fixtureTaker    = common.HexToAddress("0x6ecbe1db9ef729cbe972c83fb886247691fb6beb")
)

const fixtureExpiration = 1_900_000_000

func newFixtureSigner(t testing.TB) *chain.KeySigner {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return chain.NewKeySigner(key)
}

// fixtureQuote returns a maker-signed DAI for WETH quote of 6 DAI for 2 WETH
// (in base units) with a template for fixtureTaker.
func fixtureQuote(t require.TestingT, maker *chain.KeySigner) *Quote {
	order := &chain.SignedOrder{
		Order: chain.Order{
			MakerAddress:          maker.Address(),
			MakerAssetAmount:      big.NewInt(6_000_000),
			TakerAssetAmount:      big.NewInt(2_000_000),
			MakerFee:              new(big.Int),
			TakerFee:              new(big.Int),
			ExpirationTimeSeconds: big.NewInt(fixtureExpiration),
			Salt:                  big.NewInt(987654321),
			MakerAssetData:        chain.EncodeERC20AssetData(fixtureDAI),
			TakerAssetData:        chain.EncodeERC20AssetData(fixtureWETH),
			MakerFeeAssetData:     []byte{},
			TakerFeeAssetData:     []byte{},
		},
		ExchangeAddress: fixtureExchange,
		ChainID:         big.NewInt(int64(ChainIDGanache)),
	}
	hash, err := chain.OrderHash(order)
	require.NoError(t, err)
	order.Signature, err = maker.Sign(context.Background(), chain.SignRequest{Address: maker.Address(), Hash: hash})
	require.NoError(t, err)

	data, err := chain.EncodeFillOrderData(order, order.TakerAssetAmount)
	require.NoError(t, err)

	return &Quote{
		ID:                "quote-1",
		MakerAssetAddress: fixtureDAI,
		TakerAssetAddress: fixtureWETH,
		MakerAssetSize:    order.MakerAssetAmount,
		TakerAssetSize:    order.TakerAssetAmount,
		Expiration:        decimal.NewFromInt(fixtureExpiration),
		ServerTime:        decimal.RequireFromString("1899999940.0712497"),
		Order:             order,
		Transaction: &chain.TransactionTemplate{
			Salt:                  big.NewInt(1),
			ExpirationTimeSeconds: big.NewInt(fixtureExpiration),
			GasPrice:              new(big.Int),
			SignerAddress:         fixtureTaker,
			Data:                  data,
			Domain:                order.Domain(),
		},
	}
}
