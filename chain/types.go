package chain

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Order is a 0x v3 maker order.
type Order struct {
	MakerAddress          common.Address
	TakerAddress          common.Address
	FeeRecipientAddress   common.Address
	SenderAddress         common.Address
	MakerAssetAmount      *big.Int
	TakerAssetAmount      *big.Int
	MakerFee              *big.Int
	TakerFee              *big.Int
	ExpirationTimeSeconds *big.Int
	Salt                  *big.Int
	MakerAssetData        []byte
	TakerAssetData        []byte
	MakerFeeAssetData     []byte
	TakerFeeAssetData     []byte
}

// SignedOrder is an order together with the maker signature and the
// deployment it is bound to.
type SignedOrder struct {
	Order
	ExchangeAddress common.Address
	ChainID         *big.Int
	Signature       []byte
}

// Domain returns the EIP-712 domain the order was signed under.
func (o *SignedOrder) Domain() Domain {
	return NewDomain(o.ChainID, o.ExchangeAddress)
}

// IsOpen reports whether any taker may fill the order.
func (o *SignedOrder) IsOpen() bool {
	return o.TakerAddress == (common.Address{})
}

// TransactionTemplate holds the unsigned meta-transaction parameters a dealer
// attaches to a quote. The domain is never transmitted; it is taken from the
// order.
type TransactionTemplate struct {
	Salt                  *big.Int
	ExpirationTimeSeconds *big.Int
	GasPrice              *big.Int
	SignerAddress         common.Address
	Data                  []byte
	Domain                Domain
}

// UnsignedFill is a ZeroExTransaction wrapping a fillOrder call, ready to be
// signed by SignerAddress.
type UnsignedFill struct {
	Salt                  *big.Int
	ExpirationTimeSeconds *big.Int
	GasPrice              *big.Int
	SignerAddress         common.Address
	Data                  []byte
	Domain                Domain

	// Hash is the EIP-712 digest of the transaction under Domain.
	Hash common.Hash

	// FillAmount is the taker asset amount encoded in Data.
	FillAmount *big.Int
}

// SignedFill is an UnsignedFill plus the signer's 0x signature.
type SignedFill struct {
	UnsignedFill
	Signature []byte
}

// ERC20 ABI JSON for balance, allowance and approve functions
const erc20ABIJSON = `[
	{
		"constant": true,
		"inputs": [
			{"name": "owner", "type": "address"},
			{"name": "spender", "type": "address"}
		],
		"name": "allowance",
		"outputs": [{"name": "", "type": "uint256"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [
			{"name": "owner", "type": "address"}
		],
		"name": "balanceOf",
		"outputs": [{"name": "", "type": "uint256"}],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [
			{"name": "spender", "type": "address"},
			{"name": "amount", "type": "uint256"}
		],
		"name": "approve",
		"outputs": [{"name": "", "type": "bool"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [],
		"name": "decimals",
		"outputs": [{"name": "", "type": "uint8"}],
		"type": "function"
	}
]`

const orderTupleJSON = `{
	"name": "order",
	"type": "tuple",
	"components": [
		{"name": "makerAddress", "type": "address"},
		{"name": "takerAddress", "type": "address"},
		{"name": "feeRecipientAddress", "type": "address"},
		{"name": "senderAddress", "type": "address"},
		{"name": "makerAssetAmount", "type": "uint256"},
		{"name": "takerAssetAmount", "type": "uint256"},
		{"name": "makerFee", "type": "uint256"},
		{"name": "takerFee", "type": "uint256"},
		{"name": "expirationTimeSeconds", "type": "uint256"},
		{"name": "salt", "type": "uint256"},
		{"name": "makerAssetData", "type": "bytes"},
		{"name": "takerAssetData", "type": "bytes"},
		{"name": "makerFeeAssetData", "type": "bytes"},
		{"name": "takerFeeAssetData", "type": "bytes"}
	]
}`

// 0x v3 Exchange ABI subset used by takers and the relaying dealer
const exchangeABIJSON = `[
	{
		"constant": false,
		"inputs": [
			` + orderTupleJSON + `,
			{"name": "takerAssetFillAmount", "type": "uint256"},
			{"name": "signature", "type": "bytes"}
		],
		"name": "fillOrder",
		"outputs": [],
		"payable": true,
		"stateMutability": "payable",
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [
			{
				"name": "transaction",
				"type": "tuple",
				"components": [
					{"name": "salt", "type": "uint256"},
					{"name": "expirationTimeSeconds", "type": "uint256"},
					{"name": "gasPrice", "type": "uint256"},
					{"name": "signerAddress", "type": "address"},
					{"name": "data", "type": "bytes"}
				]
			},
			{"name": "signature", "type": "bytes"}
		],
		"name": "executeTransaction",
		"outputs": [{"name": "", "type": "bytes"}],
		"payable": true,
		"stateMutability": "payable",
		"type": "function"
	}
]`

var (
	erc20ABI    = mustParseABI("ERC20", erc20ABIJSON)
	exchangeABI = mustParseABI("Exchange", exchangeABIJSON)
)

// GetERC20ABI returns the parsed ERC20 ABI
func GetERC20ABI() abi.ABI {
	return erc20ABI
}

// GetExchangeABI returns the parsed 0x v3 Exchange ABI
func GetExchangeABI() abi.ABI {
	return exchangeABI
}

func mustParseABI(name, raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("failed to parse " + name + " ABI: " + err.Error())
	}
	return parsed
}
