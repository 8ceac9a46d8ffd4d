package chain

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Fill builder errors
var (
	ErrInvalidFillAmount = errors.New("invalid fill amount")
	ErrNotFillOrderCall  = errors.New("data is not a fillOrder call")
)

// saltBits is the entropy of every meta-transaction salt.
const saltBits = 256

// FillAmountError reports a fill amount outside (0, takerAssetAmount].
type FillAmountError struct {
	Amount *big.Int
	Max    *big.Int
}

func (e *FillAmountError) Error() string {
	return fmt.Sprintf("invalid fill amount %s: must be > 0 and <= %s", amountString(e.Amount), amountString(e.Max))
}

func (e *FillAmountError) Unwrap() error {
	return ErrInvalidFillAmount
}

// FillBuilder builds fillOrder meta-transactions for one exchange deployment.
type FillBuilder struct {
	exchangeAddr common.Address
	chainID      *big.Int
}

// NewFillBuilder creates a new FillBuilder
func NewFillBuilder(exchangeAddr common.Address, chainID *big.Int) *FillBuilder {
	return &FillBuilder{
		exchangeAddr: exchangeAddr,
		chainID:      new(big.Int).Set(chainID),
	}
}

// Domain returns the domain every built transaction is hashed under.
func (fb *FillBuilder) Domain() Domain {
	return NewDomain(fb.chainID, fb.exchangeAddr)
}

type buildOptions struct {
	expiration *big.Int
	gasPrice   *big.Int
}

// BuildOption customises a built meta-transaction.
type BuildOption func(*buildOptions)

// WithExpiration sets the meta-transaction expiration. Defaults to the
// order's expiration.
func WithExpiration(expiration *big.Int) BuildOption {
	return func(o *buildOptions) {
		o.expiration = expiration
	}
}

// WithGasPrice sets the gas price the relayer must execute at. Defaults to
// zero (unconstrained).
func WithGasPrice(gasPrice *big.Int) BuildOption {
	return func(o *buildOptions) {
		o.gasPrice = gasPrice
	}
}

// Build creates the unsigned meta-transaction filling fillAmount of order on
// behalf of signer.
func (fb *FillBuilder) Build(order *SignedOrder, fillAmount *big.Int, signer common.Address, opts ...BuildOption) (*UnsignedFill, error) {
	if err := validateFillAmount(order, fillAmount); err != nil {
		return nil, err
	}

	options := buildOptions{
		expiration: order.ExpirationTimeSeconds,
		gasPrice:   new(big.Int),
	}
	for _, opt := range opts {
		opt(&options)
	}

	data, err := EncodeFillOrderData(order, fillAmount)
	if err != nil {
		return nil, err
	}

	salt, err := GenerateSalt()
	if err != nil {
		return nil, err
	}

	fill := &UnsignedFill{
		Salt:                  salt,
		ExpirationTimeSeconds: new(big.Int).Set(bigOrZero(options.expiration)),
		GasPrice:              new(big.Int).Set(bigOrZero(options.gasPrice)),
		SignerAddress:         signer,
		Data:                  data,
		Domain:                fb.Domain(),
		FillAmount:            new(big.Int).Set(fillAmount),
	}
	fill.Hash = fill.TransactionHash()

	return fill, nil
}

func validateFillAmount(order *SignedOrder, fillAmount *big.Int) error {
	max := order.TakerAssetAmount
	if fillAmount == nil || fillAmount.Sign() <= 0 || max == nil || fillAmount.Cmp(max) > 0 {
		return &FillAmountError{Amount: fillAmount, Max: max}
	}
	return nil
}

// GenerateSalt returns a uniformly random 256-bit salt.
func GenerateSalt() (*big.Int, error) {
	buf := make([]byte, saltBits/8)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return new(big.Int).SetBytes(buf), nil
}

// abiOrder mirrors the order tuple of the exchange ABI.
type abiOrder struct {
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

func toABIOrder(o *Order) abiOrder {
	return abiOrder{
		MakerAddress:          o.MakerAddress,
		TakerAddress:          o.TakerAddress,
		FeeRecipientAddress:   o.FeeRecipientAddress,
		SenderAddress:         o.SenderAddress,
		MakerAssetAmount:      bigOrZero(o.MakerAssetAmount),
		TakerAssetAmount:      bigOrZero(o.TakerAssetAmount),
		MakerFee:              bigOrZero(o.MakerFee),
		TakerFee:              bigOrZero(o.TakerFee),
		ExpirationTimeSeconds: bigOrZero(o.ExpirationTimeSeconds),
		Salt:                  bigOrZero(o.Salt),
		MakerAssetData:        nonNilBytes(o.MakerAssetData),
		TakerAssetData:        nonNilBytes(o.TakerAssetData),
		MakerFeeAssetData:     nonNilBytes(o.MakerFeeAssetData),
		TakerFeeAssetData:     nonNilBytes(o.TakerFeeAssetData),
	}
}

// EncodeFillOrderData ABI-encodes fillOrder(order, fillAmount, signature).
func EncodeFillOrderData(order *SignedOrder, fillAmount *big.Int) ([]byte, error) {
	data, err := exchangeABI.Pack("fillOrder", toABIOrder(&order.Order), fillAmount, nonNilBytes(order.Signature))
	if err != nil {
		return nil, fmt.Errorf("failed to pack fillOrder: %w", err)
	}
	return data, nil
}

// DecodeFillOrderData is the inverse of EncodeFillOrderData.
func DecodeFillOrderData(data []byte) (*Order, *big.Int, []byte, error) {
	method := exchangeABI.Methods["fillOrder"]
	if len(data) < 4 || !bytes.Equal(data[:4], method.ID) {
		return nil, nil, nil, ErrNotFillOrderCall
	}

	values, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to unpack fillOrder: %w", err)
	}
	if len(values) != 3 {
		return nil, nil, nil, ErrNotFillOrderCall
	}

	decoded := *abi.ConvertType(values[0], new(abiOrder)).(*abiOrder)
	amount, ok := values[1].(*big.Int)
	if !ok {
		return nil, nil, nil, ErrNotFillOrderCall
	}
	signature, ok := values[2].([]byte)
	if !ok {
		return nil, nil, nil, ErrNotFillOrderCall
	}

	order := Order(decoded)
	return &order, amount, signature, nil
}

func nonNilBytes(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

func amountString(v *big.Int) string {
	if v == nil {
		return "<nil>"
	}
	return v.String()
}
