package dealerrfq

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kaifufi/dealer-rfq-sdk-go/chain"
	"go.uber.org/zap"
)

// LedgerReader is the read side of the ledger the validator consults.
// *chain.Ledger satisfies it.
type LedgerReader interface {
	BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error)
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
}

// Validator checks that both sides of an order can settle before the taker
// signs anything.
type Validator struct {
	ledger LedgerReader
	proxy  common.Address
	logger *zap.Logger
}

// NewValidator creates a validator reading allowances granted to proxy.
func NewValidator(ledger LedgerReader, proxy common.Address, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{
		ledger: ledger,
		proxy:  proxy,
		logger: logger,
	}
}

type ledgerCheck struct {
	check    FillCheck
	owner    common.Address
	token    common.Address
	required *big.Int
	read     func(ctx context.Context, token, owner common.Address) (*big.Int, error)
}

// Validate runs the fill preconditions in order and returns a *FillError for
// the first that fails. The taker and expiration checks run before any
// ledger read.
func (v *Validator) Validate(ctx context.Context, order *chain.SignedOrder, taker common.Address, now time.Time) error {
	if !order.IsOpen() && order.TakerAddress != taker {
		return &FillError{Check: CheckTakerMatch, Address: order.TakerAddress}
	}

	nowSeconds := big.NewInt(now.Unix())
	if nowSeconds.Cmp(bigOrZero(order.ExpirationTimeSeconds)) >= 0 {
		return &FillError{
			Check:    CheckExpiration,
			Required: bigOrZero(order.ExpirationTimeSeconds),
			Actual:   nowSeconds,
		}
	}

	makerToken, err := chain.DecodeERC20AssetData(order.MakerAssetData)
	if err != nil {
		return fmt.Errorf("failed to decode maker asset data: %w", err)
	}
	takerToken, err := chain.DecodeERC20AssetData(order.TakerAssetData)
	if err != nil {
		return fmt.Errorf("failed to decode taker asset data: %w", err)
	}

	checks := []ledgerCheck{
		{CheckTakerAllowance, taker, takerToken, order.TakerAssetAmount, v.proxyAllowance},
		{CheckTakerBalance, taker, takerToken, order.TakerAssetAmount, v.ledger.BalanceOf},
		{CheckMakerAllowance, order.MakerAddress, makerToken, order.MakerAssetAmount, v.proxyAllowance},
		{CheckMakerBalance, order.MakerAddress, makerToken, order.MakerAssetAmount, v.ledger.BalanceOf},
	}
	for _, c := range checks {
		actual, err := c.read(ctx, c.token, c.owner)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", c.check, err)
		}
		required := bigOrZero(c.required)
		if actual.Cmp(required) < 0 {
			v.logger.Debug("fill precondition failed",
				zap.Stringer("check", c.check),
				zap.String("address", c.owner.Hex()),
				zap.String("required", required.String()),
				zap.String("actual", actual.String()),
			)
			return &FillError{
				Check:    c.check,
				Address:  c.owner,
				Token:    c.token,
				Required: required,
				Actual:   actual,
			}
		}
	}

	return nil
}

func (v *Validator) proxyAllowance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	return v.ledger.Allowance(ctx, token, owner, v.proxy)
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
