package dealerrfq

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/shopspring/decimal"
)

const (
	// MaxDecimals is the largest ERC-20 decimals value accepted.
	MaxDecimals = 77
	// EtherDecimals is the decimals of ether and most ERC-20 tokens.
	EtherDecimals = 18
)

// ToBaseUnits converts a display amount into base units. Amounts with more
// fractional digits than the token supports are rejected, not rounded.
func ToBaseUnits(amount decimal.Decimal, decimals uint8) (*big.Int, error) {
	if amount.IsNegative() {
		return nil, &InvalidParamError{Message: fmt.Sprintf("amount must not be negative, got: %s", amount)}
	}
	if decimals > MaxDecimals {
		return nil, &InvalidParamError{Message: fmt.Sprintf("decimals must be between 0 and %d, got: %d", MaxDecimals, decimals)}
	}

	shifted := amount.Shift(int32(decimals))
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, &InvalidParamError{
			Message: fmt.Sprintf("amount %s has more than %d decimal places", amount, decimals),
		}
	}

	result := shifted.BigInt()
	if result.Cmp(math.MaxBig256) > 0 {
		return nil, &InvalidParamError{Message: fmt.Sprintf("amount too large for uint256: %s", result.String())}
	}
	return result, nil
}

// FromBaseUnits converts a base unit amount into display units.
func FromBaseUnits(amount *big.Int, decimals uint8) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -int32(decimals))
}

// ToWei converts whole ether units (18 decimals) into wei.
func ToWei(amount string) (*big.Int, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, &InvalidParamError{Message: fmt.Sprintf("invalid amount %q: %v", amount, err)}
	}
	return ToBaseUnits(d, EtherDecimals)
}

// FromWei converts wei into whole ether units as a string.
func FromWei(amount *big.Int) string {
	return FromBaseUnits(amount, EtherDecimals).String()
}

// Price returns the taker asset paid per maker asset unit, in display units.
func (q *Quote) Price(makerDecimals, takerDecimals uint8) decimal.Decimal {
	maker := FromBaseUnits(q.MakerAssetSize, makerDecimals)
	if maker.IsZero() {
		return decimal.Zero
	}
	return FromBaseUnits(q.TakerAssetSize, takerDecimals).Div(maker)
}
