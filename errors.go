package dealerrfq

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kaifufi/dealer-rfq-sdk-go/chain"
)

var (
	// ErrInvalidParam represents an invalid parameter error
	ErrInvalidParam = errors.New("invalid parameter")

	// ErrUnsupportedPair is returned for a market the dealer does not serve
	ErrUnsupportedPair = errors.New("unsupported token pair")

	// ErrUnknownTicker is returned for a ticker missing from the dealer's assets
	ErrUnknownTicker = errors.New("unknown token ticker")

	// ErrDomainMismatch is returned when an order is bound to another chain or exchange
	ErrDomainMismatch = errors.New("order domain does not match client network")

	// ErrNotInitialized is returned by catalog lookups before Init
	ErrNotInitialized = errors.New("client not initialized (call Init first)")

	// ErrInvalidTxID is returned for transaction ids that are not 32-byte hex hashes
	ErrInvalidTxID = errors.New("invalid transaction ID")

	// ErrExplorerUnsupported is returned when no block explorer exists for the chain
	ErrExplorerUnsupported = errors.New("block explorer unsupported on current network")

	// ErrDealerRefused is returned when the dealer declines to quote
	ErrDealerRefused = errors.New("dealer refused request")

	// ErrSubmissionRejected is returned when the dealer rejects a signed fill
	ErrSubmissionRejected = errors.New("fill submission rejected")

	// ErrTransport is returned when the dealer cannot be reached or answers garbage
	ErrTransport = errors.New("transport error")
)

// Quote parsing errors
var (
	ErrMalformedNumber  = errors.New("malformed number")
	ErrMalformedAddress = errors.New("malformed address")
	ErrMalformedHex     = errors.New("malformed hex data")
	ErrMissingField     = errors.New("missing field")
	ErrInvalidQuote     = errors.New("invalid quote")
)

// Precondition errors, one per validator check
var (
	ErrTakerMismatch              = errors.New("taker address does not match order")
	ErrOrderExpired               = errors.New("order expired")
	ErrInsufficientTakerAllowance = errors.New("insufficient taker allowance")
	ErrInsufficientTakerBalance   = errors.New("insufficient taker balance")
	ErrInsufficientMakerAllowance = errors.New("insufficient maker allowance")
	ErrInsufficientMakerBalance   = errors.New("insufficient maker balance")
)

// Errors surfaced from the chain package
var (
	ErrInvalidFillAmount  = chain.ErrInvalidFillAmount
	ErrSigningDenied      = chain.ErrSigningDenied
	ErrSignerUnavailable  = chain.ErrSignerUnavailable
	ErrTransactionFailed  = chain.ErrTransactionFailed
	ErrSignatureMismatch  = chain.ErrSignatureMismatch
	ErrMalformedAssetData = chain.ErrMalformedAssetData
)

// InvalidParamError represents an invalid parameter error with context
type InvalidParamError struct {
	Message string
}

func (e *InvalidParamError) Error() string {
	return e.Message
}

func (e *InvalidParamError) Unwrap() error {
	return ErrInvalidParam
}

// ParseError names the wire field that failed to decode.
type ParseError struct {
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("failed to parse quote field %q: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("failed to parse quote field %q (%s): %v", e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// FillCheck identifies one precondition of a fill.
type FillCheck int

const (
	CheckTakerMatch FillCheck = iota + 1
	CheckExpiration
	CheckTakerAllowance
	CheckTakerBalance
	CheckMakerAllowance
	CheckMakerBalance
)

var fillCheckErrors = map[FillCheck]error{
	CheckTakerMatch:     ErrTakerMismatch,
	CheckExpiration:     ErrOrderExpired,
	CheckTakerAllowance: ErrInsufficientTakerAllowance,
	CheckTakerBalance:   ErrInsufficientTakerBalance,
	CheckMakerAllowance: ErrInsufficientMakerAllowance,
	CheckMakerBalance:   ErrInsufficientMakerBalance,
}

func (c FillCheck) String() string {
	switch c {
	case CheckTakerMatch:
		return "taker_match"
	case CheckExpiration:
		return "expiration"
	case CheckTakerAllowance:
		return "taker_allowance"
	case CheckTakerBalance:
		return "taker_balance"
	case CheckMakerAllowance:
		return "maker_allowance"
	case CheckMakerBalance:
		return "maker_balance"
	default:
		return "unknown"
	}
}

// FillError reports the first precondition a fill failed. Required and
// Actual hold the compared amounts (or timestamps for CheckExpiration).
type FillError struct {
	Check    FillCheck
	Address  common.Address
	Token    common.Address
	Required *big.Int
	Actual   *big.Int
}

func (e *FillError) Error() string {
	switch e.Check {
	case CheckTakerMatch:
		return fmt.Sprintf("%v: order reserved for %s", e.Unwrap(), e.Address.Hex())
	case CheckExpiration:
		return fmt.Sprintf("%v: expired at %s, now %s", e.Unwrap(), e.Required, e.Actual)
	default:
		return fmt.Sprintf("%v: %s has %s of token %s, needs %s",
			e.Unwrap(), e.Address.Hex(), e.Actual, e.Token.Hex(), e.Required)
	}
}

func (e *FillError) Unwrap() error {
	if err, ok := fillCheckErrors[e.Check]; ok {
		return err
	}
	return errors.New("unknown fill check")
}

// SubmissionError carries the dealer's reason for rejecting a signed fill.
// The quote is spent; a retry needs a fresh quote.
type SubmissionError struct {
	QuoteID    string
	Reason     string
	StatusCode int
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("dealer rejected fill for quote %s: %s", e.QuoteID, e.Reason)
}

func (e *SubmissionError) Unwrap() error {
	return ErrSubmissionRejected
}

// DealerError is a structured refusal from the dealer outside of fill
// submission, such as a quote request for an unsupported size.
type DealerError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *DealerError) Error() string {
	return fmt.Sprintf("dealer %s failed (HTTP %d): %s", e.Op, e.StatusCode, e.Message)
}

func (e *DealerError) Unwrap() error {
	return ErrDealerRefused
}

// TransportError wraps a network or framing failure talking to the dealer.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("dealer %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is makes every TransportError match ErrTransport.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}
