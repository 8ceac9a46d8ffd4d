package dealerrfq

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kaifufi/dealer-rfq-sdk-go/chain"
	"github.com/shopspring/decimal"
)

// FillState is a step of the sign-and-submit state machine.
type FillState int

const (
	FillStateBuilt FillState = iota + 1
	FillStateSigned
	FillStateSubmitted
	FillStateAccepted
	FillStateRejected
)

func (s FillState) String() string {
	switch s {
	case FillStateBuilt:
		return "built"
	case FillStateSigned:
		return "signed"
	case FillStateSubmitted:
		return "submitted"
	case FillStateAccepted:
		return "accepted"
	case FillStateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// QuoteSide is the side of a pair quote from the taker's point of view.
type QuoteSide string

const (
	QuoteSideBid QuoteSide = "bid"
	QuoteSideAsk QuoteSide = "ask"
)

// Quote is a parsed dealer offer. It is immutable after ParseQuote.
type Quote struct {
	ID                string
	MakerAssetAddress common.Address
	TakerAssetAddress common.Address
	MakerAssetSize    *big.Int
	TakerAssetSize    *big.Int
	Expiration        decimal.Decimal
	ServerTime        decimal.Decimal
	Order             *chain.SignedOrder

	// Transaction is nil when the dealer sends no template.
	Transaction *chain.TransactionTemplate
}

// WireNumber is a numeric wire field sent either as a JSON string or a JSON
// number. The literal text is kept so no precision is lost.
type WireNumber string

// UnmarshalJSON accepts "123", 123 and 1559170656.0712497.
func (n *WireNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = WireNumber(s)
		return nil
	}

	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("%w: %s", ErrMalformedNumber, string(data))
	}
	*n = WireNumber(num.String())
	return nil
}

// MarshalJSON always emits a string.
func (n WireNumber) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(n))
}

// WireQuote is the JSON shape of a GET /quote response.
type WireQuote struct {
	QuoteID           string     `json:"quoteId"`
	MakerAssetAddress string     `json:"makerAssetAddress"`
	TakerAssetAddress string     `json:"takerAssetAddress"`
	MakerAssetSize    WireNumber `json:"makerAssetSize"`
	TakerAssetSize    WireNumber `json:"takerAssetSize"`
	Expiration        WireNumber `json:"expiration"`
	ServerTime        WireNumber `json:"serverTime"`

	ZeroExTransactionInfo WireTransactionInfo `json:"zeroExTransactionInfo"`
}

// WireTransactionInfo bundles the signed order and the unsigned template.
type WireTransactionInfo struct {
	Order       *WireOrder       `json:"order"`
	Transaction *WireTransaction `json:"transaction,omitempty"`
}

// WireOrder is the JSON shape of a signed 0x v3 order.
type WireOrder struct {
	ChainID               WireNumber `json:"chainId"`
	ExchangeAddress       string     `json:"exchangeAddress"`
	MakerAddress          string     `json:"makerAddress"`
	TakerAddress          string     `json:"takerAddress"`
	FeeRecipientAddress   string     `json:"feeRecipientAddress"`
	SenderAddress         string     `json:"senderAddress"`
	MakerAssetAmount      WireNumber `json:"makerAssetAmount"`
	TakerAssetAmount      WireNumber `json:"takerAssetAmount"`
	MakerFee              WireNumber `json:"makerFee"`
	TakerFee              WireNumber `json:"takerFee"`
	ExpirationTimeSeconds WireNumber `json:"expirationTimeSeconds"`
	Salt                  WireNumber `json:"salt"`
	MakerAssetData        string     `json:"makerAssetData"`
	TakerAssetData        string     `json:"takerAssetData"`
	MakerFeeAssetData     string     `json:"makerFeeAssetData"`
	TakerFeeAssetData     string     `json:"takerFeeAssetData"`
	Signature             string     `json:"signature"`
}

// WireTransaction is the JSON shape of an unsigned ZeroExTransaction. It
// carries no domain; the domain comes from the order.
type WireTransaction struct {
	Salt                  WireNumber `json:"salt"`
	ExpirationTimeSeconds WireNumber `json:"expirationTimeSeconds"`
	GasPrice              WireNumber `json:"gasPrice,omitempty"`
	SignerAddress         string     `json:"signerAddress"`
	Data                  string     `json:"data"`
}

// QuoteRequest asks the dealer to price a swap. Exactly one of MakerSize and
// TakerSize is set; the dealer fills in the other.
type QuoteRequest struct {
	MakerAsset   common.Address
	TakerAsset   common.Address
	MakerSize    *big.Int
	TakerSize    *big.Int
	TakerAddress *common.Address
}

// PairQuoteRequest asks for a bid or ask on a "BASE/QUOTE" market, with size
// in display units of the base asset.
type PairQuoteRequest struct {
	Symbol       string
	Side         QuoteSide
	Size         decimal.Decimal
	TakerAddress *common.Address
}

// FillRequest is the body of POST /fill.
type FillRequest struct {
	QuoteID       string     `json:"quoteId"`
	Salt          WireNumber `json:"salt"`
	SignerAddress string     `json:"signerAddress"`
	Data          string     `json:"data"`
	Signature     string     `json:"signature"`
	Expiration    WireNumber `json:"expiration"`
	GasPrice      WireNumber `json:"gasPrice,omitempty"`
	Hash          string     `json:"hash,omitempty"`
}

// FillResponse is the body of an accepted POST /fill.
type FillResponse struct {
	TxID string `json:"txId"`
}

// errorResponse is the body of any refused dealer request.
type errorResponse struct {
	Error string `json:"error"`
}

// AuthorizationInfo reports whether the dealer will trade with a taker.
type AuthorizationInfo struct {
	Authorized bool   `json:"authorized"`
	Reason     string `json:"reason,omitempty"`
}

// FillOptions customises Client.Fill.
type FillOptions struct {
	// Amount of the taker asset to fill. Defaults to the full order.
	Amount *big.Int
	// Taker overrides the client's default taker address.
	Taker *common.Address
	// SkipValidation bypasses the precondition checks.
	SkipValidation bool
	// VerifyMakerSignature recovers the order signer before building.
	VerifyMakerSignature bool
}

// FillResult is an accepted fill.
type FillResult struct {
	QuoteID string
	TxID    string
	Fill    *chain.SignedFill
}
