package dealerrfq

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/kaifufi/dealer-rfq-sdk-go/chain"
	"github.com/shopspring/decimal"
)

const (
	orderField       = "zeroExTransactionInfo.order"
	transactionField = "zeroExTransactionInfo.transaction"
)

// ParseQuoteJSON decodes and parses a raw GET /quote body.
func ParseQuoteJSON(data []byte) (*Quote, error) {
	var raw WireQuote
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ParseError{Field: "quote", Err: fmt.Errorf("%w: %v", ErrInvalidQuote, err)}
	}
	return ParseQuote(&raw)
}

// ParseQuote turns an untrusted wire quote into a typed Quote. It checks
// field syntax and the quote's own invariants only; it never consults the
// chain or the clock.
func ParseQuote(raw *WireQuote) (*Quote, error) {
	if raw == nil {
		return nil, &ParseError{Field: "quote", Err: ErrMissingField}
	}
	if raw.QuoteID == "" {
		return nil, &ParseError{Field: "quoteId", Err: ErrMissingField}
	}

	makerAsset, err := parseAddress("makerAssetAddress", raw.MakerAssetAddress)
	if err != nil {
		return nil, err
	}
	takerAsset, err := parseAddress("takerAssetAddress", raw.TakerAssetAddress)
	if err != nil {
		return nil, err
	}
	makerSize, err := parsePositiveUint("makerAssetSize", raw.MakerAssetSize)
	if err != nil {
		return nil, err
	}
	takerSize, err := parsePositiveUint("takerAssetSize", raw.TakerAssetSize)
	if err != nil {
		return nil, err
	}
	expiration, err := parseTimestamp("expiration", raw.Expiration)
	if err != nil {
		return nil, err
	}
	serverTime, err := parseTimestamp("serverTime", raw.ServerTime)
	if err != nil {
		return nil, err
	}
	if !expiration.GreaterThan(serverTime) {
		return nil, &ParseError{
			Field: "expiration",
			Value: expiration.String(),
			Err:   fmt.Errorf("%w: expiration not after serverTime %s", ErrInvalidQuote, serverTime),
		}
	}

	if raw.ZeroExTransactionInfo.Order == nil {
		return nil, &ParseError{Field: orderField, Err: ErrMissingField}
	}
	order, err := ParseOrder(raw.ZeroExTransactionInfo.Order)
	if err != nil {
		return nil, err
	}
	if err := checkAssetData(orderField+".makerAssetData", order.MakerAssetData, makerAsset); err != nil {
		return nil, err
	}
	if err := checkAssetData(orderField+".takerAssetData", order.TakerAssetData, takerAsset); err != nil {
		return nil, err
	}

	quote := &Quote{
		ID:                raw.QuoteID,
		MakerAssetAddress: makerAsset,
		TakerAssetAddress: takerAsset,
		MakerAssetSize:    makerSize,
		TakerAssetSize:    takerSize,
		Expiration:        expiration,
		ServerTime:        serverTime,
		Order:             order,
	}

	if wt := raw.ZeroExTransactionInfo.Transaction; wt != nil {
		tmpl, err := parseTransaction(wt, order)
		if err != nil {
			return nil, err
		}
		quote.Transaction = tmpl
	}

	return quote, nil
}

// ParseOrder parses a wire order. Errors name fields relative to the quote.
func ParseOrder(w *WireOrder) (*chain.SignedOrder, error) {
	var (
		o   chain.SignedOrder
		err error
	)

	addresses := []struct {
		name string
		raw  string
		dst  *common.Address
	}{
		{"exchangeAddress", w.ExchangeAddress, &o.ExchangeAddress},
		{"makerAddress", w.MakerAddress, &o.MakerAddress},
		{"takerAddress", w.TakerAddress, &o.TakerAddress},
		{"feeRecipientAddress", w.FeeRecipientAddress, &o.FeeRecipientAddress},
		{"senderAddress", w.SenderAddress, &o.SenderAddress},
	}
	for _, a := range addresses {
		if *a.dst, err = parseAddress(orderField+"."+a.name, a.raw); err != nil {
			return nil, err
		}
	}

	numbers := []struct {
		name string
		raw  WireNumber
		dst  **big.Int
	}{
		{"chainId", w.ChainID, &o.ChainID},
		{"makerAssetAmount", w.MakerAssetAmount, &o.MakerAssetAmount},
		{"takerAssetAmount", w.TakerAssetAmount, &o.TakerAssetAmount},
		{"makerFee", w.MakerFee, &o.MakerFee},
		{"takerFee", w.TakerFee, &o.TakerFee},
		{"expirationTimeSeconds", w.ExpirationTimeSeconds, &o.ExpirationTimeSeconds},
		{"salt", w.Salt, &o.Salt},
	}
	for _, n := range numbers {
		if *n.dst, err = parseUint(orderField+"."+n.name, n.raw); err != nil {
			return nil, err
		}
	}

	blobs := []struct {
		name string
		raw  string
		dst  *[]byte
	}{
		{"makerAssetData", w.MakerAssetData, &o.MakerAssetData},
		{"takerAssetData", w.TakerAssetData, &o.TakerAssetData},
		{"makerFeeAssetData", w.MakerFeeAssetData, &o.MakerFeeAssetData},
		{"takerFeeAssetData", w.TakerFeeAssetData, &o.TakerFeeAssetData},
		{"signature", w.Signature, &o.Signature},
	}
	for _, b := range blobs {
		if *b.dst, err = parseHex(orderField+"."+b.name, b.raw); err != nil {
			return nil, err
		}
	}

	return &o, nil
}

func parseTransaction(w *WireTransaction, order *chain.SignedOrder) (*chain.TransactionTemplate, error) {
	salt, err := parseUint(transactionField+".salt", w.Salt)
	if err != nil {
		return nil, err
	}
	expiration, err := parseUint(transactionField+".expirationTimeSeconds", w.ExpirationTimeSeconds)
	if err != nil {
		return nil, err
	}
	gasPrice := new(big.Int)
	if w.GasPrice != "" {
		if gasPrice, err = parseUint(transactionField+".gasPrice", w.GasPrice); err != nil {
			return nil, err
		}
	}
	signer, err := parseAddress(transactionField+".signerAddress", w.SignerAddress)
	if err != nil {
		return nil, err
	}
	data, err := parseHex(transactionField+".data", w.Data)
	if err != nil {
		return nil, err
	}

	return &chain.TransactionTemplate{
		Salt:                  salt,
		ExpirationTimeSeconds: expiration,
		GasPrice:              gasPrice,
		SignerAddress:         signer,
		Data:                  data,
		Domain:                order.Domain(),
	}, nil
}

// Wire re-serializes the quote. ParseQuote(q.Wire()) yields an equal quote.
func (q *Quote) Wire() *WireQuote {
	w := &WireQuote{
		QuoteID:           q.ID,
		MakerAssetAddress: q.MakerAssetAddress.Hex(),
		TakerAssetAddress: q.TakerAssetAddress.Hex(),
		MakerAssetSize:    wireUint(q.MakerAssetSize),
		TakerAssetSize:    wireUint(q.TakerAssetSize),
		Expiration:        WireNumber(q.Expiration.String()),
		ServerTime:        WireNumber(q.ServerTime.String()),
	}
	if q.Order != nil {
		w.ZeroExTransactionInfo.Order = WireOrderFrom(q.Order)
	}
	if t := q.Transaction; t != nil {
		w.ZeroExTransactionInfo.Transaction = &WireTransaction{
			Salt:                  wireUint(t.Salt),
			ExpirationTimeSeconds: wireUint(t.ExpirationTimeSeconds),
			GasPrice:              wireUint(t.GasPrice),
			SignerAddress:         t.SignerAddress.Hex(),
			Data:                  hexutil.Encode(t.Data),
		}
	}
	return w
}

// WireOrderFrom serializes a signed order.
func WireOrderFrom(o *chain.SignedOrder) *WireOrder {
	return &WireOrder{
		ChainID:               wireUint(o.ChainID),
		ExchangeAddress:       o.ExchangeAddress.Hex(),
		MakerAddress:          o.MakerAddress.Hex(),
		TakerAddress:          o.TakerAddress.Hex(),
		FeeRecipientAddress:   o.FeeRecipientAddress.Hex(),
		SenderAddress:         o.SenderAddress.Hex(),
		MakerAssetAmount:      wireUint(o.MakerAssetAmount),
		TakerAssetAmount:      wireUint(o.TakerAssetAmount),
		MakerFee:              wireUint(o.MakerFee),
		TakerFee:              wireUint(o.TakerFee),
		ExpirationTimeSeconds: wireUint(o.ExpirationTimeSeconds),
		Salt:                  wireUint(o.Salt),
		MakerAssetData:        hexutil.Encode(o.MakerAssetData),
		TakerAssetData:        hexutil.Encode(o.TakerAssetData),
		MakerFeeAssetData:     hexutil.Encode(o.MakerFeeAssetData),
		TakerFeeAssetData:     hexutil.Encode(o.TakerFeeAssetData),
		Signature:             hexutil.Encode(o.Signature),
	}
}

func wireUint(v *big.Int) WireNumber {
	if v == nil {
		return "0"
	}
	return WireNumber(v.String())
}

// parseUint accepts only base-10 digit strings that fit in a uint256.
func parseUint(field string, raw WireNumber) (*big.Int, error) {
	s := string(raw)
	if s == "" {
		return nil, &ParseError{Field: field, Err: ErrMissingField}
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return nil, &ParseError{Field: field, Value: s, Err: ErrMalformedNumber}
		}
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, &ParseError{Field: field, Value: s, Err: ErrMalformedNumber}
	}
	if v.Cmp(math.MaxBig256) > 0 {
		return nil, &ParseError{Field: field, Value: s, Err: fmt.Errorf("%w: exceeds uint256", ErrMalformedNumber)}
	}
	return v, nil
}

func parsePositiveUint(field string, raw WireNumber) (*big.Int, error) {
	v, err := parseUint(field, raw)
	if err != nil {
		return nil, err
	}
	if v.Sign() == 0 {
		return nil, &ParseError{Field: field, Value: string(raw), Err: fmt.Errorf("%w: must be positive", ErrInvalidQuote)}
	}
	return v, nil
}

// parseTimestamp accepts a non-negative decimal, keeping sub-second digits.
func parseTimestamp(field string, raw WireNumber) (decimal.Decimal, error) {
	s := string(raw)
	if s == "" {
		return decimal.Zero, &ParseError{Field: field, Err: ErrMissingField}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &ParseError{Field: field, Value: s, Err: fmt.Errorf("%w: %v", ErrMalformedNumber, err)}
	}
	if d.IsNegative() {
		return decimal.Zero, &ParseError{Field: field, Value: s, Err: ErrMalformedNumber}
	}
	return d, nil
}

func parseAddress(field, raw string) (common.Address, error) {
	if raw == "" {
		return common.Address{}, &ParseError{Field: field, Err: ErrMissingField}
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, &ParseError{Field: field, Value: raw, Err: ErrMalformedAddress}
	}
	return common.HexToAddress(raw), nil
}

func parseHex(field, raw string) ([]byte, error) {
	if raw == "" {
		return nil, &ParseError{Field: field, Err: ErrMissingField}
	}
	b, err := hexutil.Decode(raw)
	if err != nil {
		return nil, &ParseError{Field: field, Value: raw, Err: fmt.Errorf("%w: %v", ErrMalformedHex, err)}
	}
	return b, nil
}

func checkAssetData(field string, assetData []byte, want common.Address) error {
	token, err := chain.DecodeERC20AssetData(assetData)
	if err != nil {
		return &ParseError{Field: field, Err: err}
	}
	if token != want {
		return &ParseError{
			Field: field,
			Value: token.Hex(),
			Err:   fmt.Errorf("%w: asset data encodes %s, quote names %s", ErrInvalidQuote, token.Hex(), want.Hex()),
		}
	}
	return nil
}
