// Package dealertest provides an in-process dealer and ledger for exercising
// the RFQ client end to end.
package dealertest

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	dealerrfq "github.com/kaifufi/dealer-rfq-sdk-go"
	"github.com/kaifufi/dealer-rfq-sdk-go/chain"
	"github.com/shopspring/decimal"
)

// Rejection reasons returned by the dealer
const (
	ReasonUnknownQuote   = "unknown quote"
	ReasonAlreadyFilled  = "order already filled"
	ReasonQuoteExpired   = "quote expired"
	ReasonInvalidPayload = "invalid fill payload"
	ReasonDataMismatch   = "fill data does not match quote"
	ReasonBadSignature   = "invalid signature"
)

// Config configures a Dealer.
type Config struct {
	Maker    *chain.KeySigner
	Exchange common.Address
	ChainID  *big.Int
	Ledger   *Ledger

	// Tokens maps tickers to addresses; Pairs lists "BASE/QUOTE" markets.
	Tokens map[string]common.Address
	Pairs  []string

	// Price is maker asset units paid per taker asset unit.
	Price decimal.Decimal

	TTL      time.Duration
	GasPrice *big.Int
	Now      func() time.Time
}

// Dealer is an in-process dealer serving the HTTP and JSON-RPC contracts. It
// signs real orders with its maker key and checks every fill it receives.
type Dealer struct {
	cfg Config

	mu            sync.Mutex
	quotes        map[string]*chain.SignedOrder
	filled        map[string]bool
	blocked       map[common.Address]string
	rejectReason  string
	reservedTaker *common.Address
	quoteRequests int
	fillRequests  int
	lastFill      *dealerrfq.FillRequest
}

// New creates a dealer.
func New(cfg Config) *Dealer {
	if cfg.TTL == 0 {
		cfg.TTL = time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.GasPrice == nil {
		cfg.GasPrice = new(big.Int)
	}
	return &Dealer{
		cfg:     cfg,
		quotes:  make(map[string]*chain.SignedOrder),
		filled:  make(map[string]bool),
		blocked: make(map[common.Address]string),
	}
}

// RejectFills makes every later fill fail with reason.
func (d *Dealer) RejectFills(reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rejectReason = reason
}

// ReserveOrdersFor sets the takerAddress of every later order.
func (d *Dealer) ReserveOrdersFor(taker common.Address) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reservedTaker = &taker
}

// Block refuses to trade with addr.
func (d *Dealer) Block(addr common.Address, reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.blocked[addr] = reason
}

// QuoteRequests returns how many quotes were requested.
func (d *Dealer) QuoteRequests() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.quoteRequests
}

// FillRequests returns how many fills were submitted, accepted or not.
func (d *Dealer) FillRequests() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fillRequests
}

// LastFill returns the most recent fill request body.
func (d *Dealer) LastFill() *dealerrfq.FillRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastFill
}

// Order returns the order issued for quoteID.
func (d *Dealer) Order(quoteID string) (*chain.SignedOrder, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	o, ok := d.quotes[quoteID]
	return o, ok
}

// Quote issues a signed quote. Exactly one of makerSize and takerSize is set.
func (d *Dealer) Quote(makerToken, takerToken common.Address, makerSize, takerSize *big.Int, taker *common.Address) (*dealerrfq.WireQuote, error) {
	d.mu.Lock()
	d.quoteRequests++
	reserved := d.reservedTaker
	d.mu.Unlock()

	switch {
	case makerSize == nil && takerSize != nil:
		makerSize = decimal.NewFromBigInt(takerSize, 0).Mul(d.cfg.Price).BigInt()
	case takerSize == nil && makerSize != nil:
		takerSize = decimal.NewFromBigInt(makerSize, 0).Div(d.cfg.Price).BigInt()
	default:
		return nil, errors.New("exactly one of makerSize and takerSize is required")
	}
	if makerSize.Sign() <= 0 || takerSize.Sign() <= 0 {
		return nil, errors.New("size too small")
	}

	now := d.cfg.Now()
	expiration := now.Add(d.cfg.TTL).Unix()

	order := &chain.SignedOrder{
		Order: chain.Order{
			MakerAddress:          d.cfg.Maker.Address(),
			MakerAssetAmount:      makerSize,
			TakerAssetAmount:      takerSize,
			MakerFee:              new(big.Int),
			TakerFee:              new(big.Int),
			ExpirationTimeSeconds: big.NewInt(expiration),
			MakerAssetData:        chain.EncodeERC20AssetData(makerToken),
			TakerAssetData:        chain.EncodeERC20AssetData(takerToken),
			MakerFeeAssetData:     []byte{},
			TakerFeeAssetData:     []byte{},
		},
		ExchangeAddress: d.cfg.Exchange,
		ChainID:         d.cfg.ChainID,
	}
	if reserved != nil {
		order.TakerAddress = *reserved
	}

	var err error
	if order.Salt, err = chain.GenerateSalt(); err != nil {
		return nil, err
	}
	hash, err := chain.OrderHash(order)
	if err != nil {
		return nil, err
	}
	if order.Signature, err = d.cfg.Maker.Sign(context.Background(), chain.SignRequest{
		Address: d.cfg.Maker.Address(),
		Hash:    hash,
	}); err != nil {
		return nil, err
	}

	quote := &dealerrfq.Quote{
		ID:                uuid.NewString(),
		MakerAssetAddress: makerToken,
		TakerAssetAddress: takerToken,
		MakerAssetSize:    makerSize,
		TakerAssetSize:    takerSize,
		Expiration:        decimal.NewFromInt(expiration),
		ServerTime:        decimal.New(now.UnixNano(), -9),
		Order:             order,
	}

	if taker != nil {
		salt, err := chain.GenerateSalt()
		if err != nil {
			return nil, err
		}
		data, err := chain.EncodeFillOrderData(order, takerSize)
		if err != nil {
			return nil, err
		}
		quote.Transaction = &chain.TransactionTemplate{
			Salt:                  salt,
			ExpirationTimeSeconds: big.NewInt(expiration),
			GasPrice:              d.cfg.GasPrice,
			SignerAddress:         *taker,
			Data:                  data,
			Domain:                order.Domain(),
		}
	}

	d.mu.Lock()
	d.quotes[quote.ID] = order
	d.mu.Unlock()

	return quote.Wire(), nil
}

// PairQuote issues a quote on a "BASE/QUOTE" market. On a bid the taker buys
// size of BASE; on an ask the taker sells it.
func (d *Dealer) PairQuote(symbol string, side dealerrfq.QuoteSide, size decimal.Decimal, taker *common.Address) (*dealerrfq.WireQuote, error) {
	base, quote, ok := strings.Cut(symbol, "/")
	if !ok {
		return nil, fmt.Errorf("bad symbol %q", symbol)
	}
	baseToken, ok := d.cfg.Tokens[base]
	if !ok {
		return nil, fmt.Errorf("unknown asset %s", base)
	}
	quoteToken, ok := d.cfg.Tokens[quote]
	if !ok {
		return nil, fmt.Errorf("unknown asset %s", quote)
	}

	amount, err := dealerrfq.ToBaseUnits(size, dealerrfq.EtherDecimals)
	if err != nil {
		return nil, err
	}
	switch side {
	case dealerrfq.QuoteSideBid:
		return d.Quote(baseToken, quoteToken, amount, nil, taker)
	case dealerrfq.QuoteSideAsk:
		return d.Quote(quoteToken, baseToken, nil, amount, taker)
	default:
		return nil, fmt.Errorf("bad side %q", side)
	}
}

// Fill checks and relays a signed fill, returning the relay transaction id.
// The returned error text is the rejection reason.
func (d *Dealer) Fill(req *dealerrfq.FillRequest) (string, error) {
	d.mu.Lock()
	d.fillRequests++
	d.lastFill = req
	reject := d.rejectReason
	order, known := d.quotes[req.QuoteID]
	filled := d.filled[req.QuoteID]
	d.mu.Unlock()

	switch {
	case reject != "":
		return "", errors.New(reject)
	case !known:
		return "", errors.New(ReasonUnknownQuote)
	case filled:
		return "", errors.New(ReasonAlreadyFilled)
	}

	fill, err := decodeFill(req)
	if err != nil {
		return "", errors.New(ReasonInvalidPayload)
	}
	if fill.ExpirationTimeSeconds.Cmp(big.NewInt(d.cfg.Now().Unix())) <= 0 {
		return "", errors.New(ReasonQuoteExpired)
	}

	decoded, amount, orderSig, err := chain.DecodeFillOrderData(fill.Data)
	if err != nil {
		return "", errors.New(ReasonInvalidPayload)
	}
	if chain.OrderStructHash(decoded) != chain.OrderStructHash(&order.Order) || !bytes.Equal(orderSig, order.Signature) {
		return "", errors.New(ReasonDataMismatch)
	}

	fill.Domain = order.Domain()
	if err := chain.VerifySignature(fill.TransactionHash(), fill.Signature, fill.SignerAddress); err != nil {
		return "", errors.New(ReasonBadSignature)
	}

	d.mu.Lock()
	if d.filled[req.QuoteID] {
		d.mu.Unlock()
		return "", errors.New(ReasonAlreadyFilled)
	}
	d.filled[req.QuoteID] = true
	d.mu.Unlock()

	makerToken, _ := chain.DecodeERC20AssetData(order.MakerAssetData)
	takerToken, _ := chain.DecodeERC20AssetData(order.TakerAssetData)
	makerAmount := new(big.Int).Mul(order.MakerAssetAmount, amount)
	makerAmount.Div(makerAmount, order.TakerAssetAmount)

	settled := d.cfg.Ledger.Settle(makerToken, takerToken, order.MakerAddress, fill.SignerAddress, makerAmount, amount)

	var txHash common.Hash
	if _, err := rand.Read(txHash[:]); err != nil {
		return "", err
	}
	d.cfg.Ledger.Mine(txHash, settled)
	return txHash.Hex(), nil
}

// Authorization reports whether the dealer trades with addr.
func (d *Dealer) Authorization(addr common.Address) *dealerrfq.AuthorizationInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	if reason, ok := d.blocked[addr]; ok {
		return &dealerrfq.AuthorizationInfo{Authorized: false, Reason: reason}
	}
	return &dealerrfq.AuthorizationInfo{Authorized: true}
}

func decodeFill(req *dealerrfq.FillRequest) (*chain.SignedFill, error) {
	salt, ok := new(big.Int).SetString(string(req.Salt), 10)
	if !ok {
		return nil, errors.New("bad salt")
	}
	expiration, ok := new(big.Int).SetString(string(req.Expiration), 10)
	if !ok {
		return nil, errors.New("bad expiration")
	}
	gasPrice := new(big.Int)
	if req.GasPrice != "" {
		if gasPrice, ok = gasPrice.SetString(string(req.GasPrice), 10); !ok {
			return nil, errors.New("bad gas price")
		}
	}
	if !common.IsHexAddress(req.SignerAddress) {
		return nil, errors.New("bad signer")
	}
	data, err := hexutil.Decode(req.Data)
	if err != nil {
		return nil, err
	}
	sig, err := hexutil.Decode(req.Signature)
	if err != nil {
		return nil, err
	}
	return &chain.SignedFill{
		UnsignedFill: chain.UnsignedFill{
			Salt:                  salt,
			ExpirationTimeSeconds: expiration,
			GasPrice:              gasPrice,
			SignerAddress:         common.HexToAddress(req.SignerAddress),
			Data:                  data,
		},
		Signature: sig,
	}, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
