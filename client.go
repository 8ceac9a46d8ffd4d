package dealerrfq

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"sort"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/kaifufi/dealer-rfq-sdk-go/chain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var txIDPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// Ledger is everything the client needs from the chain. *chain.Ledger
// satisfies it.
type Ledger interface {
	LedgerReader
	ChainID(ctx context.Context) (*big.Int, error)
	Decimals(ctx context.Context, token common.Address) (uint8, error)
	SetUnlimitedProxyAllowance(ctx context.Context, token common.Address, gasPrice *big.Int) (*types.Transaction, error)
	AwaitTransaction(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

var _ Ledger = (*chain.Ledger)(nil)

// Network is the deployment a client is bound to. It is fixed at NewClient.
type Network struct {
	ChainID    *big.Int
	Exchange   common.Address
	ERC20Proxy common.Address
}

// Catalog is the dealer's markets and assets as loaded by Init.
type Catalog struct {
	Pairs  []string
	Tokens map[string]common.Address
}

// Client is the main SDK client
type Client struct {
	config    ClientConfig
	network   Network
	taker     common.Address
	dealer    Dealer
	source    CatalogSource
	ledger    Ledger
	signer    chain.Signer
	builder   *chain.FillBuilder
	validator *Validator
	submitter *Submitter
	logger    *zap.Logger
	metrics   *Metrics
	now       func() time.Time
	catalog   atomic.Pointer[Catalog]
	closers   []func()
}

type clientOptions struct {
	logger  *zap.Logger
	signer  chain.Signer
	ledger  Ledger
	dealer  Dealer
	metrics *Metrics
	now     func() time.Time
}

// Option configures a Client.
type Option func(*clientOptions)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// WithSigner sets the fill signer instead of one derived from the config.
func WithSigner(signer chain.Signer) Option {
	return func(o *clientOptions) {
		o.signer = signer
	}
}

// WithLedger sets the ledger instead of dialing RPCURL.
func WithLedger(ledger Ledger) Option {
	return func(o *clientOptions) {
		o.ledger = ledger
	}
}

// WithDealer sets the dealer transport instead of one built from DealerURL.
func WithDealer(dealer Dealer) Option {
	return func(o *clientOptions) {
		o.dealer = dealer
	}
}

// WithMetrics sets the metrics sink. Defaults to NopMetrics.
func WithMetrics(metrics *Metrics) Option {
	return func(o *clientOptions) {
		o.metrics = metrics
	}
}

// WithClock overrides the clock used for expiration checks.
func WithClock(now func() time.Time) Option {
	return func(o *clientOptions) {
		o.now = now
	}
}

// NewClient creates a new dealer RFQ client
func NewClient(config ClientConfig, opts ...Option) (*Client, error) {
	options := clientOptions{
		logger:  zap.NewNop(),
		metrics: NopMetrics(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(&options)
	}

	if err := config.applyDefaults(); err != nil {
		return nil, err
	}

	network, err := resolveNetwork(config)
	if err != nil {
		return nil, err
	}

	c := &Client{
		config:  config,
		network: network,
		logger:  options.logger,
		metrics: options.metrics,
		now:     options.now,
	}

	built := false
	defer func() {
		if !built {
			c.Close()
		}
	}()

	var keySigner *chain.KeySigner
	if config.PrivateKey != "" {
		if keySigner, err = chain.NewKeySignerFromHex(config.PrivateKey); err != nil {
			return nil, &InvalidParamError{Message: err.Error()}
		}
	}

	var rpcClient *rpc.Client
	if (options.ledger == nil || (options.signer == nil && keySigner == nil)) && config.RPCURL != "" {
		if rpcClient, err = rpc.Dial(config.RPCURL); err != nil {
			return nil, fmt.Errorf("failed to connect to RPC: %w", err)
		}
		c.closers = append(c.closers, rpcClient.Close)
	}

	c.ledger = options.ledger
	if c.ledger == nil {
		if rpcClient == nil {
			return nil, &InvalidParamError{Message: "rpc url is required when no ledger is supplied"}
		}
		ledgerOpts := []chain.LedgerOption{chain.WithPollInterval(config.ConfirmationPollInterval)}
		if keySigner != nil {
			ledgerOpts = append(ledgerOpts, chain.WithTransactor(keySigner.PrivateKey()))
		}
		c.ledger = chain.NewLedger(ethclient.NewClient(rpcClient), network.ERC20Proxy, ledgerOpts...)
	}

	switch {
	case options.signer != nil:
		c.signer = options.signer
	case keySigner != nil:
		c.signer = keySigner
	case rpcClient != nil:
		c.signer = chain.NewRPCSigner(rpcClient)
	default:
		return nil, &InvalidParamError{Message: "a private key, rpc url or signer is required"}
	}

	if config.TakerAddress != "" {
		if !common.IsHexAddress(config.TakerAddress) {
			return nil, &InvalidParamError{Message: fmt.Sprintf("invalid taker address: %s", config.TakerAddress)}
		}
		c.taker = common.HexToAddress(config.TakerAddress)
	} else if keySigner != nil {
		c.taker = keySigner.Address()
	}

	c.dealer = options.dealer
	if c.dealer == nil {
		if c.dealer, err = newDealer(config, options.logger); err != nil {
			return nil, err
		}
		if closer, ok := c.dealer.(interface{ Close() }); ok {
			c.closers = append(c.closers, closer.Close)
		}
	}
	c.source, _ = c.dealer.(CatalogSource)

	c.builder = chain.NewFillBuilder(network.Exchange, network.ChainID)
	c.validator = NewValidator(c.ledger, network.ERC20Proxy, options.logger)
	c.submitter = NewSubmitter(c.signer, c.dealer, options.logger, options.metrics)

	built = true
	return c, nil
}

func resolveNetwork(config ClientConfig) (Network, error) {
	if !common.IsHexAddress(config.ExchangeAddress) {
		return Network{}, &InvalidParamError{Message: fmt.Sprintf("invalid exchange address: %s", config.ExchangeAddress)}
	}
	if !common.IsHexAddress(config.ERC20ProxyAddress) {
		return Network{}, &InvalidParamError{Message: fmt.Sprintf("invalid ERC20 proxy address: %s", config.ERC20ProxyAddress)}
	}
	return Network{
		ChainID:    big.NewInt(int64(config.ChainID)),
		Exchange:   common.HexToAddress(config.ExchangeAddress),
		ERC20Proxy: common.HexToAddress(config.ERC20ProxyAddress),
	}, nil
}

func newDealer(config ClientConfig, logger *zap.Logger) (Dealer, error) {
	if config.DealerURL == "" {
		return nil, &InvalidParamError{Message: "dealer URL is required"}
	}
	switch config.DealerTransport {
	case TransportJSONRPC:
		ctx, cancel := context.WithTimeout(context.Background(), config.RequestTimeout)
		defer cancel()
		dealer, err := DialRPCDealer(ctx, config.DealerURL, logger)
		if err != nil {
			return nil, err
		}
		return dealer, nil
	default:
		return NewAPIClient(config.DealerURL, config.RequestTimeout, logger), nil
	}
}

// Close closes the client and cleans up resources
func (c *Client) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// Network returns the deployment the client is bound to.
func (c *Client) Network() Network {
	return Network{
		ChainID:    new(big.Int).Set(c.network.ChainID),
		Exchange:   c.network.Exchange,
		ERC20Proxy: c.network.ERC20Proxy,
	}
}

// Init checks the ledger is on the configured chain and, for dealers that
// publish one, loads the market and asset catalog.
func (c *Client) Init(ctx context.Context) error {
	chainID, err := c.ledger.ChainID(ctx)
	if err != nil {
		return err
	}
	if chainID.Cmp(c.network.ChainID) != 0 {
		return fmt.Errorf("%w: ledger is on chain %s, client configured for %s", ErrDomainMismatch, chainID, c.network.ChainID)
	}

	if c.source == nil {
		c.logger.Info("dealer publishes no catalog, skipping market load")
		return nil
	}

	pairs, err := c.source.Markets(ctx)
	if err != nil {
		return fmt.Errorf("failed to load markets: %w", err)
	}
	tokens, err := c.source.Assets(ctx)
	if err != nil {
		return fmt.Errorf("failed to load assets: %w", err)
	}

	c.catalog.Store(&Catalog{Pairs: pairs, Tokens: tokens})
	c.logger.Info("dealer catalog loaded",
		zap.Int("pairs", len(pairs)),
		zap.Int("tokens", len(tokens)),
	)
	return nil
}

func (c *Client) loadedCatalog() (*Catalog, error) {
	catalog := c.catalog.Load()
	if catalog == nil {
		return nil, ErrNotInitialized
	}
	return catalog, nil
}

// Pairs returns the dealer's "BASE/QUOTE" markets.
func (c *Client) Pairs() ([]string, error) {
	catalog, err := c.loadedCatalog()
	if err != nil {
		return nil, err
	}
	return append([]string(nil), catalog.Pairs...), nil
}

// Tokens returns the dealer's ticker to address mapping.
func (c *Client) Tokens() (map[string]common.Address, error) {
	catalog, err := c.loadedCatalog()
	if err != nil {
		return nil, err
	}
	tokens := make(map[string]common.Address, len(catalog.Tokens))
	for ticker, addr := range catalog.Tokens {
		tokens[ticker] = addr
	}
	return tokens, nil
}

// SupportedTickers returns the dealer's token tickers, sorted.
func (c *Client) SupportedTickers() ([]string, error) {
	catalog, err := c.loadedCatalog()
	if err != nil {
		return nil, err
	}
	tickers := make([]string, 0, len(catalog.Tokens))
	for ticker := range catalog.Tokens {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)
	return tickers, nil
}

func (c *Client) tokenAddress(ticker string) (common.Address, error) {
	catalog, err := c.loadedCatalog()
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := catalog.Tokens[ticker]
	if !ok {
		return common.Address{}, fmt.Errorf("%w: %s", ErrUnknownTicker, ticker)
	}
	return addr, nil
}

// TakerAddress returns the configured taker, or the signer's first account.
func (c *Client) TakerAddress(ctx context.Context) (common.Address, error) {
	if c.taker != (common.Address{}) {
		return c.taker, nil
	}
	accounts, err := c.signer.Accounts(ctx)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to resolve taker: %w", err)
	}
	if len(accounts) == 0 {
		return common.Address{}, fmt.Errorf("%w: no accounts available", ErrSignerUnavailable)
	}
	return accounts[0], nil
}

// GetAuthorizationStatus asks the dealer whether taker may trade. A nil
// taker means the client's taker.
func (c *Client) GetAuthorizationStatus(ctx context.Context, taker *common.Address) (*AuthorizationInfo, error) {
	if c.source == nil {
		return nil, &InvalidParamError{Message: "dealer transport does not support authorization queries"}
	}
	addr, err := c.takerOrDefault(ctx, taker)
	if err != nil {
		return nil, err
	}
	return c.source.Authorization(ctx, addr)
}

func (c *Client) takerOrDefault(ctx context.Context, taker *common.Address) (common.Address, error) {
	if taker != nil {
		return *taker, nil
	}
	return c.TakerAddress(ctx)
}

// GetQuote requests and parses a quote. The client's taker is sent when the
// request names none; failing to resolve it fails the request.
func (c *Client) GetQuote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	if req.TakerAddress == nil {
		taker, err := c.TakerAddress(ctx)
		if err != nil {
			return nil, err
		}
		req.TakerAddress = &taker
	}

	raw, err := c.dealer.RequestQuote(ctx, req)
	if err != nil {
		c.metrics.QuoteErrors.Add(1)
		return nil, err
	}
	return c.parseQuote(raw)
}

// GetPairQuote requests a bid or ask of size base units on a "BASE/QUOTE"
// market the dealer lists.
func (c *Client) GetPairQuote(ctx context.Context, symbol string, side QuoteSide, size decimal.Decimal) (*Quote, error) {
	if c.source == nil {
		return nil, &InvalidParamError{Message: "dealer transport does not support pair quotes"}
	}
	if side != QuoteSideBid && side != QuoteSideAsk {
		return nil, &InvalidParamError{Message: `side must be "bid" or "ask"`}
	}
	if !size.IsPositive() {
		return nil, &InvalidParamError{Message: fmt.Sprintf("size must be positive, got: %s", size)}
	}

	pairs, err := c.Pairs()
	if err != nil {
		return nil, err
	}
	supported := false
	for _, p := range pairs {
		if p == symbol {
			supported = true
			break
		}
	}
	if !supported {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPair, symbol)
	}

	taker, err := c.TakerAddress(ctx)
	if err != nil {
		return nil, err
	}
	req := PairQuoteRequest{Symbol: symbol, Side: side, Size: size, TakerAddress: &taker}

	raw, err := c.source.RequestPairQuote(ctx, req)
	if err != nil {
		c.metrics.QuoteErrors.Add(1)
		return nil, err
	}
	return c.parseQuote(raw)
}

func (c *Client) parseQuote(raw *WireQuote) (*Quote, error) {
	quote, err := ParseQuote(raw)
	if err != nil {
		c.metrics.QuoteErrors.Add(1)
		return nil, err
	}
	c.metrics.Quotes.Add(1)
	c.logger.Debug("quote received",
		zap.String("quote_id", quote.ID),
		zap.String("maker_asset", quote.MakerAssetAddress.Hex()),
		zap.String("taker_asset", quote.TakerAssetAddress.Hex()),
		zap.String("expiration", quote.Expiration.String()),
	)
	return quote, nil
}

// Validate runs the fill preconditions for quote against taker.
func (c *Client) Validate(ctx context.Context, quote *Quote, taker common.Address) error {
	err := c.validator.Validate(ctx, quote.Order, taker, c.now())
	var fillErr *FillError
	if errors.As(err, &fillErr) {
		c.metrics.ValidationFailures.With("check", fillErr.Check.String()).Add(1)
	}
	return err
}

// PrepareFill resolves the taker, checks the order and builds the unsigned
// fill. Nothing is signed or sent.
func (c *Client) PrepareFill(ctx context.Context, quote *Quote, opts FillOptions) (*chain.UnsignedFill, error) {
	if quote == nil || quote.Order == nil {
		return nil, &InvalidParamError{Message: "quote with an order is required"}
	}
	order := quote.Order

	taker, err := c.takerOrDefault(ctx, opts.Taker)
	if err != nil {
		return nil, err
	}

	if order.ChainID == nil || order.ChainID.Cmp(c.network.ChainID) != 0 || order.ExchangeAddress != c.network.Exchange {
		return nil, fmt.Errorf("%w: order bound to chain %v exchange %s, client is on chain %s exchange %s",
			ErrDomainMismatch, order.ChainID, order.ExchangeAddress.Hex(), c.network.ChainID, c.network.Exchange.Hex())
	}

	tmpl := quote.Transaction
	if tmpl != nil && tmpl.SignerAddress != taker {
		return nil, &FillError{Check: CheckTakerMatch, Address: tmpl.SignerAddress}
	}

	if !opts.SkipValidation && !c.config.SkipValidation {
		if err := c.Validate(ctx, quote, taker); err != nil {
			return nil, err
		}
	}

	if opts.VerifyMakerSignature || c.config.VerifyMakerSignature {
		if err := chain.VerifyOrderSignature(order); err != nil {
			return nil, fmt.Errorf("failed to verify maker signature: %w", err)
		}
	}

	amount := opts.Amount
	if amount == nil {
		amount = order.TakerAssetAmount
	}

	var buildOpts []chain.BuildOption
	if tmpl != nil {
		buildOpts = append(buildOpts,
			chain.WithExpiration(tmpl.ExpirationTimeSeconds),
			chain.WithGasPrice(tmpl.GasPrice),
		)
	}

	unsigned, err := c.builder.Build(order, amount, taker, buildOpts...)
	if err != nil {
		return nil, err
	}

	if tmpl != nil && len(tmpl.Data) > 0 && amount.Cmp(order.TakerAssetAmount) == 0 && !bytes.Equal(tmpl.Data, unsigned.Data) {
		return nil, fmt.Errorf("%w: dealer transaction data does not encode this order fill", ErrInvalidQuote)
	}

	c.logger.Debug("fill state changed",
		zap.String("quote_id", quote.ID),
		zap.String("taker", taker.Hex()),
		zap.Stringer("state", FillStateBuilt),
		zap.String("amount", amount.String()),
	)
	return unsigned, nil
}

// Fill validates, builds, signs and submits a fill of quote. The returned
// transaction id is the dealer's relay; use WaitForTransaction to confirm it.
func (c *Client) Fill(ctx context.Context, quote *Quote, opts FillOptions) (*FillResult, error) {
	unsigned, err := c.PrepareFill(ctx, quote, opts)
	if err != nil {
		return nil, err
	}

	signed, err := c.submitter.Sign(ctx, unsigned)
	if err != nil {
		return nil, err
	}

	txID, err := c.submitter.Submit(ctx, signed, quote.ID)
	if err != nil {
		return nil, err
	}

	return &FillResult{QuoteID: quote.ID, TxID: txID, Fill: signed}, nil
}

// HasAllowance reports whether the taker has set an effectively unlimited
// proxy allowance (more than half of 2^256 - 1) for ticker.
func (c *Client) HasAllowance(ctx context.Context, ticker string) (bool, error) {
	token, err := c.tokenAddress(ticker)
	if err != nil {
		return false, err
	}
	taker, err := c.TakerAddress(ctx)
	if err != nil {
		return false, err
	}

	allowance, err := c.ledger.Allowance(ctx, token, taker, c.network.ERC20Proxy)
	if err != nil {
		return false, err
	}
	threshold := new(big.Int).Rsh(chain.UnlimitedAllowance, 1)
	return allowance.Cmp(threshold) > 0, nil
}

// SetAllowance approves the ERC-20 proxy for an unlimited amount of ticker
// and waits for the approval to be mined.
func (c *Client) SetAllowance(ctx context.Context, ticker string) (*types.Receipt, error) {
	token, err := c.tokenAddress(ticker)
	if err != nil {
		return nil, err
	}

	tx, err := c.ledger.SetUnlimitedProxyAllowance(ctx, token, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to set allowance for %s: %w", ticker, err)
	}
	c.logger.Info("allowance transaction sent",
		zap.String("ticker", ticker),
		zap.String("tx_hash", tx.Hash().Hex()),
	)
	return c.ledger.AwaitTransaction(ctx, tx.Hash())
}

// GetBalance returns the taker's balance of ticker in base units.
func (c *Client) GetBalance(ctx context.Context, ticker string) (*big.Int, error) {
	token, err := c.tokenAddress(ticker)
	if err != nil {
		return nil, err
	}
	taker, err := c.TakerAddress(ctx)
	if err != nil {
		return nil, err
	}
	return c.ledger.BalanceOf(ctx, token, taker)
}

// GetDecimals returns the ERC-20 decimals of ticker.
func (c *Client) GetDecimals(ctx context.Context, ticker string) (uint8, error) {
	token, err := c.tokenAddress(ticker)
	if err != nil {
		return 0, err
	}
	return c.ledger.Decimals(ctx, token)
}

// WaitForTransaction waits until txID is mined and returns an error wrapping
// ErrTransactionFailed if it reverted.
func (c *Client) WaitForTransaction(ctx context.Context, txID string) (*types.Receipt, error) {
	if !IsValidTxID(txID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTxID, txID)
	}
	return c.ledger.AwaitTransaction(ctx, common.HexToHash(txID))
}

// EtherscanLink returns the etherscan.io page for txID on the client's chain.
func (c *Client) EtherscanLink(txID string) (string, error) {
	return EtherscanLink(ChainID(c.network.ChainID.Int64()), txID)
}

// EtherscanLink returns the etherscan.io page for txID on chainID.
func EtherscanLink(chainID ChainID, txID string) (string, error) {
	if !IsValidTxID(txID) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTxID, txID)
	}
	subdomain, ok := explorerSubdomains[chainID]
	if !ok {
		return "", fmt.Errorf("%w: chain %d", ErrExplorerUnsupported, chainID)
	}
	return fmt.Sprintf("https://%s.etherscan.io/tx/%s", subdomain, txID), nil
}

// IsValidTxID reports whether txID is a 0x-prefixed 32-byte hex hash.
func IsValidTxID(txID string) bool {
	return txIDPattern.MatchString(txID)
}
