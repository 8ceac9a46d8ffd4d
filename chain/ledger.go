package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Ledger errors
var (
	ErrNoTransactor      = errors.New("ledger has no transacting key")
	ErrTransactionFailed = errors.New("transaction failed")
)

// UnlimitedAllowance is 2^256 - 1, the conventional "unlimited" ERC-20 allowance.
var UnlimitedAllowance = new(big.Int).Set(math.MaxBig256)

const (
	defaultPollInterval   = 2 * time.Second
	defaultDecimalsCache  = 256
	approveGasMarginRatio = 120 // percent
)

// ContractBackend is the subset of *ethclient.Client the Ledger needs.
type ContractBackend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	ChainID(ctx context.Context) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Ledger reads ERC-20 state and awaits transactions on one chain.
type Ledger struct {
	backend       ContractBackend
	proxyAddr     common.Address
	privateKey    *ecdsa.PrivateKey
	pollInterval  time.Duration
	decimalsCache *lru.Cache[common.Address, uint8]
}

// LedgerOption configures a Ledger.
type LedgerOption func(*Ledger)

// WithTransactor lets the ledger send approve transactions signed by key.
func WithTransactor(key *ecdsa.PrivateKey) LedgerOption {
	return func(l *Ledger) {
		l.privateKey = key
	}
}

// WithPollInterval sets how often AwaitTransaction polls for a receipt.
func WithPollInterval(interval time.Duration) LedgerOption {
	return func(l *Ledger) {
		if interval > 0 {
			l.pollInterval = interval
		}
	}
}

// NewLedger creates a Ledger. proxyAddr is the 0x ERC-20 asset proxy that
// must hold allowances for fills to settle.
func NewLedger(backend ContractBackend, proxyAddr common.Address, opts ...LedgerOption) *Ledger {
	cache, err := lru.New[common.Address, uint8](defaultDecimalsCache)
	if err != nil {
		panic("failed to create decimals cache: " + err.Error())
	}

	l := &Ledger{
		backend:       backend,
		proxyAddr:     proxyAddr,
		pollInterval:  defaultPollInterval,
		decimalsCache: cache,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ProxyAddress returns the ERC-20 asset proxy address.
func (l *Ledger) ProxyAddress() common.Address {
	return l.proxyAddr
}

// ChainID returns the chain id reported by the node.
func (l *Ledger) ChainID(ctx context.Context) (*big.Int, error) {
	id, err := l.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}
	return id, nil
}

// BalanceOf returns owner's balance of token in base units.
func (l *Ledger) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	var balance *big.Int
	if err := l.call(ctx, token, &balance, "balanceOf", owner); err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

// Allowance returns the amount of owner's token spender may transfer.
func (l *Ledger) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	var allowance *big.Int
	if err := l.call(ctx, token, &allowance, "allowance", owner, spender); err != nil {
		return nil, fmt.Errorf("failed to get allowance: %w", err)
	}
	return allowance, nil
}

// ProxyAllowance returns owner's allowance to the ERC-20 asset proxy.
func (l *Ledger) ProxyAllowance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	return l.Allowance(ctx, token, owner, l.proxyAddr)
}

// Decimals gets token decimals with caching
func (l *Ledger) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	if decimals, ok := l.decimalsCache.Get(token); ok {
		return decimals, nil
	}

	var decimals uint8
	if err := l.call(ctx, token, &decimals, "decimals"); err != nil {
		return 0, fmt.Errorf("failed to get decimals: %w", err)
	}

	l.decimalsCache.Add(token, decimals)
	return decimals, nil
}

// SuggestGasPrice returns the node's gas price suggestion.
func (l *Ledger) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	gasPrice, err := l.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}
	return gasPrice, nil
}

// TransactorAddress returns the address approve transactions are sent from.
func (l *Ledger) TransactorAddress() (common.Address, error) {
	if l.privateKey == nil {
		return common.Address{}, ErrNoTransactor
	}
	return crypto.PubkeyToAddress(l.privateKey.PublicKey), nil
}

// Approve sends an ERC-20 approve(spender, amount) transaction. gasPrice may
// be nil to use the node's suggestion.
func (l *Ledger) Approve(ctx context.Context, token, spender common.Address, amount, gasPrice *big.Int) (*types.Transaction, error) {
	from, err := l.TransactorAddress()
	if err != nil {
		return nil, err
	}

	callData, err := erc20ABI.Pack("approve", spender, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to pack approve: %w", err)
	}

	chainID, err := l.ChainID(ctx)
	if err != nil {
		return nil, err
	}

	nonce, err := l.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	if gasPrice == nil {
		if gasPrice, err = l.SuggestGasPrice(ctx); err != nil {
			return nil, err
		}
	}

	gas, err := l.backend.EstimateGas(ctx, ethereum.CallMsg{
		From: from,
		To:   &token,
		Data: callData,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to estimate gas: %w", err)
	}
	gas = gas * approveGasMarginRatio / 100

	tx := types.NewTransaction(nonce, token, big.NewInt(0), gas, gasPrice, callData)
	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), l.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := l.backend.SendTransaction(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}

	return signedTx, nil
}

// SetUnlimitedProxyAllowance approves the ERC-20 asset proxy for 2^256 - 1.
func (l *Ledger) SetUnlimitedProxyAllowance(ctx context.Context, token common.Address, gasPrice *big.Int) (*types.Transaction, error) {
	return l.Approve(ctx, token, l.proxyAddr, UnlimitedAllowance, gasPrice)
}

// AwaitTransaction polls until the transaction is mined. It returns
// ErrTransactionFailed if the receipt reports a revert. The wait is bounded
// only by ctx.
func (l *Ledger) AwaitTransaction(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := l.backend.TransactionReceipt(ctx, txHash)
		switch {
		case err == nil:
			if receipt.Status != types.ReceiptStatusSuccessful {
				return receipt, fmt.Errorf("%w: tx hash %s", ErrTransactionFailed, txHash.Hex())
			}
			return receipt, nil
		case !errors.Is(err, ethereum.NotFound):
			return nil, fmt.Errorf("failed to get receipt for %s: %w", txHash.Hex(), err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("timeout waiting for transaction receipt %s: %w", txHash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *Ledger) call(ctx context.Context, contract common.Address, out interface{}, method string, args ...interface{}) error {
	data, err := erc20ABI.Pack(method, args...)
	if err != nil {
		return err
	}

	result, err := l.backend.CallContract(ctx, ethereum.CallMsg{
		To:   &contract,
		Data: data,
	}, nil)
	if err != nil {
		return err
	}

	return erc20ABI.UnpackIntoInterface(out, method, result)
}
