package dealertest

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/kaifufi/dealer-rfq-sdk-go/chain"
)

type holding struct {
	token common.Address
	owner common.Address
}

type grant struct {
	token   common.Address
	owner   common.Address
	spender common.Address
}

// Ledger is an in-memory ERC-20 ledger. It satisfies dealerrfq.Ledger.
type Ledger struct {
	mu         sync.Mutex
	chainID    *big.Int
	proxy      common.Address
	transactor common.Address
	balances   map[holding]*big.Int
	allowances map[grant]*big.Int
	decimals   map[common.Address]uint8
	receipts   map[common.Hash]*types.Receipt
	nonce      uint64
	reads      int
}

// NewLedger creates an empty ledger for chainID whose settlement proxy is proxy.
func NewLedger(chainID *big.Int, proxy common.Address) *Ledger {
	return &Ledger{
		chainID:    new(big.Int).Set(chainID),
		proxy:      proxy,
		balances:   make(map[holding]*big.Int),
		allowances: make(map[grant]*big.Int),
		decimals:   make(map[common.Address]uint8),
		receipts:   make(map[common.Hash]*types.Receipt),
	}
}

// Proxy returns the settlement proxy address.
func (l *Ledger) Proxy() common.Address {
	return l.proxy
}

// SetTransactor sets the account SetUnlimitedProxyAllowance approves from.
func (l *Ledger) SetTransactor(addr common.Address) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.transactor = addr
}

// SetBalance sets owner's balance of token.
func (l *Ledger) SetBalance(token, owner common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[holding{token, owner}] = new(big.Int).Set(amount)
}

// SetProxyAllowance sets owner's allowance of token to the proxy.
func (l *Ledger) SetProxyAllowance(token, owner common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.allowances[grant{token, owner, l.proxy}] = new(big.Int).Set(amount)
}

// SetDecimals sets the ERC-20 decimals of token.
func (l *Ledger) SetDecimals(token common.Address, decimals uint8) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.decimals[token] = decimals
}

// Reads returns how many balance and allowance reads were served.
func (l *Ledger) Reads() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reads
}

func (l *Ledger) ChainID(context.Context) (*big.Int, error) {
	return new(big.Int).Set(l.chainID), nil
}

func (l *Ledger) BalanceOf(_ context.Context, token, owner common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reads++
	return l.balanceLocked(token, owner), nil
}

func (l *Ledger) Allowance(_ context.Context, token, owner, spender common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reads++
	return l.allowanceLocked(token, owner, spender), nil
}

func (l *Ledger) Decimals(_ context.Context, token common.Address) (uint8, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if d, ok := l.decimals[token]; ok {
		return d, nil
	}
	return 18, nil
}

func (l *Ledger) SetUnlimitedProxyAllowance(_ context.Context, token common.Address, gasPrice *big.Int) (*types.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.transactor == (common.Address{}) {
		return nil, chain.ErrNoTransactor
	}
	data, err := chain.GetERC20ABI().Pack("approve", l.proxy, chain.UnlimitedAllowance)
	if err != nil {
		return nil, err
	}
	if gasPrice == nil {
		gasPrice = big.NewInt(1_000_000_000)
	}

	tx := types.NewTransaction(l.nonce, token, new(big.Int), 60_000, gasPrice, data)
	l.nonce++
	l.allowances[grant{token, l.transactor, l.proxy}] = new(big.Int).Set(chain.UnlimitedAllowance)
	l.mineLocked(tx.Hash(), true)
	return tx, nil
}

func (l *Ledger) AwaitTransaction(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	l.mu.Lock()
	receipt, ok := l.receipts[txHash]
	l.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("failed to get receipt for %s: %w", txHash.Hex(), ethereum.NotFound)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%w: tx hash %s", chain.ErrTransactionFailed, txHash.Hex())
	}
	return receipt, nil
}

// Settle moves the assets of a fill through the proxy. It reports false,
// leaving balances untouched, when either side lacks balance or allowance.
func (l *Ledger) Settle(makerToken, takerToken, maker, taker common.Address, makerAmount, takerAmount *big.Int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.canSpendLocked(takerToken, taker, takerAmount) || !l.canSpendLocked(makerToken, maker, makerAmount) {
		return false
	}
	l.transferLocked(takerToken, taker, maker, takerAmount)
	l.transferLocked(makerToken, maker, taker, makerAmount)
	return true
}

// Mine records a receipt for txHash.
func (l *Ledger) Mine(txHash common.Hash, success bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.mineLocked(txHash, success)
}

func (l *Ledger) mineLocked(txHash common.Hash, success bool) {
	status := types.ReceiptStatusFailed
	if success {
		status = types.ReceiptStatusSuccessful
	}
	l.receipts[txHash] = &types.Receipt{
		Status:      status,
		TxHash:      txHash,
		BlockNumber: big.NewInt(int64(len(l.receipts) + 1)),
	}
}

func (l *Ledger) balanceLocked(token, owner common.Address) *big.Int {
	if b, ok := l.balances[holding{token, owner}]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

func (l *Ledger) allowanceLocked(token, owner, spender common.Address) *big.Int {
	if a, ok := l.allowances[grant{token, owner, spender}]; ok {
		return new(big.Int).Set(a)
	}
	return new(big.Int)
}

func (l *Ledger) canSpendLocked(token, owner common.Address, amount *big.Int) bool {
	return l.balanceLocked(token, owner).Cmp(amount) >= 0 &&
		l.allowanceLocked(token, owner, l.proxy).Cmp(amount) >= 0
}

func (l *Ledger) transferLocked(token, from, to common.Address, amount *big.Int) {
	l.balances[holding{token, from}] = new(big.Int).Sub(l.balanceLocked(token, from), amount)
	l.balances[holding{token, to}] = new(big.Int).Add(l.balanceLocked(token, to), amount)

	g := grant{token, from, l.proxy}
	allowance := l.allowanceLocked(token, from, l.proxy)
	if allowance.Cmp(chain.UnlimitedAllowance) != 0 {
		l.allowances[g] = allowance.Sub(allowance, amount)
	}
}
