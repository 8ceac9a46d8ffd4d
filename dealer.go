package dealerrfq

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// Dealer is the quote and fill contract every dealer transport implements.
type Dealer interface {
	RequestQuote(ctx context.Context, req QuoteRequest) (*WireQuote, error)
	SubmitFill(ctx context.Context, req *FillRequest) (*FillResponse, error)
}

// CatalogSource is a dealer that also publishes its markets and assets.
type CatalogSource interface {
	Dealer
	Markets(ctx context.Context) ([]string, error)
	Assets(ctx context.Context) (map[string]common.Address, error)
	RequestPairQuote(ctx context.Context, req PairQuoteRequest) (*WireQuote, error)
	Authorization(ctx context.Context, taker common.Address) (*AuthorizationInfo, error)
}

var (
	_ CatalogSource = (*APIClient)(nil)
	_ Dealer        = (*RPCDealer)(nil)
)
