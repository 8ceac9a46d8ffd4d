package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	dealerrfq "github.com/kaifufi/dealer-rfq-sdk-go"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

type quoteFlags struct {
	makerSize string
	takerSize string
	pair      string
	side      string
	size      string
}

var quoteOpts quoteFlags

var quoteCmd = &cobra.Command{
	Use:   "quote [maker-ticker taker-ticker]",
	Short: "Request a firm quote",
	Long: `Request a firm quote for exactly one of --maker-size or --taker-size,
given in whole token units, or for --size of a --pair on a --side.`,
	Example: `  dealerctl quote DAI WETH --taker-size 1.5
  dealerctl quote --pair WETH/DAI --side bid --size 2`,
	Args: cobra.RangeArgs(0, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		quote, err := requestQuote(cmd.Context(), quoteOpts, args)
		if err != nil {
			return err
		}
		return printQuote(cmd.Context(), cmd.OutOrStdout(), quote)
	},
}

func init() {
	addQuoteFlags(quoteCmd, &quoteOpts)
}

func addQuoteFlags(cmd *cobra.Command, f *quoteFlags) {
	cmd.Flags().StringVar(&f.makerSize, "maker-size", "", "Amount of the maker asset to receive")
	cmd.Flags().StringVar(&f.takerSize, "taker-size", "", "Amount of the taker asset to pay")
	cmd.Flags().StringVar(&f.pair, "pair", "", `Market to quote, as "BASE/QUOTE"`)
	cmd.Flags().StringVar(&f.side, "side", string(dealerrfq.QuoteSideBid), "Pair quote side: bid or ask")
	cmd.Flags().StringVar(&f.size, "size", "", "Pair quote size in base units")
}

func requestQuote(ctx context.Context, f quoteFlags, args []string) (*dealerrfq.Quote, error) {
	if f.pair != "" {
		if len(args) != 0 {
			return nil, errors.New("tickers and --pair are mutually exclusive")
		}
		size, err := decimal.NewFromString(f.size)
		if err != nil {
			return nil, fmt.Errorf("invalid --size %q: %w", f.size, err)
		}
		return client.GetPairQuote(ctx, f.pair, dealerrfq.QuoteSide(f.side), size)
	}

	if len(args) != 2 {
		return nil, errors.New("maker and taker tickers are required without --pair")
	}
	if (f.makerSize == "") == (f.takerSize == "") {
		return nil, errors.New("exactly one of --maker-size and --taker-size is required")
	}

	tokens, err := client.Tokens()
	if err != nil {
		return nil, err
	}
	req := dealerrfq.QuoteRequest{}
	var ok bool
	if req.MakerAsset, ok = tokens[args[0]]; !ok {
		return nil, fmt.Errorf("%w: %s", dealerrfq.ErrUnknownTicker, args[0])
	}
	if req.TakerAsset, ok = tokens[args[1]]; !ok {
		return nil, fmt.Errorf("%w: %s", dealerrfq.ErrUnknownTicker, args[1])
	}

	ticker, size := args[0], f.makerSize
	if f.takerSize != "" {
		ticker, size = args[1], f.takerSize
	}
	amount, err := baseUnits(ctx, ticker, size)
	if err != nil {
		return nil, err
	}
	if f.takerSize != "" {
		req.TakerSize = amount
	} else {
		req.MakerSize = amount
	}

	return client.GetQuote(ctx, req)
}

func printQuote(ctx context.Context, w io.Writer, quote *dealerrfq.Quote) error {
	maker, makerDecimals, err := describeToken(ctx, quote.MakerAssetAddress)
	if err != nil {
		return err
	}
	taker, takerDecimals, err := describeToken(ctx, quote.TakerAssetAddress)
	if err != nil {
		return err
	}

	expires := time.Unix(quote.Expiration.IntPart(), 0).UTC()
	fmt.Fprintf(w, "quote     %s\n", quote.ID)
	fmt.Fprintf(w, "receive   %s %s\n", dealerrfq.FromBaseUnits(quote.MakerAssetSize, makerDecimals), maker)
	fmt.Fprintf(w, "pay       %s %s\n", dealerrfq.FromBaseUnits(quote.TakerAssetSize, takerDecimals), taker)
	fmt.Fprintf(w, "price     %s %s per %s\n", quote.Price(makerDecimals, takerDecimals), taker, maker)
	fmt.Fprintf(w, "maker     %s\n", quote.Order.MakerAddress.Hex())
	fmt.Fprintf(w, "expires   %s (%s)\n", expires.Format(time.RFC3339), time.Until(expires).Round(time.Second))
	return nil
}

// describeToken returns the dealer's ticker for token and its decimals. Tokens
// outside the catalog are shown by address with 18 decimals.
func describeToken(ctx context.Context, token common.Address) (string, uint8, error) {
	tokens, _ := client.Tokens()
	for ticker, addr := range tokens {
		if addr == token {
			decimals, err := client.GetDecimals(ctx, ticker)
			return ticker, decimals, err
		}
	}
	return token.Hex(), dealerrfq.EtherDecimals, nil
}

func baseUnits(ctx context.Context, ticker, amount string) (*big.Int, error) {
	value, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	decimals, err := client.GetDecimals(ctx, ticker)
	if err != nil {
		return nil, err
	}
	return dealerrfq.ToBaseUnits(value, decimals)
}
