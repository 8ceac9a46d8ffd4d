// Example usage of the dealer RFQ SDK
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	dealerrfq "github.com/kaifufi/dealer-rfq-sdk-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	// Initialize the SDK client
	config := dealerrfq.ClientConfig{
		DealerURL:      "https://dealer.example.com", // Replace with the dealer's API host
		ChainID:        dealerrfq.ChainIDKovan,
		RPCURL:         "https://kovan.infura.io/v3/your-project-id", // Replace with actual RPC URL
		PrivateKey:     "your-private-key-here",                      // Replace with actual private key
		RequestTimeout: 10 * time.Second,
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	client, err := dealerrfq.NewClient(config, dealerrfq.WithLogger(logger))
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}
	defer client.Close()

	ctx := context.Background()

	if err := client.Init(ctx); err != nil {
		log.Fatalf("Failed to initialize client: %v", err)
	}

	// Example: List markets
	fmt.Println("Fetching markets...")
	pairs, err := client.Pairs()
	if err != nil {
		log.Printf("Failed to get markets: %v", err)
	} else {
		fmt.Printf("Markets: %v\n", pairs)
	}

	// Example: Make sure the proxy can move our WETH
	ok, err := client.HasAllowance(ctx, "WETH")
	if err != nil {
		log.Fatalf("Failed to check allowance: %v", err)
	}
	if !ok {
		fmt.Println("\nSetting WETH allowance...")
		receipt, err := client.SetAllowance(ctx, "WETH")
		if err != nil {
			log.Fatalf("Failed to set allowance: %v", err)
		}
		fmt.Printf("Allowance set in tx %s\n", receipt.TxHash.Hex())
	}

	// Example: Buy 100 DAI
	fmt.Println("\nRequesting quote...")
	quote, err := client.GetPairQuote(ctx, "DAI/WETH", dealerrfq.QuoteSideBid, decimal.NewFromInt(100))
	if err != nil {
		log.Fatalf("Failed to get quote: %v", err)
	}
	fmt.Printf("Quote %s: pay %s WETH for %s DAI\n",
		quote.ID,
		dealerrfq.FromWei(quote.TakerAssetSize),
		dealerrfq.FromWei(quote.MakerAssetSize),
	)

	// Example: Fill the quote
	result, err := client.Fill(ctx, quote, dealerrfq.FillOptions{})
	var fillErr *dealerrfq.FillError
	var rejection *dealerrfq.SubmissionError
	switch {
	case errors.As(err, &fillErr):
		log.Fatalf("Quote cannot be filled (%s): %v", fillErr.Check, err)
	case errors.As(err, &rejection):
		log.Fatalf("Dealer rejected fill: %s", rejection.Reason)
	case err != nil:
		log.Fatalf("Failed to fill quote: %v", err)
	}

	link, _ := client.EtherscanLink(result.TxID)
	fmt.Printf("Fill submitted: %s\n", link)

	// Example: Wait for the dealer's transaction
	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()
	receipt, err := client.WaitForTransaction(waitCtx, result.TxID)
	if err != nil {
		log.Fatalf("Fill failed: %v", err)
	}
	fmt.Printf("Fill mined in block %s\n", receipt.BlockNumber)
}
