package main

import (
	"fmt"

	dealerrfq "github.com/kaifufi/dealer-rfq-sdk-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	fillQuoteOpts      quoteFlags
	fillAmount         string
	fillSkipValidation bool
	fillVerifyMaker    bool
	fillWait           bool
)

var fillCmd = &cobra.Command{
	Use:   "fill [maker-ticker taker-ticker]",
	Short: "Request a quote and fill it",
	Long: `Request a firm quote, check it against the chain, sign the fill and submit
it to the dealer. The quote is filled in full unless --amount names a smaller
amount of the taker asset. A rejected fill is never retried.`,
	Example: `  dealerctl fill DAI WETH --taker-size 1.5 --wait`,
	Args:    cobra.RangeArgs(0, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		quote, err := requestQuote(ctx, fillQuoteOpts, args)
		if err != nil {
			return err
		}
		if err := printQuote(ctx, out, quote); err != nil {
			return err
		}

		opts := dealerrfq.FillOptions{
			SkipValidation:       fillSkipValidation,
			VerifyMakerSignature: fillVerifyMaker,
		}
		if fillAmount != "" {
			taker, _, err := describeToken(ctx, quote.TakerAssetAddress)
			if err != nil {
				return err
			}
			if opts.Amount, err = baseUnits(ctx, taker, fillAmount); err != nil {
				return err
			}
		}

		result, err := client.Fill(ctx, quote, opts)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "tx        %s\n", result.TxID)
		if link, err := client.EtherscanLink(result.TxID); err == nil {
			fmt.Fprintf(out, "explorer  %s\n", link)
		}

		if !fillWait {
			return nil
		}
		receipt, err := client.WaitForTransaction(ctx, result.TxID)
		if err != nil {
			return err
		}
		logger.Info("fill mined",
			zap.String("tx_hash", result.TxID),
			zap.Uint64("block", receipt.BlockNumber.Uint64()),
		)
		fmt.Fprintf(out, "mined     block %s\n", receipt.BlockNumber)
		return nil
	},
}

func init() {
	addQuoteFlags(fillCmd, &fillQuoteOpts)
	fillCmd.Flags().StringVar(&fillAmount, "amount", "", "Taker asset amount to fill (default the whole quote)")
	fillCmd.Flags().BoolVar(&fillSkipValidation, "skip-validation", false, "Skip balance, allowance and expiry checks")
	fillCmd.Flags().BoolVar(&fillVerifyMaker, "verify-maker", false, "Recover and check the maker's order signature")
	fillCmd.Flags().BoolVar(&fillWait, "wait", false, "Wait for the fill transaction to be mined")
}
