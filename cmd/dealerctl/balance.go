package main

import (
	"fmt"

	dealerrfq "github.com/kaifufi/dealer-rfq-sdk-go"
	"github.com/spf13/cobra"
)

var balanceCmd = &cobra.Command{
	Use:   "balance ticker...",
	Short: "Show the taker's token balances",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		for _, ticker := range args {
			balance, err := client.GetBalance(ctx, ticker)
			if err != nil {
				return err
			}
			decimals, err := client.GetDecimals(ctx, ticker)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", dealerrfq.FromBaseUnits(balance, decimals), ticker)
		}
		return nil
	},
}
