package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var allowanceSet bool

var allowanceCmd = &cobra.Command{
	Use:   "allowance ticker",
	Short: "Show or set the taker's ERC-20 proxy allowance",
	Long: `Report whether the taker has granted the 0x ERC-20 proxy an unlimited
allowance for ticker. With --set, send the approval and wait for it to be
mined. Setting an allowance needs DEALER_PRIVATE_KEY.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		ticker := args[0]

		if allowanceSet {
			receipt, err := client.SetAllowance(ctx, ticker)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "approved %s in tx %s\n", ticker, receipt.TxHash.Hex())
			return nil
		}

		ok, err := client.HasAllowance(ctx, ticker)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s unlimited allowance: %t\n", ticker, ok)
		return nil
	},
}

func init() {
	allowanceCmd.Flags().BoolVar(&allowanceSet, "set", false, "Approve the proxy for an unlimited amount")
}
