package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var waitCmd = &cobra.Command{
	Use:   "wait tx-id",
	Short: "Wait for a fill transaction to be mined",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		receipt, err := client.WaitForTransaction(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "mined in block %s\n", receipt.BlockNumber)
		if link, err := client.EtherscanLink(args[0]); err == nil {
			fmt.Fprintln(cmd.OutOrStdout(), link)
		}
		return nil
	},
}
