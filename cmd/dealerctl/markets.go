package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var marketsCmd = &cobra.Command{
	Use:   "markets",
	Short: "List the dealer's markets and assets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		pairs, err := client.Pairs()
		if err != nil {
			return err
		}
		tickers, err := client.SupportedTickers()
		if err != nil {
			return err
		}
		tokens, err := client.Tokens()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TICKER\tADDRESS")
		for _, ticker := range tickers {
			fmt.Fprintf(w, "%s\t%s\n", ticker, tokens[ticker].Hex())
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, "MARKET")
		for _, pair := range pairs {
			fmt.Fprintln(w, pair)
		}
		return w.Flush()
	},
}
