package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "1.0.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tradewatch version %s\n", version)
		fmt.Println("Risk-based trade management for MetaTrader 5 accounts")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
