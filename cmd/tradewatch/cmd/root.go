package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tradewatch",
	Short: "Risk-based trade management for MetaTrader 5 accounts",
	Long: `Tradewatch manages open MetaTrader 5 positions over an HTTP bridge.

It provides tools for:
  - Risk-based position sizing with broker-safe volume normalization
  - A TP1 watcher that takes partial profit and moves stops to break-even
  - Stop-loss closure detection with realized P/L from trade history
  - A dual-authorization execution guard (backend enable + UI arm)
  - An HTTP API for dashboards and automation`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
