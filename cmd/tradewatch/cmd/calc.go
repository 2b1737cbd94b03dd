package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradewatch/risk"
)

var calcCmd = &cobra.Command{
	Use:   "calc",
	Short: "Calculate a risk-based position size",
	Long: `Compute the lot size for a trade given account balance, risk
percentage, stop distance and broker volume constraints.

Example:
  tradewatch calc --balance 10000 --risk 1 --stop-pips 50 --pip-value 10`,
	RunE: runCalc,
}

var calcInput risk.Input

func init() {
	rootCmd.AddCommand(calcCmd)

	calcCmd.Flags().Float64Var(&calcInput.Balance, "balance", 0, "account balance (required)")
	calcCmd.Flags().Float64Var(&calcInput.RiskPercent, "risk", 1, "risk per trade in percent")
	calcCmd.Flags().Float64Var(&calcInput.StopPips, "stop-pips", 0, "stop distance in pips (required)")
	calcCmd.Flags().Float64Var(&calcInput.MaxStopPips, "max-stop-pips", 100, "reject stops wider than this")
	calcCmd.Flags().Float64Var(&calcInput.PipValuePerLot, "pip-value", 10, "pip value per 1.0 lot in account currency")
	calcCmd.Flags().Float64Var(&calcInput.MinVolume, "min-volume", 0.01, "broker minimum lot")
	calcCmd.Flags().Float64Var(&calcInput.VolumeStep, "volume-step", 0.01, "broker lot step")
	calcCmd.Flags().Float64Var(&calcInput.EntryPrice, "entry", 0, "entry price (for the break-even preview)")
	calcCmd.Flags().Float64Var(&calcInput.PipSize, "pip-size", 0.0001, "pip size of the symbol")
	calcCmd.Flags().Float64Var(&calcInput.TP1Pips, "tp1-pips", 30, "TP1 distance in pips")
	calcCmd.Flags().Float64Var(&calcInput.PartialPercent, "partial", 50, "share closed at TP1 in percent")
	calcCmd.Flags().Float64Var(&calcInput.BEBufferPips, "be-buffer", 0, "break-even buffer in pips")
	calcCmd.Flags().StringVar((*string)(&calcInput.Direction), "direction", "buy", "trade direction (buy or sell)")

	calcCmd.MarkFlagRequired("balance")
	calcCmd.MarkFlagRequired("stop-pips")
}

func runCalc(cmd *cobra.Command, args []string) error {
	calcInput.MoveToBE = calcInput.EntryPrice > 0

	if err := calcInput.Validate(); err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}

	out := risk.Calculate(calcInput)

	fmt.Printf("Position sizing for %.0f pips stop at %.2f%% risk:\n", calcInput.StopPips, calcInput.RiskPercent)
	fmt.Printf("  Volume:          %.2f lots (raw %.4f)\n", out.Volume, out.VolumeRaw)
	fmt.Printf("  Target risk:     $%.2f (%.2f%%)\n", out.TargetRiskAmount, out.TargetRiskPercent)
	fmt.Printf("  Actual risk:     $%.2f (%.2f%%)\n", out.ActualRiskAmount, out.ActualRiskPercent)
	fmt.Printf("  TP1:             %.0f pips, close %.0f%%, remaining %.2f lots\n",
		out.TP1Pips, out.PartialPercent, out.RemainingVolume)
	if out.BEStopPrice != nil {
		fmt.Printf("  Break-even stop: %.5f\n", *out.BEStopPrice)
	}
	if !out.Allowed {
		fmt.Println("  TRADE NOT ALLOWED")
	}
	for _, w := range out.Warnings {
		fmt.Printf("  ! %s\n", w)
	}
	return nil
}
