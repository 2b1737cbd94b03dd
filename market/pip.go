package market

import "strings"

// PipForSymbol returns the pip size in price terms for a symbol.
//
// Metals and crypto use fixed conventions regardless of quote digits;
// FX pips derive from the pricing precision (5-digit pricing trades in
// 0.0001 pips, 3-digit JPY-style pricing in 0.01).
func PipForSymbol(symbol string, digits int) float64 {
	s := strings.ToUpper(symbol)

	if strings.Contains(s, "XAU") || strings.Contains(s, "GOLD") {
		return 0.10
	}
	if strings.Contains(s, "BTC") || strings.Contains(s, "XBT") {
		return 1.00
	}

	switch digits {
	case 3, 2:
		return 0.01
	case 5:
		return 0.0001
	}
	return 0.0001
}
