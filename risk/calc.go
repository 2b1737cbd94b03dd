package risk

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Direction of the planned trade; drives the break-even stop sign.
type Direction string

const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
)

// Input carries the account and broker parameters for a sizing
// calculation. Values are immutable; Calculate never mutates its input.
type Input struct {
	Balance        float64   `json:"account_balance"`
	RiskPercent    float64   `json:"risk_percent"`
	EntryPrice     float64   `json:"entry_price"`
	StopPips       float64   `json:"stop_pips"`
	MaxStopPips    float64   `json:"max_stop_pips"`
	PipValuePerLot float64   `json:"pip_value_per_1_lot"`
	MinVolume      float64   `json:"min_volume"`
	VolumeStep     float64   `json:"volume_step"`
	PipSize        float64   `json:"pip_size"` // pip in price terms, for the BE stop
	TP1Pips        float64   `json:"tp1_pips"`
	PartialPercent float64   `json:"partial_percent"`
	BEBufferPips   float64   `json:"be_buffer_pips"`
	MoveToBE       bool      `json:"move_to_be_enabled"`
	Direction      Direction `json:"direction"`
}

// Output is the sizing result and risk report.
type Output struct {
	Allowed           bool     `json:"allowed"`
	VolumeRaw         float64  `json:"volume_raw"`
	Volume            float64  `json:"volume"`
	TargetRiskAmount  float64  `json:"target_risk_amount"`
	ActualRiskAmount  float64  `json:"actual_risk_amount"`
	TargetRiskPercent float64  `json:"target_risk_percent"`
	ActualRiskPercent float64  `json:"actual_risk_percent"`
	TP1Pips           float64  `json:"tp1_pips"`
	PartialPercent    float64  `json:"partial_percent"`
	RemainingVolume   float64  `json:"remaining_volume"`
	BEStopPrice       *float64 `json:"be_sl_price,omitempty"`
	Warnings          []string `json:"warnings"`
}

// Calculate sizes a position from risk parameters. Pure and
// deterministic: no I/O, no mutation, never panics on validated input.
//
//	volume = target_risk_amount / (stop_pips * pip_value_per_1_lot)
//
// floored to the broker's step grid and raised to the step-aligned
// minimum volume. All step math runs on exact decimals; binary floats
// only appear in display-level rounding of monetary outputs.
func Calculate(in Input) Output {
	targetRisk := in.Balance * in.RiskPercent / 100

	var volumeRaw float64
	if in.PipValuePerLot > 0 && in.StopPips > 0 {
		volumeRaw = targetRisk / (in.StopPips * in.PipValuePerLot)
	}

	// Floor the raw demand to the step grid.
	var step, stepped decimal.Decimal
	if in.VolumeStep <= 0 {
		step = decimal.NewFromFloat(0.01)
		stepped = decimal.Zero
	} else {
		step = decimal.NewFromFloat(in.VolumeStep)
		raw := decimal.NewFromFloat(volumeRaw)
		stepped = raw.Div(step).Floor().Mul(step)
	}

	// The broker minimum must itself sit on the step grid; round it up.
	minValid := decimal.NewFromFloat(in.MinVolume).Div(step).Ceil().Mul(step)

	volumeD := stepped
	if minValid.GreaterThan(volumeD) {
		volumeD = minValid
	}
	// The ceiled minimum can land off the floor grid; floor once more.
	volumeD = volumeD.Div(step).Floor().Mul(step)

	volume, _ := volumeD.Float64()
	volumeRaw, _ = decimal.NewFromFloat(volumeRaw).RoundDown(4).Float64()

	actualRisk := volume * in.StopPips * in.PipValuePerLot
	var actualPct float64
	if in.Balance > 0 {
		actualPct = actualRisk / in.Balance * 100
	}

	allowed := in.StopPips <= in.MaxStopPips

	var warnings []string
	if !allowed {
		warnings = append(warnings, fmt.Sprintf(
			"Stop loss (%g pips) exceeds maximum allowed (%g pips)", in.StopPips, in.MaxStopPips))
	}
	minValidF, _ := minValid.Float64()
	if volume <= minValidF && volumeRaw < minValidF {
		warnings = append(warnings, fmt.Sprintf(
			"Volume floored to minimum (%g). Actual risk exceeds target.", minValidF))
	}
	if actualPct > in.RiskPercent*1.1 {
		warnings = append(warnings, fmt.Sprintf(
			"Actual risk (%.2f%%) significantly exceeds target (%g%%)", actualPct, in.RiskPercent))
	}

	remaining, _ := volumeD.
		Mul(decimal.NewFromFloat(1 - in.PartialPercent/100)).
		Round(2).
		Float64()

	var beStop *float64
	if in.MoveToBE && in.EntryPrice > 0 {
		buffer := in.BEBufferPips * in.PipSize
		price := in.EntryPrice + buffer
		if in.Direction == DirectionSell {
			price = in.EntryPrice - buffer
		}
		beStop = &price
	}

	return Output{
		Allowed:           allowed,
		VolumeRaw:         volumeRaw,
		Volume:            volume,
		TargetRiskAmount:  round2(targetRisk),
		ActualRiskAmount:  round2(actualRisk),
		TargetRiskPercent: in.RiskPercent,
		ActualRiskPercent: round2(actualPct),
		TP1Pips:           in.TP1Pips,
		PartialPercent:    in.PartialPercent,
		RemainingVolume:   remaining,
		BEStopPrice:       beStop,
		Warnings:          warnings,
	}
}

// Validate rejects malformed input before Calculate is called on it.
func (in Input) Validate() error {
	if in.Balance <= 0 {
		return fmt.Errorf("account_balance must be positive")
	}
	if in.RiskPercent <= 0 || in.RiskPercent > 100 {
		return fmt.Errorf("risk_percent must be in (0, 100]")
	}
	if in.StopPips < 0 {
		return fmt.Errorf("stop_pips must not be negative")
	}
	if in.PartialPercent < 0 || in.PartialPercent > 100 {
		return fmt.Errorf("partial_percent must be in [0, 100]")
	}
	if in.Direction != "" && in.Direction != DirectionBuy && in.Direction != DirectionSell {
		return fmt.Errorf("direction must be %q or %q", DirectionBuy, DirectionSell)
	}
	return nil
}

func round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}
