package risk

import "github.com/shopspring/decimal"

// Block reasons a partial close can be refused for. The computed volumes
// are still returned so callers can report what would have happened.
const (
	BlockPositionVolumeInvalid  = "position_volume_invalid"
	BlockSymbolSpecsUnavailable = "symbol_specs_unavailable"
	BlockCloseBelowMinLot       = "requested_close_below_min_lot"
	BlockRemainingBelowMinLot   = "remaining_below_min_lot"
	BlockWouldCloseFullPosition = "would_close_full_position"
)

// FloorToStep rounds value down to the nearest multiple of step.
// Returns 0 when step is not positive.
func FloorToStep(value, step float64) float64 {
	if step <= 0 {
		return 0
	}
	v := decimal.NewFromFloat(value)
	s := decimal.NewFromFloat(step)
	f, _ := v.Div(s).Floor().Mul(s).Float64()
	return f
}

// CeilToStep rounds value up to the nearest multiple of step.
// Returns 0 when step is not positive.
func CeilToStep(value, step float64) float64 {
	if step <= 0 {
		return 0
	}
	v := decimal.NewFromFloat(value)
	s := decimal.NewFromFloat(step)
	f, _ := v.Div(s).Ceil().Mul(s).Float64()
	return f
}

// OnStep reports whether value sits exactly on the step grid.
func OnStep(value, step float64) bool {
	if step <= 0 {
		return false
	}
	q := decimal.NewFromFloat(value).Div(decimal.NewFromFloat(step))
	return q.Equal(q.Floor())
}

// NormalizeResult is the outcome of broker-safe close-volume
// normalization.
type NormalizeResult struct {
	RequestedVolume float64 `json:"requested_volume"`
	CloseVolume     float64 `json:"close_volume"`
	RemainingVolume float64 `json:"remaining_volume"`
	BlockReason     string  `json:"blocked_reason,omitempty"`
	VolumeMin       float64 `json:"volume_min"`
	VolumeStep      float64 `json:"volume_step"`
}

// Blocked reports whether the close must not be sent.
func (r NormalizeResult) Blocked() bool { return r.BlockReason != "" }

// Normalize computes a broker-safe close volume for a partial close of
// requestedPercent of positionVolume.
//
// The close volume is always floored to the step grid, never rounded up:
// the system must never close more than requested. A full close
// (percent >= 100) is passed through exactly with no flooring. Unsafe
// requests are blocked with a reason but the numbers are still returned.
func Normalize(positionVolume, requestedPercent, volumeMin, volumeStep float64) NormalizeResult {
	requested := positionVolume * requestedPercent / 100

	var closeVol float64
	if requestedPercent >= 100 {
		closeVol = positionVolume
	} else {
		closeVol = FloorToStep(requested, volumeStep)
	}

	remaining, _ := decimal.NewFromFloat(positionVolume).
		Sub(decimal.NewFromFloat(closeVol)).
		Float64()
	if remaining < 0 {
		remaining = 0
	}

	res := NormalizeResult{
		RequestedVolume: requested,
		CloseVolume:     closeVol,
		RemainingVolume: remaining,
		VolumeMin:       volumeMin,
		VolumeStep:      volumeStep,
	}

	switch {
	case positionVolume <= 0:
		res.BlockReason = BlockPositionVolumeInvalid
	case volumeMin <= 0 || volumeStep <= 0:
		res.BlockReason = BlockSymbolSpecsUnavailable
	case requestedPercent < 100 && closeVol < volumeMin:
		res.BlockReason = BlockCloseBelowMinLot
	case remaining > 0 && remaining < volumeMin:
		res.BlockReason = BlockRemainingBelowMinLot
	case requestedPercent < 100 && closeVol >= positionVolume:
		res.BlockReason = BlockWouldCloseFullPosition
	}

	return res
}
