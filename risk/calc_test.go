package risk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculate_BasicSizing(t *testing.T) {
	t.Parallel()

	in := Input{
		Balance:        10000,
		RiskPercent:    1,
		StopPips:       50,
		MaxStopPips:    100,
		PipValuePerLot: 10,
		MinVolume:      0.01,
		VolumeStep:     0.01,
		TP1Pips:        30,
		PartialPercent: 50,
	}

	got := Calculate(in)

	assert.True(t, got.Allowed)
	assert.InDelta(t, 0.20, got.Volume, 1e-12)
	assert.InDelta(t, 100.0, got.TargetRiskAmount, 1e-9)
	assert.InDelta(t, 100.0, got.ActualRiskAmount, 1e-9)
	assert.InDelta(t, 1.0, got.ActualRiskPercent, 1e-9)
	assert.InDelta(t, 0.10, got.RemainingVolume, 1e-12)
	assert.Empty(t, got.Warnings)
}

func TestCalculate_FloorsToStep(t *testing.T) {
	t.Parallel()

	// 100 / (33 * 10) = 0.30303..., floored to 0.30 on a 0.01 grid.
	in := Input{
		Balance:        10000,
		RiskPercent:    1,
		StopPips:       33,
		MaxStopPips:    100,
		PipValuePerLot: 10,
		MinVolume:      0.01,
		VolumeStep:     0.01,
	}

	got := Calculate(in)

	assert.InDelta(t, 0.30, got.Volume, 1e-12)
	assert.InDelta(t, 0.3030, got.VolumeRaw, 1e-12)
	assert.LessOrEqual(t, got.ActualRiskAmount, got.TargetRiskAmount)
}

func TestCalculate_FlooredVolumeNeverExceedsRawDemand(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		stop   float64
		pipVal float64
	}{
		{"narrow stop", 7, 10},
		{"wide stop", 93, 10},
		{"gold pip value", 21, 1},
	}

	for _, tt := range cases {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Calculate(Input{
				Balance:        25000,
				RiskPercent:    0.5,
				StopPips:       tt.stop,
				MaxStopPips:    200,
				PipValuePerLot: tt.pipVal,
				MinVolume:      0.01,
				VolumeStep:     0.01,
			})
			raw := 25000 * 0.5 / 100 / (tt.stop * tt.pipVal)
			if raw >= 0.01 {
				assert.LessOrEqual(t, got.Volume, raw+1e-12)
			}
		})
	}
}

func TestCalculate_RaisesToMinimumWithWarning(t *testing.T) {
	t.Parallel()

	// Raw demand 10 / (80 * 10) = 0.0125 floors to 0.01; min 0.02 wins.
	in := Input{
		Balance:        1000,
		RiskPercent:    1,
		StopPips:       80,
		MaxStopPips:    100,
		PipValuePerLot: 10,
		MinVolume:      0.02,
		VolumeStep:     0.01,
	}

	got := Calculate(in)

	assert.InDelta(t, 0.02, got.Volume, 1e-12)
	assert.Greater(t, got.ActualRiskAmount, got.TargetRiskAmount)
	require.NotEmpty(t, got.Warnings)
	assert.Contains(t, got.Warnings[0], "floored to minimum")
}

func TestCalculate_StopWiderThanMaxNotAllowed(t *testing.T) {
	t.Parallel()

	in := Input{
		Balance:        10000,
		RiskPercent:    1,
		StopPips:       150,
		MaxStopPips:    100,
		PipValuePerLot: 10,
		MinVolume:      0.01,
		VolumeStep:     0.01,
	}

	got := Calculate(in)

	assert.False(t, got.Allowed)
	require.NotEmpty(t, got.Warnings)
	assert.Contains(t, got.Warnings[0], "exceeds maximum")
	// Volume is still reported for display.
	assert.Greater(t, got.Volume, 0.0)
}

func TestCalculate_ActualRiskWarning(t *testing.T) {
	t.Parallel()

	// Tiny balance forces the minimum lot; actual risk far above target.
	in := Input{
		Balance:        100,
		RiskPercent:    1,
		StopPips:       50,
		MaxStopPips:    100,
		PipValuePerLot: 10,
		MinVolume:      0.01,
		VolumeStep:     0.01,
	}

	got := Calculate(in)

	assert.InDelta(t, 0.01, got.Volume, 1e-12)
	assert.Greater(t, got.ActualRiskPercent, got.TargetRiskPercent*1.1)

	found := false
	for _, w := range got.Warnings {
		if strings.Contains(w, "significantly exceeds") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestCalculate_BreakEvenStop(t *testing.T) {
	t.Parallel()

	base := Input{
		Balance:        10000,
		RiskPercent:    1,
		StopPips:       50,
		MaxStopPips:    100,
		PipValuePerLot: 10,
		MinVolume:      0.01,
		VolumeStep:     0.01,
		EntryPrice:     1.10000,
		PipSize:        0.0001,
		BEBufferPips:   2,
		MoveToBE:       true,
	}

	long := base
	long.Direction = DirectionBuy
	got := Calculate(long)
	require.NotNil(t, got.BEStopPrice)
	assert.InDelta(t, 1.10020, *got.BEStopPrice, 1e-9)

	short := base
	short.Direction = DirectionSell
	got = Calculate(short)
	require.NotNil(t, got.BEStopPrice)
	assert.InDelta(t, 1.09980, *got.BEStopPrice, 1e-9)

	disabled := base
	disabled.MoveToBE = false
	got = Calculate(disabled)
	assert.Nil(t, got.BEStopPrice)
}

func TestCalculate_Deterministic(t *testing.T) {
	t.Parallel()

	in := Input{
		Balance:        13370,
		RiskPercent:    2,
		StopPips:       37,
		MaxStopPips:    100,
		PipValuePerLot: 10,
		MinVolume:      0.01,
		VolumeStep:     0.01,
		PartialPercent: 50,
	}

	first := Calculate(in)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Calculate(in))
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := Input{Balance: 1000, RiskPercent: 1, StopPips: 10, PartialPercent: 50}
	assert.NoError(t, valid.Validate())

	bad := valid
	bad.Balance = 0
	assert.Error(t, bad.Validate())

	bad = valid
	bad.RiskPercent = 101
	assert.Error(t, bad.Validate())

	bad = valid
	bad.StopPips = -1
	assert.Error(t, bad.Validate())

	bad = valid
	bad.Direction = "sideways"
	assert.Error(t, bad.Validate())
}
