package clock

import (
	"testing"

	"github.com/OpenTraceLab/f4demos/pkg/hal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresetsAreValid(t *testing.T) {
	for _, mhz := range Supported() {
		p, err := PresetFor(mhz)
		require.NoError(t, err)
		require.NoError(t, hal.ValidatePLL(p.PLL), "%d MHz", mhz)
		assert.Equal(t, mhz*1_000_000, p.HCLK())
		assert.GreaterOrEqual(t, p.FlashLatency, hal.RequiredFlashLatency(p.HCLK()))
		assert.LessOrEqual(t, p.HCLK()/p.Bus.APB1Div, uint32(hal.MaxAPB1))
		assert.LessOrEqual(t, p.HCLK()/p.Bus.APB2Div, uint32(hal.MaxAPB2))
	}
	assert.Equal(t, []uint32{50, 84, 120}, Supported())
}

func TestPresetForUnknown(t *testing.T) {
	_, err := PresetFor(100)
	assert.ErrorIs(t, err, ErrUnsupportedFrequency)
}

func TestConfigureHSE(t *testing.T) {
	for _, mhz := range []uint32{50, 84, 120} {
		b := hal.NewSimBoard()
		require.NoError(t, ConfigureHSE(b.RCC(), mhz))
		state := b.Clocks()
		assert.Equal(t, hal.ClockPLL, state.SysClk)
		assert.Equal(t, mhz*1_000_000, state.HCLK)
		assert.Equal(t, mhz*1000, state.SysTick)
		b.Close()
	}
}

func TestConfigureHSEUnknownLeavesClocks(t *testing.T) {
	b := hal.NewSimBoard()
	defer b.Close()
	require.ErrorIs(t, ConfigureHSE(b.RCC(), 72), ErrUnsupportedFrequency)
	assert.Equal(t, hal.ClockHSI, b.Clocks().SysClk)
}

func TestConfigureHSEHardwareFailure(t *testing.T) {
	b := hal.NewSimBoard()
	defer b.Close()
	b.FailOn(hal.OpClockConfig)
	assert.ErrorIs(t, ConfigureHSE(b.RCC(), 50), hal.ErrHardware)
}

func TestRestoreHSI(t *testing.T) {
	b := hal.NewSimBoard()
	defer b.Close()
	require.NoError(t, ConfigureHSE(b.RCC(), 84))
	require.NoError(t, RestoreHSI(b.RCC()))
	assert.EqualValues(t, hal.HSIFrequency, b.Clocks().HCLK)
}
