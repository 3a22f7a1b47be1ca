// Package clock brings up the system clock tree from the 8 MHz HSE bypass
// clock supplied by the ST-LINK.
package clock

import (
	"errors"
	"fmt"
	"sort"

	"github.com/OpenTraceLab/f4demos/pkg/hal"
)

// ErrUnsupportedFrequency is returned for SYSCLK targets without a preset.
var ErrUnsupportedFrequency = errors.New("clock: unsupported system clock frequency")

// Preset is a complete PLL and bus configuration for one SYSCLK target.
type Preset struct {
	MHz          uint32
	PLL          hal.PLLConfig
	Bus          hal.ClockConfig
	FlashLatency uint32
}

// HCLK returns the core clock the preset produces.
func (p Preset) HCLK() uint32 {
	return hal.HSEFrequency / p.PLL.M * p.PLL.N / p.PLL.P / p.Bus.AHBDiv
}

func preset(mhz, n, apb1, apb2, latency uint32) Preset {
	return Preset{
		MHz: mhz,
		PLL: hal.PLLConfig{On: true, Source: hal.ClockHSE, M: 4, N: n, P: 2, Q: 2, R: 2},
		Bus: hal.ClockConfig{
			SysClkSource: hal.ClockPLL,
			AHBDiv:       1,
			APB1Div:      apb1,
			APB2Div:      apb2,
		},
		FlashLatency: latency,
	}
}

var presets = map[uint32]Preset{
	50:  preset(50, 50, 2, 1, 1),
	84:  preset(84, 84, 2, 1, 2),
	120: preset(120, 120, 4, 2, 3),
}

// PresetFor returns the preset for a SYSCLK target in MHz.
func PresetFor(mhz uint32) (Preset, error) {
	p, ok := presets[mhz]
	if !ok {
		return Preset{}, fmt.Errorf("%w: %d MHz (supported: %v)", ErrUnsupportedFrequency, mhz, Supported())
	}
	return p, nil
}

// Supported lists the SYSCLK targets with a preset, ascending.
func Supported() []uint32 {
	out := make([]uint32, 0, len(presets))
	for mhz := range presets {
		out = append(out, mhz)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ConfigureHSE runs SYSCLK from the PLL fed by HSE at mhz and sets SysTick
// to a 1 ms period.
func ConfigureHSE(rcc hal.RCC, mhz uint32) error {
	p, err := PresetFor(mhz)
	if err != nil {
		return err
	}
	if err := rcc.ConfigureOscillator(hal.OscConfig{HSE: true, PLL: p.PLL}); err != nil {
		return fmt.Errorf("clock: oscillator: %w", err)
	}
	if err := rcc.ConfigureClock(p.Bus, p.FlashLatency); err != nil {
		return fmt.Errorf("clock: bus clocks: %w", err)
	}
	if err := rcc.ConfigureSysTick(rcc.HCLK() / 1000); err != nil {
		return fmt.Errorf("clock: systick: %w", err)
	}
	return nil
}

// RestoreHSI selects HSI as SYSCLK and checks that the switch took effect.
// This is the clock the core runs on after leaving STOP.
func RestoreHSI(rcc hal.RCC) error {
	if err := rcc.SwitchSysClk(hal.ClockHSI); err != nil {
		return fmt.Errorf("clock: switch to HSI: %w", err)
	}
	if src := rcc.SysClkSource(); src != hal.ClockHSI {
		return fmt.Errorf("clock: SYSCLK still on %s after switch to HSI", src)
	}
	return nil
}
