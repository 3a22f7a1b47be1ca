package hal

import (
	"fmt"

	"github.com/OpenTraceLab/f4demos/pkg/trace"
)

type rccState struct {
	hse          bool
	pll          PLLConfig
	sysclk       ClockSource
	ahb          uint32
	apb1         uint32
	apb2         uint32
	flashLatency uint32
	systick      uint32
}

func (r *rccState) reset() {
	*r = rccState{sysclk: ClockHSI, ahb: 1, apb1: 1, apb2: 1}
}

func (r *rccState) sourceFreq(src ClockSource) uint32 {
	switch src {
	case ClockHSE:
		return HSEFrequency
	case ClockPLL:
		return pllOutput(r.pll)
	default:
		return HSIFrequency
	}
}

func (r *rccState) running(src ClockSource) bool {
	switch src {
	case ClockHSE:
		return r.hse
	case ClockPLL:
		return r.pll.On
	default:
		return true
	}
}

func (r *rccState) hclk() uint32 {
	return r.sourceFreq(r.sysclk) / r.ahb
}

func pllOutput(p PLLConfig) uint32 {
	in := uint32(HSIFrequency)
	if p.Source == ClockHSE {
		in = HSEFrequency
	}
	if p.M == 0 || p.P == 0 {
		return 0
	}
	return in / p.M * p.N / p.P
}

// ValidatePLL checks a PLL configuration against the F446 datasheet limits.
func ValidatePLL(p PLLConfig) error {
	if p.Source != ClockHSI && p.Source != ClockHSE {
		return fmt.Errorf("%w: PLL source %s", ErrHardware, p.Source)
	}
	if p.M < 2 || p.M > 63 {
		return fmt.Errorf("%w: PLLM %d out of range", ErrHardware, p.M)
	}
	if p.N < 50 || p.N > 432 {
		return fmt.Errorf("%w: PLLN %d out of range", ErrHardware, p.N)
	}
	switch p.P {
	case 2, 4, 6, 8:
	default:
		return fmt.Errorf("%w: PLLP %d not one of 2, 4, 6, 8", ErrHardware, p.P)
	}
	if p.Q < 2 || p.Q > 15 {
		return fmt.Errorf("%w: PLLQ %d out of range", ErrHardware, p.Q)
	}
	if p.R < 2 || p.R > 7 {
		return fmt.Errorf("%w: PLLR %d out of range", ErrHardware, p.R)
	}
	in := uint32(HSIFrequency)
	if p.Source == ClockHSE {
		in = HSEFrequency
	}
	vcoIn := in / p.M
	if vcoIn < 1_000_000 || vcoIn > 2_000_000 {
		return fmt.Errorf("%w: VCO input %d Hz outside 1-2 MHz", ErrHardware, vcoIn)
	}
	vco := vcoIn * p.N
	if vco < 100_000_000 || vco > 432_000_000 {
		return fmt.Errorf("%w: VCO output %d Hz outside 100-432 MHz", ErrHardware, vco)
	}
	if out := vco / p.P; out > MaxSysClk {
		return fmt.Errorf("%w: PLL output %d Hz above %d Hz", ErrHardware, out, MaxSysClk)
	}
	return nil
}

// RequiredFlashLatency returns the minimum flash wait states for hclk.
func RequiredFlashLatency(hclk uint32) uint32 {
	if hclk == 0 {
		return 0
	}
	return (hclk - 1) / FlashWaitStateStep
}

func validDivider(d uint32, max uint32) bool {
	return d != 0 && d <= max && d&(d-1) == 0
}

type simRCC struct{ b *SimBoard }

func (r simRCC) ConfigureOscillator(cfg OscConfig) error {
	b := r.b
	b.mu.Lock()
	defer b.unlock()
	if err := b.fail(OpOscillator); err != nil {
		return err
	}
	if cfg.PLL.On {
		if err := ValidatePLL(cfg.PLL); err != nil {
			return err
		}
		if cfg.PLL.Source == ClockHSE && !cfg.HSE {
			return fmt.Errorf("%w: PLL sourced from HSE with HSE off", ErrHardware)
		}
	}
	if b.rcc.sysclk == ClockPLL {
		return fmt.Errorf("%w: PLL in use as SYSCLK", ErrHardware)
	}
	if b.rcc.sysclk == ClockHSE && !cfg.HSE {
		return fmt.Errorf("%w: HSE in use as SYSCLK", ErrHardware)
	}
	b.rcc.hse = cfg.HSE
	b.rcc.pll = cfg.PLL
	b.record(trace.Event{
		Source: trace.SourceRCC,
		Kind:   trace.KindClockConfig,
		Value:  uint64(pllOutput(cfg.PLL)),
		Detail: fmt.Sprintf("hse=%t pll=%t", cfg.HSE, cfg.PLL.On),
	})
	return nil
}

func (r simRCC) ConfigureClock(cfg ClockConfig, flashLatency uint32) error {
	b := r.b
	b.mu.Lock()
	defer b.unlock()
	if err := b.fail(OpClockConfig); err != nil {
		return err
	}
	if !b.rcc.running(cfg.SysClkSource) {
		return fmt.Errorf("%w: %s not running", ErrHardware, cfg.SysClkSource)
	}
	if !validDivider(cfg.AHBDiv, 512) || !validDivider(cfg.APB1Div, 16) || !validDivider(cfg.APB2Div, 16) {
		return fmt.Errorf("%w: invalid bus prescaler", ErrHardware)
	}
	sys := b.rcc.sourceFreq(cfg.SysClkSource)
	hclk := sys / cfg.AHBDiv
	switch {
	case sys > MaxSysClk:
		return fmt.Errorf("%w: SYSCLK %d Hz above limit", ErrHardware, sys)
	case hclk/cfg.APB1Div > MaxAPB1:
		return fmt.Errorf("%w: APB1 %d Hz above limit", ErrHardware, hclk/cfg.APB1Div)
	case hclk/cfg.APB2Div > MaxAPB2:
		return fmt.Errorf("%w: APB2 %d Hz above limit", ErrHardware, hclk/cfg.APB2Div)
	case flashLatency < RequiredFlashLatency(hclk):
		return fmt.Errorf("%w: flash latency %d too low for %d Hz", ErrHardware, flashLatency, hclk)
	case flashLatency > 15:
		return fmt.Errorf("%w: flash latency %d", ErrHardware, flashLatency)
	}
	b.rcc.sysclk = cfg.SysClkSource
	b.rcc.ahb = cfg.AHBDiv
	b.rcc.apb1 = cfg.APB1Div
	b.rcc.apb2 = cfg.APB2Div
	b.rcc.flashLatency = flashLatency
	b.record(trace.Event{
		Source: trace.SourceRCC,
		Kind:   trace.KindClockSwitch,
		Value:  uint64(hclk),
		Detail: "SYSCLK=" + cfg.SysClkSource.String(),
	})
	return nil
}

func (r simRCC) SwitchSysClk(src ClockSource) error {
	b := r.b
	b.mu.Lock()
	defer b.unlock()
	if !b.rcc.running(src) {
		return fmt.Errorf("%w: %s not running", ErrHardware, src)
	}
	b.rcc.sysclk = src
	b.record(trace.Event{
		Source: trace.SourceRCC,
		Kind:   trace.KindClockSwitch,
		Value:  uint64(b.rcc.hclk()),
		Detail: "SYSCLK=" + src.String(),
	})
	return nil
}

func (r simRCC) SysClkSource() ClockSource {
	r.b.mu.Lock()
	defer r.b.mu.Unlock()
	return r.b.rcc.sysclk
}

func (r simRCC) HCLK() uint32 {
	r.b.mu.Lock()
	defer r.b.mu.Unlock()
	return r.b.rcc.hclk()
}

func (r simRCC) PCLK1() uint32 {
	r.b.mu.Lock()
	defer r.b.mu.Unlock()
	return r.b.rcc.hclk() / r.b.rcc.apb1
}

func (r simRCC) ConfigureSysTick(reload uint32) error {
	b := r.b
	b.mu.Lock()
	defer b.unlock()
	if err := b.fail(OpSysTick); err != nil {
		return err
	}
	if reload == 0 || reload > 0xFFFFFF {
		return fmt.Errorf("%w: SysTick reload %d", ErrHardware, reload)
	}
	b.rcc.systick = reload
	return nil
}

func (r simRCC) SetPeripheralClock(p Peripheral, on bool) {
	b := r.b
	b.mu.Lock()
	defer b.unlock()
	if b.clocks[p] == on {
		return
	}
	b.clocks[p] = on
	b.dirty = true
}

func (r simRCC) PeripheralClock(p Peripheral) bool {
	r.b.mu.Lock()
	defer r.b.mu.Unlock()
	return r.b.clocks[p]
}

// ClockState summarises the clock tree of a SimBoard.
type ClockState struct {
	SysClk       ClockSource
	HCLK         uint32
	HSE          bool
	PLL          bool
	FlashLatency uint32
	SysTick      uint32
}

// Clocks returns a snapshot of the clock tree.
func (b *SimBoard) Clocks() ClockState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return ClockState{
		SysClk:       b.rcc.sysclk,
		HCLK:         b.rcc.hclk(),
		HSE:          b.rcc.hse,
		PLL:          b.rcc.pll.On,
		FlashLatency: b.rcc.flashLatency,
		SysTick:      b.rcc.systick,
	}
}
