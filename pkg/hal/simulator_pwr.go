package hal

import (
	"context"
	"fmt"

	"github.com/OpenTraceLab/f4demos/pkg/trace"
)

// StopEntry records one STOP mode entry.
type StopEntry struct {
	StopConfig
	FlashPowerDown bool
}

type simPWR struct{ b *SimBoard }

func (p simPWR) Flag(f PowerFlag) bool {
	p.b.mu.Lock()
	defer p.b.mu.Unlock()
	return p.b.flags[f]
}

func (p simPWR) ClearFlag(f PowerFlag) {
	b := p.b
	b.mu.Lock()
	defer b.unlock()
	if b.flags[f] {
		b.flags[f] = false
		b.dirty = true
	}
}

func (p simPWR) SetFlashPowerDown(on bool) {
	b := p.b
	b.mu.Lock()
	defer b.unlock()
	b.flashPD = on
	b.dirty = true
}

func (p simPWR) SetUnderDrive(on bool) error {
	b := p.b
	b.mu.Lock()
	defer b.unlock()
	if err := b.fail(OpUnderDrive); err != nil {
		return err
	}
	if !b.clocks[PeriphPWR] {
		return fmt.Errorf("%w: PWR clock disabled", ErrNotConfigured)
	}
	b.underDrive = on
	b.dirty = true
	return nil
}

func (p simPWR) EnterStop(ctx context.Context, cfg StopConfig) error {
	b := p.b
	b.mu.Lock()
	if cfg.UnderDrive && !b.underDrive {
		b.unlock()
		return fmt.Errorf("%w: under-drive STOP without under-drive enabled", ErrNotConfigured)
	}
	seq := b.wakeSeq
	b.power = PowerStop
	b.stops = appendBounded(b.stops, StopEntry{StopConfig: cfg, FlashPowerDown: b.flashPD})
	b.record(trace.Event{
		Source: trace.SourcePWR,
		Kind:   trace.KindPowerEnter,
		Detail: fmt.Sprintf("STOP regulator=%s flash-pd=%t under-drive=%t", cfg.Regulator, b.flashPD, cfg.UnderDrive),
	})
	b.unlock()

	err := b.Await(ctx, func(b *SimBoard) bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		return b.wakeSeq != seq
	})
	if err != nil {
		b.mu.Lock()
		if b.power == PowerStop {
			b.power = PowerRun
		}
		b.unlock()
	}
	return err
}

// exitStop ends STOP mode after a wakeup interrupt. SYSCLK falls back to
// HSI and the PLL and HSE are stopped.
func (b *SimBoard) exitStop() {
	b.mu.Lock()
	defer b.unlock()
	if b.power != PowerStop {
		return
	}
	b.power = PowerRun
	b.underDrive = false
	b.rcc.sysclk = ClockHSI
	b.rcc.pll.On = false
	b.rcc.hse = false
	b.wakeSeq++
	b.record(trace.Event{Source: trace.SourcePWR, Kind: trace.KindPowerExit, Value: HSIFrequency, Detail: "STOP"})
}

func (p simPWR) EnterStandby(ctx context.Context) error {
	b := p.b
	b.mu.Lock()
	seq, por := b.wakeSeq, b.porSeq
	b.power = PowerStandby
	b.record(trace.Event{Source: trace.SourcePWR, Kind: trace.KindPowerEnter, Detail: "STANDBY"})
	armed := b.wakeupPins
	b.resetVolatile()
	b.wakeupPins = armed
	b.unlock()

	err := b.Await(ctx, func(b *SimBoard) bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		return b.wakeSeq != seq || b.porSeq != por
	})
	if err != nil {
		return err
	}
	return ErrStandbyReset
}

// exitStandby wakes the board from STANDBY through a wakeup pin. Callers
// hold b.mu.
func (b *SimBoard) exitStandby(p Pin) {
	b.flags[FlagStandby] = true
	b.flags[FlagWakeup] = true
	b.power = PowerRun
	b.wakeupPins = [3]bool{}
	b.resets++
	b.wakeSeq++
	b.record(trace.Event{Source: trace.SourcePWR, Kind: trace.KindPowerExit, Pin: p.String(), Detail: "STANDBY"})
	b.record(trace.Event{Source: trace.SourceCore, Kind: trace.KindReset, Detail: "wakeup"})
}

func (b *SimBoard) wakesStandby(p Pin) bool {
	switch p {
	case PA0:
		return b.wakeupPins[1]
	case PC13:
		return b.wakeupPins[2] || b.buttonWakesStandby
	}
	return false
}

func (p simPWR) EnableWakeupPin(n int) error {
	b := p.b
	b.mu.Lock()
	defer b.unlock()
	if err := b.fail(OpWakeupPin); err != nil {
		return err
	}
	if n < 1 || n >= len(b.wakeupPins) {
		return fmt.Errorf("%w: wakeup pin %d", ErrHardware, n)
	}
	b.wakeupPins[n] = true
	b.dirty = true
	return nil
}

// PowerOnReset cuts and restores power. Everything including the RTC and
// the PWR flags returns to reset values. A board in STANDBY restarts as if
// cold booted. It must not be used while firmware is running.
func (b *SimBoard) PowerOnReset() {
	b.mu.Lock()
	defer b.unlock()
	b.resetVolatile()
	b.flags = make(map[PowerFlag]bool)
	b.rtc.reset(b.now())
	b.power = PowerRun
	b.resets++
	b.porSeq++
	b.record(trace.Event{Source: trace.SourceCore, Kind: trace.KindReset, Detail: "power-on"})
}

// resetVolatile returns every peripheral outside the backup domain to its
// reset state. Callers hold b.mu (or own b exclusively).
func (b *SimBoard) resetVolatile() {
	for p, ps := range b.pins {
		if ps.cfg.Mode == ModeOutput && ps.out {
			b.pinHistory[p] = appendBounded(b.pinHistory[p], false)
		}
		ps.cfg = PinConfig{}
		ps.out = false
	}
	if b.pins == nil {
		b.pins = make(map[Pin]*pinState)
	}
	b.clocks = make(map[Peripheral]bool)
	b.exti = [16]extiLine{}
	b.rcc.reset()
	b.uart = uartState{}
	b.can = canState{}
	b.tim = timState{}
	b.irqEnabled = true
	b.underDrive = false
	b.flashPD = false
	b.wakeupPins = [3]bool{}
	b.dirty = true
}

// StopHistory returns every STOP entry, oldest first.
func (b *SimBoard) StopHistory() []StopEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]StopEntry(nil), b.stops...)
}

// UnderDrive reports whether regulator under-drive is enabled.
func (b *SimBoard) UnderDrive() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.underDrive
}

// WakeupPinEnabled reports whether WKUPn is armed.
func (b *SimBoard) WakeupPinEnabled(n int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return n > 0 && n < len(b.wakeupPins) && b.wakeupPins[n]
}
