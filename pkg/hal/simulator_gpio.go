package hal

import (
	"fmt"

	"github.com/OpenTraceLab/f4demos/pkg/trace"
)

type pinState struct {
	cfg PinConfig
	out bool
	in  bool
}

type extiLine struct {
	port    Port
	edge    Edge
	handler InterruptHandler
	pending bool
}

type simGPIO struct{ b *SimBoard }

func (g simGPIO) Configure(p Pin, cfg PinConfig) error {
	b := g.b
	b.mu.Lock()
	defer b.unlock()
	if err := b.fail(OpGPIOConfigure); err != nil {
		return err
	}
	if !p.Valid() {
		return fmt.Errorf("%w: invalid pin %s", ErrHardware, p)
	}
	if !b.clocks[PortClock(p.Port)] {
		return fmt.Errorf("%w: %s clock disabled", ErrNotConfigured, PortClock(p.Port))
	}
	before := b.level(p)
	b.pin(p).cfg = cfg
	b.record(trace.Event{Source: trace.SourceGPIO, Kind: trace.KindPinConfig, Pin: p.String(), Detail: cfg.Mode.String()})
	b.touch(p, before)
	return nil
}

func (g simGPIO) Write(p Pin, high bool) {
	b := g.b
	b.mu.Lock()
	defer b.unlock()
	if !p.Valid() || !b.clocks[PortClock(p.Port)] {
		return
	}
	before := b.level(p)
	b.pin(p).out = high
	b.touch(p, before)
}

func (g simGPIO) Read(p Pin) bool {
	b := g.b
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.level(p)
}

func (g simGPIO) Toggle(p Pin) {
	b := g.b
	b.mu.Lock()
	defer b.unlock()
	if !p.Valid() || !b.clocks[PortClock(p.Port)] {
		return
	}
	before := b.level(p)
	ps := b.pin(p)
	ps.out = !ps.out
	b.touch(p, before)
}

func (g simGPIO) SetInterrupt(p Pin, edge Edge, handler InterruptHandler) error {
	b := g.b
	b.mu.Lock()
	defer b.unlock()
	if err := b.fail(OpGPIOInterrupt); err != nil {
		return err
	}
	if !p.Valid() {
		return fmt.Errorf("%w: invalid pin %s", ErrHardware, p)
	}
	if handler == nil {
		if b.exti[p.Num].port == p.Port {
			b.exti[p.Num] = extiLine{}
		}
		return nil
	}
	if edge < EdgeRising || edge > EdgeBoth {
		return fmt.Errorf("%w: invalid edge %s", ErrHardware, edge)
	}
	b.exti[p.Num] = extiLine{port: p.Port, edge: edge, handler: handler}
	b.record(trace.Event{Source: trace.SourceGPIO, Kind: trace.KindPinConfig, Pin: p.String(), Detail: "exti " + edge.String()})
	return nil
}

func (g simGPIO) ClearPending(p Pin) {
	b := g.b
	b.mu.Lock()
	defer b.mu.Unlock()
	if p.Valid() && b.exti[p.Num].port == p.Port {
		b.exti[p.Num].pending = false
	}
}

func (b *SimBoard) pin(p Pin) *pinState {
	ps, ok := b.pins[p]
	if !ok {
		// B1 has an external pull-up and reads high when released.
		ps = &pinState{in: p == UserButton}
		b.pins[p] = ps
	}
	return ps
}

// level is the electrical level seen on the pin.
func (b *SimBoard) level(p Pin) bool {
	ps := b.pin(p)
	switch ps.cfg.Mode {
	case ModeOutput:
		return ps.out
	case ModeInput:
		return ps.in
	default:
		return false
	}
}

// touch records a change of the driven level of an output pin.
func (b *SimBoard) touch(p Pin, before bool) {
	after := b.level(p)
	if after == before || b.pin(p).cfg.Mode == ModeInput {
		return
	}
	b.pinHistory[p] = appendBounded(b.pinHistory[p], after)
	var v uint64
	if after {
		v = 1
	}
	b.record(trace.Event{Source: trace.SourceGPIO, Kind: trace.KindPinWrite, Pin: p.String(), Value: v})
}

// SetInput drives the external level of a pin. A matching edge on an armed
// EXTI line runs its handler before SetInput returns. Pins in analog mode
// never raise interrupts.
func (b *SimBoard) SetInput(p Pin, high bool) {
	if !p.Valid() {
		return
	}
	b.mu.Lock()
	ps := b.pin(p)
	if ps.in == high {
		b.mu.Unlock()
		return
	}
	ps.in = high
	b.dirty = true

	var handler InterruptHandler
	line := &b.exti[p.Num]
	if line.handler != nil && line.port == p.Port && ps.cfg.Mode != ModeAnalog && line.edge.Matches(high) {
		handler = line.handler
		line.pending = true
		b.record(trace.Event{Source: trace.SourceGPIO, Kind: trace.KindInterrupt, Pin: p.String(), Detail: "exti"})
	}
	wake := false
	switch b.power {
	case PowerStop:
		wake = handler != nil
	case PowerStandby:
		if high && b.wakesStandby(p) {
			b.exitStandby(p)
		}
	}
	b.unlock()

	if handler == nil {
		return
	}
	var after func()
	if wake {
		after = b.exitStop
	}
	b.interrupt(func() {
		b.mu.Lock()
		b.exti[p.Num].pending = false
		b.mu.Unlock()
		handler(p)
	}, after)
}

// Press pulses a pin the way a push button does. B1 on PC13 idles high and
// is pulled low while pressed; other pins idle low.
func (b *SimBoard) Press(p Pin) {
	b.mu.Lock()
	idle := b.pin(p).in
	b.mu.Unlock()
	b.SetInput(p, !idle)
	b.SetInput(p, idle)
}

// PressButton presses and releases the user button B1.
func (b *SimBoard) PressButton() {
	b.Press(UserButton)
}

// Wake pulses the WKUP1 pin (PA0).
func (b *SimBoard) Wake() {
	b.Press(PA0)
}

// PinLevel returns the level currently seen on the pin.
func (b *SimBoard) PinLevel(p Pin) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.level(p)
}

// PinConfig returns the last configuration applied to the pin.
func (b *SimBoard) PinConfig(p Pin) PinConfig {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pin(p).cfg
}

// PinHistory returns every driven level change of an output pin, oldest
// first.
func (b *SimBoard) PinHistory(p Pin) []bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]bool(nil), b.pinHistory[p]...)
}

// InterruptPending reports whether the pin's EXTI line has an unserviced
// edge.
func (b *SimBoard) InterruptPending(p Pin) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return p.Valid() && b.exti[p.Num].port == p.Port && b.exti[p.Num].pending
}

// InterruptArmed reports whether an EXTI handler is installed for the pin.
func (b *SimBoard) InterruptArmed(p Pin) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return p.Valid() && b.exti[p.Num].port == p.Port && b.exti[p.Num].handler != nil
}
