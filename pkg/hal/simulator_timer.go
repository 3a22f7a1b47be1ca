package hal

import (
	"fmt"

	"github.com/OpenTraceLab/f4demos/pkg/trace"
)

type timState struct {
	initialized bool
	cfg         TimerConfig
	channels    [5]OCConfig
	configured  [5]bool
	running     [5]bool
	compare     [5]uint32
}

type simTimer struct{ b *SimBoard }

func (t simTimer) Init(cfg TimerConfig) error {
	b := t.b
	b.mu.Lock()
	defer b.unlock()
	if err := b.fail(OpTimerInit); err != nil {
		return err
	}
	if !b.clocks[PeriphTIM2] {
		return fmt.Errorf("%w: TIM2 clock disabled", ErrNotConfigured)
	}
	if cfg.Period == 0 || cfg.Prescaler > 0xFFFF {
		return fmt.Errorf("%w: timer period %d prescaler %d", ErrHardware, cfg.Period, cfg.Prescaler)
	}
	b.tim = timState{initialized: true, cfg: cfg}
	return nil
}

func validChannel(ch Channel) bool {
	return ch >= Channel1 && ch <= Channel4
}

func (t simTimer) ConfigChannel(ch Channel, oc OCConfig) error {
	b := t.b
	b.mu.Lock()
	defer b.unlock()
	if err := b.fail(OpTimerChannel); err != nil {
		return err
	}
	if !b.tim.initialized {
		return fmt.Errorf("%w: timer channel before init", ErrNotConfigured)
	}
	if !validChannel(ch) {
		return fmt.Errorf("%w: timer channel %d", ErrHardware, ch)
	}
	b.tim.channels[ch] = oc
	b.tim.configured[ch] = true
	b.tim.compare[ch] = oc.Pulse
	return nil
}

func (t simTimer) Start(ch Channel) error {
	b := t.b
	b.mu.Lock()
	defer b.unlock()
	if err := b.fail(OpTimerStart); err != nil {
		return err
	}
	if !validChannel(ch) || !b.tim.configured[ch] {
		return fmt.Errorf("%w: timer channel %d not configured", ErrNotConfigured, ch)
	}
	b.tim.running[ch] = true
	b.dirty = true
	return nil
}

func (t simTimer) SetCompare(ch Channel, value uint32) {
	b := t.b
	b.mu.Lock()
	defer b.unlock()
	if !validChannel(ch) || !b.tim.initialized {
		return
	}
	b.tim.compare[ch] = value
	b.compares[ch] = appendBounded(b.compares[ch], value)
	b.record(trace.Event{Source: trace.SourceTIM, Kind: trace.KindCompare, Value: uint64(value), Detail: fmt.Sprintf("CH%d", ch)})
}

func (t simTimer) Compare(ch Channel) uint32 {
	t.b.mu.Lock()
	defer t.b.mu.Unlock()
	if !validChannel(ch) {
		return 0
	}
	return t.b.tim.compare[ch]
}

func (t simTimer) Period() uint32 {
	t.b.mu.Lock()
	defer t.b.mu.Unlock()
	return t.b.tim.cfg.Period
}

// CompareHistory returns the values written to a channel's compare
// register, oldest first.
func (b *SimBoard) CompareHistory(ch Channel) []uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]uint32(nil), b.compares[ch]...)
}

// Duty returns the PWM duty cycle of a running channel in [0, 1].
func (b *SimBoard) Duty(ch Channel) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !validChannel(ch) || !b.tim.running[ch] {
		return 0
	}
	d := float64(b.tim.compare[ch]) / float64(b.tim.cfg.Period+1)
	if d > 1 {
		d = 1
	}
	return d
}

// TimerRunning reports whether a channel generates output.
func (b *SimBoard) TimerRunning(ch Channel) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return validChannel(ch) && b.tim.running[ch]
}
