// Package stimulus drives a simulated board from a small script language:
//
//	# comment
//	at 10ms press button
//	at 20ms can rx 0x123 "TEST"
//	at 25ms can error
//	await power standby within 2s
//	after 1s wake
//
// "at" offsets count from the start of playback on the board clock, "after"
// offsets from the previous step. Steps without timing run immediately.
package stimulus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/OpenTraceLab/f4demos/pkg/hal"
)

// ErrAwaitTimeout is returned when an await condition does not hold in time.
var ErrAwaitTimeout = errors.New("await timed out")

// Script is a validated sequence of steps.
type Script struct {
	Steps []Step
}

// Step is one scheduled action.
type Step struct {
	Line   int
	At     time.Duration
	Action Action
}

// Action is a stimulus applied to a board.
type Action interface {
	String() string
	run(ctx context.Context, p *player) error
}

// Duration is the offset of the last step.
func (s *Script) Duration() time.Duration {
	if len(s.Steps) == 0 {
		return 0
	}
	return s.Steps[len(s.Steps)-1].At
}

// Play applies every step to b in order. In virtual time waiting advances
// the board clock; in realtime it sleeps.
func (s *Script) Play(ctx context.Context, b *hal.SimBoard) error {
	p := &player{board: b}
	start := b.Now()
	for _, step := range s.Steps {
		if d := step.At - b.Now().Sub(start); d > 0 {
			if err := p.wait(ctx, d); err != nil {
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		Logger().Debug("stimulus", zap.Int("line", step.Line), zap.Duration("at", step.At), zap.Stringer("action", step.Action))
		if err := step.Action.run(ctx, p); err != nil {
			return fmt.Errorf("line %d: %s: %w", step.Line, step.Action, err)
		}
	}
	return nil
}

type player struct {
	board *hal.SimBoard
	// uart is the transcript offset searched by the next await uart.
	uart int
}

func (p *player) wait(ctx context.Context, d time.Duration) error {
	if !p.board.Realtime() {
		p.board.Advance(d)
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Press pulses a pin like a push button.
type Press struct {
	Pin hal.Pin
}

func (a Press) String() string { return "press " + a.Pin.String() }

func (a Press) run(_ context.Context, p *player) error {
	p.board.Press(a.Pin)
	return nil
}

// SetLevel drives an input pin.
type SetLevel struct {
	Pin  hal.Pin
	High bool
}

func (a SetLevel) String() string { return "set " + a.Pin.String() + " " + levelName(a.High) }

func (a SetLevel) run(_ context.Context, p *player) error {
	p.board.SetInput(a.Pin, a.High)
	return nil
}

func levelName(high bool) string {
	if high {
		return "high"
	}
	return "low"
}

// CANRx injects a frame from another bus node. A frame the controller
// drops is logged, not treated as an error.
type CANRx struct {
	Frame hal.CANFrame
}

func (a CANRx) String() string {
	return fmt.Sprintf("can rx %#x %q", a.Frame.ID, a.Frame.Data)
}

func (a CANRx) run(_ context.Context, p *player) error {
	if !p.board.InjectCAN(a.Frame) {
		Logger().Warn("frame not accepted", zap.Uint32("id", a.Frame.ID))
	}
	return nil
}

// CANError raises a bus error.
type CANError struct {
	Code uint32
}

func (a CANError) String() string { return fmt.Sprintf("can error %#x", a.Code) }

func (a CANError) run(_ context.Context, p *player) error {
	p.board.BusError(a.Code)
	return nil
}

// Wake pulses the WKUP1 pin.
type Wake struct{}

func (Wake) String() string { return "wake" }

func (Wake) run(_ context.Context, p *player) error {
	p.board.Wake()
	return nil
}

// Reset power cycles the board.
type Reset struct{}

func (Reset) String() string { return "reset" }

func (Reset) run(_ context.Context, p *player) error {
	p.board.PowerOnReset()
	return nil
}

// Await blocks until exactly one of its conditions holds or Within elapses.
// UART matches only count output after the previous UART match.
type Await struct {
	Pin    *SetLevel
	UART   *string
	Power  *hal.PowerState
	Within time.Duration
}

func (a Await) String() string {
	switch {
	case a.Pin != nil:
		return "await pin " + a.Pin.Pin.String() + " " + levelName(a.Pin.High)
	case a.UART != nil:
		return fmt.Sprintf("await uart %q", *a.UART)
	case a.Power != nil:
		return "await power " + strings.ToLower(a.Power.String())
	}
	return "await"
}

func (a Await) run(ctx context.Context, p *player) error {
	waitCtx, cancel := context.WithTimeout(ctx, a.Within)
	defer cancel()

	var cond func(*hal.SimBoard) bool
	switch {
	case a.Pin != nil:
		cond = func(b *hal.SimBoard) bool { return b.PinLevel(a.Pin.Pin) == a.Pin.High }
	case a.UART != nil:
		cond = func(b *hal.SimBoard) bool {
			out := b.UARTOutput()
			if p.uart > len(out) {
				p.uart = 0
			}
			i := strings.Index(out[p.uart:], *a.UART)
			if i < 0 {
				return false
			}
			p.uart += i + len(*a.UART)
			return true
		}
	case a.Power != nil:
		cond = func(b *hal.SimBoard) bool { return b.PowerState() == *a.Power }
	default:
		return nil
	}

	err := p.board.Await(waitCtx, cond)
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("%w after %s", ErrAwaitTimeout, a.Within)
	}
	return err
}
