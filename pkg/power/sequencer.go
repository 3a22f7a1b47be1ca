package power

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/OpenTraceLab/f4demos/pkg/clock"
	"github.com/OpenTraceLab/f4demos/pkg/hal"
)

// Option customises a Sequencer.
type Option func(*Sequencer)

// WithIndicator selects the LED lit while waiting for the user.
func WithIndicator(p hal.Pin) Option {
	return func(s *Sequencer) { s.indicator = p }
}

// WithButton selects the wakeup button input.
func WithButton(p hal.Pin) Option {
	return func(s *Sequencer) { s.button = p }
}

// Sequencer drives one board through wait, low-power entry and resume.
type Sequencer struct {
	board     hal.Board
	mode      Mode
	indicator hal.Pin
	button    hal.Pin
	flag      *WakeupFlag
	sm        *StateMachine
	log       *zap.Logger
}

// NewSequencer creates a sequencer for mode on board. The indicator defaults
// to LD2 (PA5) and the button to B1 (PC13).
func NewSequencer(board hal.Board, mode Mode, opts ...Option) (*Sequencer, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMode, mode)
	}
	return newSequencer(board, mode, Logger().With(zap.Stringer("mode", mode)), opts), nil
}

// NewStandbySequencer creates a sequencer that only enters STANDBY. It has
// no STOP variant, so EnterPowerMode fails with ErrUnknownMode.
func NewStandbySequencer(board hal.Board, opts ...Option) *Sequencer {
	return newSequencer(board, 0, Logger().With(zap.String("mode", "standby")), opts)
}

func newSequencer(board hal.Board, mode Mode, log *zap.Logger, opts []Option) *Sequencer {
	s := &Sequencer{
		board:     board,
		mode:      mode,
		indicator: hal.UserLED,
		button:    hal.UserButton,
		flag:      NewWakeupFlag(),
		sm:        NewStateMachine(),
		log:       log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mode returns the STOP variant the sequencer enters.
func (s *Sequencer) Mode() Mode { return s.mode }

// Flag returns the wakeup flag shared with the button interrupt.
func (s *Sequencer) Flag() *WakeupFlag { return s.flag }

// State reports the current lifecycle state.
func (s *Sequencer) State() State { return s.sm.State() }

// History returns every lifecycle state visited.
func (s *Sequencer) History() []State { return s.sm.History() }

func (s *Sequencer) transition(next State) error {
	prev := s.sm.State()
	if err := s.sm.Transition(next); err != nil {
		return err
	}
	s.log.Debug("power state", zap.Stringer("from", prev), zap.Stringer("to", next))
	return nil
}

// ConfigureIndicator sets the indicator pin up as a push-pull output, off.
func (s *Sequencer) ConfigureIndicator() error {
	s.board.RCC().SetPeripheralClock(hal.PortClock(s.indicator.Port), true)
	err := s.board.GPIO().Configure(s.indicator, hal.PinConfig{
		Mode:  hal.ModeOutput,
		Pull:  hal.PullNone,
		Speed: hal.SpeedFast,
	})
	if err != nil {
		return fmt.Errorf("power: indicator %s: %w", s.indicator, err)
	}
	s.board.GPIO().Write(s.indicator, false)
	return nil
}

// ArmWakeup configures the button as an input whose rising edge sets the
// wakeup flag.
func (s *Sequencer) ArmWakeup() error {
	rcc := s.board.RCC()
	rcc.SetPeripheralClock(hal.PortClock(s.button.Port), true)
	rcc.SetPeripheralClock(hal.PeriphSYSCFG, true)
	gpio := s.board.GPIO()
	if err := gpio.Configure(s.button, hal.PinConfig{Mode: hal.ModeInput, Pull: hal.PullNone}); err != nil {
		return fmt.Errorf("power: button %s: %w", s.button, err)
	}
	if err := gpio.SetInterrupt(s.button, hal.EdgeRising, s.onButton); err != nil {
		return fmt.Errorf("power: button interrupt %s: %w", s.button, err)
	}
	return nil
}

// onButton runs in interrupt context.
func (s *Sequencer) onButton(pin hal.Pin) {
	s.board.GPIO().ClearPending(pin)
	s.flag.Set()
}

// WaitForUserSignal lights the indicator, blocks until the button
// interrupt sets the wakeup flag, then turns the indicator off. The flag is
// clear when it returns.
func (s *Sequencer) WaitForUserSignal(ctx context.Context) error {
	if err := s.transition(StateWaitingForButton); err != nil {
		return err
	}
	gpio := s.board.GPIO()
	gpio.Write(s.indicator, true)
	err := s.flag.Wait(ctx)
	gpio.Write(s.indicator, false)
	return err
}

// EnterPowerMode clears any stale wake request, arms the button, applies
// the regulator and flash settings of the selected mode and enters STOP. It
// blocks until a wake event.
func (s *Sequencer) EnterPowerMode(ctx context.Context) error {
	if !s.mode.Valid() {
		return fmt.Errorf("%w: no STOP variant", ErrUnknownMode)
	}
	if err := s.transition(StateEnteringLowPower); err != nil {
		return err
	}
	pwr := s.board.PWR()
	s.flag.TryClear()
	pwr.ClearFlag(hal.FlagWakeup)
	if err := s.ArmWakeup(); err != nil {
		return err
	}
	if s.mode.UnderDrive() {
		if err := pwr.SetUnderDrive(true); err != nil {
			return fmt.Errorf("power: under-drive: %w", err)
		}
	}
	pwr.SetFlashPowerDown(s.mode.FlashPowerDown())
	if err := s.transition(StateAsleep); err != nil {
		return err
	}
	if err := pwr.EnterStop(ctx, s.mode.StopConfig()); err != nil {
		return fmt.Errorf("power: stop: %w", err)
	}
	return nil
}

// ResumeAfterWake restores the running configuration after STOP: SYSCLK on
// HSI, PWR clock on, indicator and button reconfigured. The button press
// that caused the wake is consumed.
func (s *Sequencer) ResumeAfterWake() error {
	if err := s.transition(StateResuming); err != nil {
		return err
	}
	if err := clock.RestoreHSI(s.board.RCC()); err != nil {
		return fmt.Errorf("power: resume: %w", err)
	}
	s.board.RCC().SetPeripheralClock(hal.PeriphPWR, true)
	if err := s.ConfigureIndicator(); err != nil {
		return err
	}
	if err := s.ArmWakeup(); err != nil {
		return err
	}
	s.flag.TryClear()
	return s.transition(StateIdle)
}

// EnterStandby clears the wakeup flag and enters STANDBY. It returns
// hal.ErrStandbyReset once woken; the caller must restart from reset.
func (s *Sequencer) EnterStandby(ctx context.Context) error {
	if err := s.transition(StateEnteringStandby); err != nil {
		return err
	}
	pwr := s.board.PWR()
	pwr.ClearFlag(hal.FlagWakeup)
	err := pwr.EnterStandby(ctx)
	if errors.Is(err, hal.ErrStandbyReset) {
		if terr := s.transition(StateReset); terr != nil {
			return terr
		}
	}
	return err
}

// ResumedFromStandby reports whether this run began by waking from STANDBY.
// When it did, the SB and WU flags are cleared.
func ResumedFromStandby(pwr hal.PWR) bool {
	if !pwr.Flag(hal.FlagStandby) {
		return false
	}
	pwr.ClearFlag(hal.FlagStandby)
	pwr.ClearFlag(hal.FlagWakeup)
	return true
}

// PrepareAnalog puts every pin of every port in analog mode, the lowest
// leakage configuration, and gates the port clocks again.
func PrepareAnalog(board hal.Board) error {
	rcc := board.RCC()
	gpio := board.GPIO()
	cfg := hal.PinConfig{Mode: hal.ModeAnalog, Pull: hal.PullNone, Speed: hal.SpeedFast}
	for _, port := range hal.Ports {
		rcc.SetPeripheralClock(hal.PortClock(port), true)
	}
	for _, port := range hal.Ports {
		for n := uint8(0); n < 16; n++ {
			pin := hal.Pin{Port: port, Num: n}
			if err := gpio.Configure(pin, cfg); err != nil {
				return fmt.Errorf("power: analog %s: %w", pin, err)
			}
		}
	}
	for _, port := range hal.Ports {
		rcc.SetPeripheralClock(hal.PortClock(port), false)
	}
	return nil
}
