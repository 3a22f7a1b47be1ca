// Package breathe fades LD2 in and out with a PWM duty cycle ramp on
// TIM2 channel 1.
package breathe

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/OpenTraceLab/f4demos/pkg/clock"
	"github.com/OpenTraceLab/f4demos/pkg/config"
	"github.com/OpenTraceLab/f4demos/pkg/fault"
	"github.com/OpenTraceLab/f4demos/pkg/firmware"
	"github.com/OpenTraceLab/f4demos/pkg/hal"
)

// Name is the registry name of the demo.
const Name = "breathe"

// Output is the timer channel driving the LED.
const Output = hal.Channel1

func init() {
	firmware.Register(Name, New)
}

// Demo is the breathing LED firmware.
type Demo struct {
	sysclk    uint32
	uart      hal.UARTConfig
	timer     hal.TimerConfig
	ramp      Ramp
	stepDelay time.Duration
	cycles    int
}

// New builds the demo from cfg.
func New(cfg *config.Config) (firmware.Demo, error) {
	ramp, err := NewRamp(cfg.PWM.Period, cfg.PWM.Step)
	if err != nil {
		return nil, err
	}
	return &Demo{
		sysclk:    cfg.Clock.SysClkMHz,
		uart:      cfg.UARTInit(),
		timer:     hal.TimerConfig{Prescaler: cfg.PWM.Prescaler, Period: cfg.PWM.Period},
		ramp:      ramp,
		stepDelay: cfg.PWM.StepDelay,
		cycles:    cfg.PWM.Cycles,
	}, nil
}

func (d *Demo) Name() string { return Name }

// Ramp returns the duty cycle sweep the demo plays.
func (d *Demo) Ramp() Ramp { return d.ramp }

// Main brings up the PLL, the LED pin, USART2 and TIM2, then breathes for
// the configured number of cycles, or forever when it is zero.
func (d *Demo) Main(ctx context.Context, board hal.Board) error {
	if err := clock.ConfigureHSE(board.RCC(), d.sysclk); err != nil {
		return fault.At(err)
	}
	if err := initLED(board); err != nil {
		return fault.At(err)
	}
	if err := initUART(board, d.uart); err != nil {
		return fault.At(err)
	}

	tim := board.PWM()
	if err := tim.Init(d.timer); err != nil {
		return fault.At(err)
	}
	oc := hal.OCConfig{Mode: hal.OCModePWM1, ActiveHigh: true, Pulse: 0}
	if err := tim.ConfigChannel(Output, oc); err != nil {
		return fault.At(err)
	}
	if err := tim.Start(Output); err != nil {
		return fault.At(err)
	}

	log := firmware.Logger().With(zap.String("demo", Name))
	steps := d.ramp.Cycle()
	for cycle := 1; d.cycles == 0 || cycle <= d.cycles; cycle++ {
		for _, duty := range steps {
			if err := ctx.Err(); err != nil {
				return err
			}
			tim.SetCompare(Output, duty)
			board.Delay(d.stepDelay)
		}
		log.Debug("breath complete", zap.Int("cycle", cycle), zap.Uint32("top", d.ramp.Top()))
	}
	return nil
}

// initLED routes PA5 to TIM2_CH1 so the timer drives LD2 directly.
func initLED(board hal.Board) error {
	rcc := board.RCC()
	rcc.SetPeripheralClock(hal.PortClock(hal.UserLED.Port), true)
	rcc.SetPeripheralClock(hal.PeriphTIM2, true)
	return board.GPIO().Configure(hal.UserLED, hal.PinConfig{
		Mode:      hal.ModeAlternate,
		Speed:     hal.SpeedLow,
		Alternate: hal.AF1TIM2,
	})
}

func initUART(board hal.Board, cfg hal.UARTConfig) error {
	rcc := board.RCC()
	rcc.SetPeripheralClock(hal.PeriphGPIOA, true)
	rcc.SetPeripheralClock(hal.PeriphUSART2, true)
	gpio := board.GPIO()
	for _, p := range []hal.Pin{hal.PA2, hal.PA3} {
		if err := gpio.Configure(p, hal.PinConfig{Mode: hal.ModeAlternate, Speed: hal.SpeedHigh, Alternate: hal.AF7USART2}); err != nil {
			return err
		}
	}
	return board.UART().Configure(cfg)
}
