// Package stopmode is the STOP mode current measurement firmware. Each
// cycle lights LD2 until the user presses B1, parks every pin in analog
// mode, enters the configured STOP variant and restores the run
// configuration once B1 wakes the core.
package stopmode

import (
	"context"

	"go.uber.org/zap"

	"github.com/OpenTraceLab/f4demos/pkg/config"
	"github.com/OpenTraceLab/f4demos/pkg/fault"
	"github.com/OpenTraceLab/f4demos/pkg/firmware"
	"github.com/OpenTraceLab/f4demos/pkg/hal"
	"github.com/OpenTraceLab/f4demos/pkg/power"
)

// Name is the registry name of the demo.
const Name = "stopmode"

func init() {
	firmware.Register(Name, New)
}

// Demo is the STOP measurement firmware.
type Demo struct {
	mode   power.Mode
	cycles int
}

// New builds the demo for the mode resolved by cfg.
func New(cfg *config.Config) (firmware.Demo, error) {
	mode := cfg.PowerMode()
	if !mode.Valid() {
		var err error
		if mode, err = power.DefaultMode(); err != nil {
			return nil, err
		}
	}
	return &Demo{mode: mode, cycles: cfg.Power.Cycles}, nil
}

func (d *Demo) Name() string { return Name }

// Mode returns the STOP variant being measured.
func (d *Demo) Mode() power.Mode { return d.mode }

// Main runs measurement cycles until the configured count is reached, or
// forever when it is zero.
func (d *Demo) Main(ctx context.Context, board hal.Board) error {
	board.RCC().SetPeripheralClock(hal.PeriphPWR, true)

	seq, err := power.NewSequencer(board, d.mode)
	if err != nil {
		return fault.At(err)
	}
	if err := seq.ConfigureIndicator(); err != nil {
		return fault.At(err)
	}
	if err := seq.ArmWakeup(); err != nil {
		return fault.At(err)
	}

	log := firmware.Logger().With(zap.String("demo", Name), zap.Stringer("mode", d.mode))
	for cycle := 1; d.cycles == 0 || cycle <= d.cycles; cycle++ {
		if err := seq.WaitForUserSignal(ctx); err != nil {
			return err
		}
		if err := power.PrepareAnalog(board); err != nil {
			return fault.At(err)
		}
		if err := seq.EnterPowerMode(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fault.At(err)
		}
		if err := seq.ResumeAfterWake(); err != nil {
			return fault.At(err)
		}
		log.Debug("measurement cycle complete", zap.Int("cycle", cycle))
	}
	return nil
}
