package hal

import (
	"context"
	"fmt"
)

// PowerFlag is a status flag of the PWR block.
type PowerFlag uint8

const (
	// FlagWakeup (WUF) is set when a wakeup event was received.
	FlagWakeup PowerFlag = iota + 1
	// FlagStandby (SBF) is set when the device resumed from STANDBY. It
	// survives the reset that ends STANDBY and is cleared only by software.
	FlagStandby
)

func (f PowerFlag) String() string {
	switch f {
	case FlagWakeup:
		return "WU"
	case FlagStandby:
		return "SB"
	default:
		return fmt.Sprintf("PowerFlag(%d)", f)
	}
}

// Regulator selects the voltage regulator mode in STOP.
type Regulator uint8

const (
	RegulatorMain Regulator = iota
	RegulatorLowPower
)

func (r Regulator) String() string {
	if r == RegulatorLowPower {
		return "low-power"
	}
	return "main"
}

// StopConfig selects the STOP sub-mode.
type StopConfig struct {
	Regulator  Regulator
	UnderDrive bool
}

// PowerState is the current core power state.
type PowerState uint8

const (
	PowerRun PowerState = iota
	PowerStop
	PowerStandby
)

func (s PowerState) String() string {
	switch s {
	case PowerRun:
		return "RUN"
	case PowerStop:
		return "STOP"
	case PowerStandby:
		return "STANDBY"
	default:
		return fmt.Sprintf("PowerState(%d)", s)
	}
}

// PWR is the power controller.
type PWR interface {
	Flag(f PowerFlag) bool
	ClearFlag(f PowerFlag)
	// SetFlashPowerDown selects whether flash enters deep power-down in STOP.
	SetFlashPowerDown(on bool)
	// SetUnderDrive enables the regulator under-drive feature used in STOP.
	SetUnderDrive(on bool) error
	// EnterStop executes WFI in STOP mode. It returns once an armed wakeup
	// interrupt fires. On return SYSCLK runs from HSI.
	EnterStop(ctx context.Context, cfg StopConfig) error
	// EnterStandby enters STANDBY. It never returns nil: once woken it
	// returns ErrStandbyReset and the caller must restart from reset.
	EnterStandby(ctx context.Context) error
	// EnableWakeupPin enables WKUPn as a STANDBY wake source.
	EnableWakeupPin(n int) error
}
