package power

import (
	"errors"
	"fmt"
	"strings"

	"github.com/OpenTraceLab/f4demos/pkg/hal"
)

// Mode selects the STOP variant measured by the current-consumption demo.
type Mode uint8

const (
	ModeMainRegFlashStop Mode = iota + 1
	ModeMainRegFlashPowerDown
	ModeLowPowerRegFlashStop
	ModeLowPowerRegFlashPowerDown
	ModeMainRegUnderDriveFlashPowerDown
	ModeLowPowerRegUnderDriveFlashPowerDown
)

// ErrUnknownMode is returned by ParseMode.
var ErrUnknownMode = errors.New("power: unknown mode")

type modeInfo struct {
	name       string
	long       string
	regulator  hal.Regulator
	flashPD    bool
	underDrive bool
}

var modes = map[Mode]modeInfo{
	ModeMainRegFlashStop:                    {"main-flash-stop", "StopMainRegFlashStop", hal.RegulatorMain, false, false},
	ModeMainRegFlashPowerDown:               {"main-flash-pd", "StopMainRegFlashPwrDown", hal.RegulatorMain, true, false},
	ModeLowPowerRegFlashStop:                {"lp-flash-stop", "StopLowPwrRegFlashStop", hal.RegulatorLowPower, false, false},
	ModeLowPowerRegFlashPowerDown:           {"lp-flash-pd", "StopLowPwrRegFlashPwrDown", hal.RegulatorLowPower, true, false},
	ModeMainRegUnderDriveFlashPowerDown:     {"main-ud-flash-pd", "StopMainRegUnderDriveFlashPwrDown", hal.RegulatorMain, true, true},
	ModeLowPowerRegUnderDriveFlashPowerDown: {"lp-ud-flash-pd", "StopLowPwrRegUnderDriveFlashPwrDown", hal.RegulatorLowPower, true, true},
}

// Modes lists every variant in declaration order.
func Modes() []Mode {
	return []Mode{
		ModeMainRegFlashStop,
		ModeMainRegFlashPowerDown,
		ModeLowPowerRegFlashStop,
		ModeLowPowerRegFlashPowerDown,
		ModeMainRegUnderDriveFlashPowerDown,
		ModeLowPowerRegUnderDriveFlashPowerDown,
	}
}

func (m Mode) String() string {
	if info, ok := modes[m]; ok {
		return info.name
	}
	return fmt.Sprintf("Mode(%d)", m)
}

// LongName returns the Stop* identifier of m.
func (m Mode) LongName() string { return modes[m].long }

// Valid reports whether m is one of the six variants.
func (m Mode) Valid() bool {
	_, ok := modes[m]
	return ok
}

// Regulator returns the regulator mode used while stopped.
func (m Mode) Regulator() hal.Regulator { return modes[m].regulator }

// FlashPowerDown reports whether flash is powered down while stopped.
func (m Mode) FlashPowerDown() bool { return modes[m].flashPD }

// UnderDrive reports whether the regulator runs in under-drive.
func (m Mode) UnderDrive() bool { return modes[m].underDrive }

// StopConfig returns the STOP entry parameters for m.
func (m Mode) StopConfig() hal.StopConfig {
	return hal.StopConfig{Regulator: m.Regulator(), UnderDrive: m.UnderDrive()}
}

// Describe returns a one-line human description.
func (m Mode) Describe() string {
	if !m.Valid() {
		return m.String()
	}
	flash := "flash stop"
	if m.FlashPowerDown() {
		flash = "flash power-down"
	}
	desc := m.Regulator().String() + " regulator, "
	if m.UnderDrive() {
		desc += "under-drive, "
	}
	return desc + flash
}

// ParseMode accepts the short names printed by String as well as the long
// Stop* identifiers returned by LongName, case-insensitively.
func ParseMode(s string) (Mode, error) {
	s = strings.TrimSpace(s)
	for _, m := range Modes() {
		info := modes[m]
		if strings.EqualFold(s, info.name) || strings.EqualFold(s, info.long) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// BuildMode is the mode compiled into the binary. Override with
//
//	go build -ldflags "-X github.com/OpenTraceLab/f4demos/pkg/power.BuildMode=main-flash-stop"
var BuildMode = "lp-flash-pd"

// DefaultMode resolves BuildMode.
func DefaultMode() (Mode, error) {
	m, err := ParseMode(BuildMode)
	if err != nil {
		return 0, fmt.Errorf("power: build mode: %w", err)
	}
	return m, nil
}
