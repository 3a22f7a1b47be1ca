// Package rtcstandby keeps the RTC calendar running across STANDBY. A cold
// boot optionally presets the calendar; a STANDBY wake prints the time and
// date the RTC kept. B1 prints them on demand while the core is awake.
package rtcstandby

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/OpenTraceLab/f4demos/pkg/clock"
	"github.com/OpenTraceLab/f4demos/pkg/config"
	"github.com/OpenTraceLab/f4demos/pkg/fault"
	"github.com/OpenTraceLab/f4demos/pkg/firmware"
	"github.com/OpenTraceLab/f4demos/pkg/hal"
	"github.com/OpenTraceLab/f4demos/pkg/power"
)

// Name is the registry name of the demo.
const Name = "rtcstandby"

// WakeupPin is the PWR wakeup pin armed before STANDBY (PA0).
const WakeupPin = 1

// Serial messages.
const (
	Banner      = "RTC standby example started\r\n"
	WokeUp      = "System woke up from STANDBY mode\r\n"
	EnteringMsg = "Entering STANDBY mode now\r\n"
)

func init() {
	firmware.Register(Name, New)
}

// Demo is the RTC standby firmware.
type Demo struct {
	sysclk      uint32
	uart        hal.UARTConfig
	rtc         hal.RTCConfig
	setCalendar bool
	time        hal.RTCTime
	date        hal.RTCDate
}

// New builds the demo from cfg.
func New(cfg *config.Config) (firmware.Demo, error) {
	uart := cfg.UARTInit()
	uart.Direction = hal.DirectionTX
	t, d := cfg.Calendar()
	return &Demo{
		sysclk:      cfg.Clock.SysClkMHz,
		uart:        uart,
		rtc:         cfg.RTCInit(),
		setCalendar: cfg.RTC.SetCalendar,
		time:        t,
		date:        d,
	}, nil
}

func (d *Demo) Name() string { return Name }

// Main runs one boot: bring up the board, report, arm wakeup pin 1 and
// enter STANDBY. It returns hal.ErrStandbyReset when the board wakes.
func (d *Demo) Main(ctx context.Context, board hal.Board) error {
	a := &app{uart: board.UART(), rtc: board.RTC()}

	seq := power.NewStandbySequencer(board)
	if err := seq.ConfigureIndicator(); err != nil {
		return fault.At(err)
	}
	if err := initButton(board, a.onButton); err != nil {
		return fault.At(err)
	}
	if err := clock.ConfigureHSE(board.RCC(), d.sysclk); err != nil {
		return fault.At(err)
	}
	if err := initUART(board, d.uart); err != nil {
		return fault.At(err)
	}
	if err := board.RTC().Init(d.rtc); err != nil {
		return fault.At(err)
	}

	board.RCC().SetPeripheralClock(hal.PeriphPWR, true)
	if power.ResumedFromStandby(board.PWR()) {
		if err := a.printTimestamp(); err != nil {
			return fault.At(err)
		}
		a.print(WokeUp)
	} else {
		a.print(Banner)
		if d.setCalendar {
			if err := d.presetCalendar(board.RTC()); err != nil {
				return fault.At(err)
			}
		}
	}

	if err := board.PWR().EnableWakeupPin(WakeupPin); err != nil {
		return fault.At(err)
	}
	a.print(EnteringMsg)
	err := seq.EnterStandby(ctx)
	if errors.Is(err, hal.ErrStandbyReset) || ctx.Err() != nil {
		return err
	}
	return fault.At(err)
}

func (d *Demo) presetCalendar(rtc hal.RTC) error {
	if err := rtc.SetTime(d.time); err != nil {
		return err
	}
	return rtc.SetDate(d.date)
}

// initButton arms B1 on its falling edge.
func initButton(board hal.Board, handler hal.InterruptHandler) error {
	rcc := board.RCC()
	rcc.SetPeripheralClock(hal.PortClock(hal.UserButton.Port), true)
	rcc.SetPeripheralClock(hal.PeriphSYSCFG, true)
	gpio := board.GPIO()
	if err := gpio.Configure(hal.UserButton, hal.PinConfig{Mode: hal.ModeInput, Pull: hal.PullNone}); err != nil {
		return err
	}
	return gpio.SetInterrupt(hal.UserButton, hal.EdgeFalling, handler)
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

// app holds what the button interrupt needs.
type app struct {
	uart io.Writer
	rtc  hal.RTC
}

func (a *app) print(s string) {
	_, _ = io.WriteString(a.uart, s)
}

func (a *app) printTimestamp() error {
	t, err := a.rtc.Time()
	if err != nil {
		return err
	}
	d, err := a.rtc.Date()
	if err != nil {
		return err
	}
	a.print(FormatTime(t))
	a.print(FormatDate(d))
	return nil
}

// onButton runs in interrupt context.
func (a *app) onButton(hal.Pin) {
	if err := a.printTimestamp(); err != nil {
		firmware.Logger().Warn("rtc read failed", zap.String("demo", Name), zap.Error(err))
	}
}

// FormatTime renders the serial time line.
func FormatTime(t hal.RTCTime) string {
	return fmt.Sprintf("Time : %02d:%02d:%02d\r\n", t.Hours, t.Minutes, t.Seconds)
}

// FormatDate renders the serial date line, month first.
func FormatDate(d hal.RTCDate) string {
	return fmt.Sprintf("Date : %02d-%02d-%02d %s\r\n", d.Month, d.Day, d.Year, d.Weekday)
}
