// Package config holds the tunables of the demo firmwares and the simulated
// board, loaded from YAML.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/OpenTraceLab/f4demos/pkg/clock"
	"github.com/OpenTraceLab/f4demos/pkg/hal"
	"github.com/OpenTraceLab/f4demos/pkg/power"
)

// Config controls every demo and the simulated board.
type Config struct {
	Clock ClockConfig `yaml:"clock"`
	UART  UARTConfig  `yaml:"uart"`
	CAN   CANConfig   `yaml:"can"`
	PWM   PWMConfig   `yaml:"pwm"`
	Power PowerConfig `yaml:"power"`
	RTC   RTCConfig   `yaml:"rtc"`
	Sim   SimConfig   `yaml:"sim"`

	// Resolved by Validate
	mode    power.Mode
	calTime hal.RTCTime
	calDate hal.RTCDate
}

// ClockConfig selects the SYSCLK preset used by demos that leave HSI.
type ClockConfig struct {
	SysClkMHz uint32 `yaml:"sysclk_mhz"`
}

// UARTConfig configures the debug UART.
type UARTConfig struct {
	Baud uint32 `yaml:"baud"`
}

// CANConfig configures the CAN echo demo.
type CANConfig struct {
	ID        uint32 `yaml:"id"`
	Payload   string `yaml:"payload"`
	Prescaler uint32 `yaml:"prescaler"`
	Loopback  bool   `yaml:"loopback"`
}

// PWMConfig configures the breathing LED ramp.
type PWMConfig struct {
	Period    uint32        `yaml:"period"`
	Prescaler uint32        `yaml:"prescaler"`
	Step      uint32        `yaml:"step"`
	StepDelay time.Duration `yaml:"step_delay"`
	Cycles    int           `yaml:"cycles"` // 0 runs forever
}

// PowerConfig configures the STOP measurement demo.
type PowerConfig struct {
	Mode   string `yaml:"mode"`   // empty selects the build default
	Cycles int    `yaml:"cycles"` // 0 runs forever
}

// RTCConfig configures the RTC standby demo.
type RTCConfig struct {
	HourFormat  int    `yaml:"hour_format"`
	SetCalendar bool   `yaml:"set_calendar"`
	Time        string `yaml:"time"`
	Meridiem    string `yaml:"meridiem"`
	Date        string `yaml:"date"`
	Weekday     string `yaml:"weekday"`
}

// SimConfig configures the simulated board.
type SimConfig struct {
	Realtime           bool   `yaml:"realtime"`
	ButtonWakesStandby bool   `yaml:"button_wakes_standby"`
	Script             string `yaml:"script"`
}

// DefaultConfig returns the settings of the reference firmware.
func DefaultConfig() *Config {
	return &Config{
		Clock: ClockConfig{SysClkMHz: 50},
		UART:  UARTConfig{Baud: 115200},
		CAN: CANConfig{
			ID:        0x65D,
			Payload:   "HELLO",
			Prescaler: 2,
		},
		PWM: PWMConfig{
			Period:    9999,
			Prescaler: 4,
			Step:      20,
			StepDelay: time.Millisecond,
		},
		RTC: RTCConfig{
			HourFormat:  12,
			SetCalendar: true,
			Time:        "12:11:10",
			Meridiem:    "PM",
			Date:        "2018-06-12",
			Weekday:     "Tuesday",
		},
		Sim: SimConfig{
			Realtime: true,
		},
	}
}

// LoadError reports a configuration file that could not be used.
type LoadError struct {
	File    string
	Message string
	Cause   error
}

func (e *LoadError) Error() string {
	msg := "config: " + e.Message
	if e.File != "" {
		msg = "config: " + e.File + ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// Parse overlays YAML data on the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &LoadError{Message: "failed to parse YAML", Cause: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, &LoadError{Message: "invalid configuration", Cause: err}
	}
	return cfg, nil
}

// Load reads a YAML file. An empty path yields the validated defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := DefaultConfig()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{File: path, Message: "failed to read file", Cause: err}
	}
	cfg, err := Parse(data)
	if err != nil {
		if le, ok := err.(*LoadError); ok {
			le.File = path
		}
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section and resolves the power mode and calendar
// preset.
func (c *Config) Validate() error {
	if _, err := clock.PresetFor(c.Clock.SysClkMHz); err != nil {
		return err
	}
	if c.UART.Baud == 0 {
		return fmt.Errorf("uart baud must be positive")
	}

	if c.CAN.ID > hal.CANMaxStdID {
		return fmt.Errorf("can id %#x exceeds 11 bits", c.CAN.ID)
	}
	if len(c.CAN.Payload) > hal.CANMaxDLC {
		return fmt.Errorf("can payload %q longer than %d bytes", c.CAN.Payload, hal.CANMaxDLC)
	}
	if c.CAN.Prescaler == 0 {
		c.CAN.Prescaler = 2
	}

	if c.PWM.Period == 0 || c.PWM.Step == 0 || c.PWM.Step > c.PWM.Period {
		return fmt.Errorf("pwm step %d must be in 1..period (%d)", c.PWM.Step, c.PWM.Period)
	}
	if c.PWM.StepDelay < 0 || c.PWM.Cycles < 0 {
		return fmt.Errorf("pwm step delay and cycles must not be negative")
	}

	mode, err := power.DefaultMode()
	if c.Power.Mode != "" {
		mode, err = power.ParseMode(c.Power.Mode)
	}
	if err != nil {
		return err
	}
	c.mode = mode
	if c.Power.Cycles < 0 {
		c.Power.Cycles = 0
	}

	return c.resolveCalendar()
}

func (c *Config) resolveCalendar() error {
	var format hal.HourFormat
	switch c.RTC.HourFormat {
	case 12:
		format = hal.Hour12
	case 24:
		format = hal.Hour24
	default:
		return fmt.Errorf("rtc hour_format must be 12 or 24, got %d", c.RTC.HourFormat)
	}

	clk, err := time.Parse("15:04:05", c.RTC.Time)
	if err != nil {
		return fmt.Errorf("rtc time %q: %w", c.RTC.Time, err)
	}
	t := hal.RTCTime{Hours: uint8(clk.Hour()), Minutes: uint8(clk.Minute()), Seconds: uint8(clk.Second())}
	if format == hal.Hour12 {
		switch strings.ToUpper(c.RTC.Meridiem) {
		case "AM":
		case "PM":
			t.Meridiem = hal.PM
		default:
			return fmt.Errorf("rtc meridiem must be AM or PM, got %q", c.RTC.Meridiem)
		}
		if t.Hours < 1 || t.Hours > 12 {
			return fmt.Errorf("rtc 12 hour time %q needs hours 1..12", c.RTC.Time)
		}
	}

	day, err := time.Parse("2006-01-02", c.RTC.Date)
	if err != nil {
		return fmt.Errorf("rtc date %q: %w", c.RTC.Date, err)
	}
	if day.Year() < 2000 || day.Year() > 2099 {
		return fmt.Errorf("rtc date %q outside 2000..2099", c.RTC.Date)
	}
	wd, err := hal.ParseWeekday(c.RTC.Weekday)
	if err != nil {
		return err
	}

	c.calTime = t
	c.calDate = hal.RTCDate{
		Year:    uint8(day.Year() - 2000),
		Month:   uint8(day.Month()),
		Day:     uint8(day.Day()),
		Weekday: wd,
	}
	return nil
}

// PowerMode returns the STOP variant resolved by Validate.
func (c *Config) PowerMode() power.Mode {
	return c.mode
}

// RTCInit returns the RTC init structure for the configured hour format.
func (c *Config) RTCInit() hal.RTCConfig {
	init := hal.DefaultRTCConfig()
	if c.RTC.HourFormat == 24 {
		init.HourFormat = hal.Hour24
	}
	return init
}

// Calendar returns the preset time and date resolved by Validate.
func (c *Config) Calendar() (hal.RTCTime, hal.RTCDate) {
	return c.calTime, c.calDate
}

// UARTInit returns the UART init structure.
func (c *Config) UARTInit() hal.UARTConfig {
	u := hal.DefaultUARTConfig()
	u.BaudRate = c.UART.Baud
	return u
}
