package hal

import (
	"fmt"
	"strings"
)

// HourFormat selects 12 or 24 hour calendar mode.
type HourFormat uint8

const (
	Hour24 HourFormat = iota
	Hour12
)

// Meridiem is the AM/PM indicator used in 12 hour mode.
type Meridiem uint8

const (
	AM Meridiem = iota
	PM
)

func (m Meridiem) String() string {
	if m == PM {
		return "PM"
	}
	return "AM"
}

// Weekday follows the RTC encoding: 1 = Monday ... 7 = Sunday.
type Weekday uint8

const (
	Monday Weekday = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// String returns the English day name, or "?" outside 1..7.
func (d Weekday) String() string {
	if d == 0 || d > 7 {
		return "?"
	}
	return weekdayNames[d-1]
}

// ParseWeekday accepts full English day names, case-insensitive.
func ParseWeekday(s string) (Weekday, error) {
	for i, name := range weekdayNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return Weekday(i + 1), nil
		}
	}
	return 0, fmt.Errorf("hal: unknown weekday %q", s)
}

// RTCTime is the calendar time register content.
type RTCTime struct {
	Hours    uint8
	Minutes  uint8
	Seconds  uint8
	Meridiem Meridiem
}

// RTCDate is the calendar date register content. Year is 0..99.
type RTCDate struct {
	Year    uint8
	Month   uint8
	Day     uint8
	Weekday Weekday
}

// RTCConfig is the RTC init structure. The calendar ticks at
// LSE / ((AsyncPrediv + 1) * (SyncPrediv + 1)).
type RTCConfig struct {
	HourFormat  HourFormat
	AsyncPrediv uint32
	SyncPrediv  uint32
}

// DefaultRTCConfig returns a 1 Hz calendar from the 32.768 kHz LSE in 12
// hour mode.
func DefaultRTCConfig() RTCConfig {
	return RTCConfig{HourFormat: Hour12, AsyncPrediv: 0x7F, SyncPrediv: 0xFF}
}

// LSEFrequency is the NUCLEO low speed crystal.
const LSEFrequency = 32768

// RTC is the real-time clock in the backup domain. Its content survives
// STANDBY.
type RTC interface {
	Init(cfg RTCConfig) error
	SetTime(t RTCTime) error
	SetDate(d RTCDate) error
	Time() (RTCTime, error)
	Date() (RTCDate, error)
}
