package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenTraceLab/f4demos/pkg/hal"
	"github.com/OpenTraceLab/f4demos/pkg/power"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, power.ModeLowPowerRegFlashPowerDown, cfg.PowerMode())

	tm, d := cfg.Calendar()
	assert.Equal(t, hal.RTCTime{Hours: 12, Minutes: 11, Seconds: 10, Meridiem: hal.PM}, tm)
	assert.Equal(t, hal.RTCDate{Year: 18, Month: 6, Day: 12, Weekday: hal.Tuesday}, d)
	assert.Equal(t, hal.Hour12, cfg.RTCInit().HourFormat)
	assert.EqualValues(t, 115200, cfg.UARTInit().BaudRate)
}

func TestParseOverlaysDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
clock:
  sysclk_mhz: 84
power:
  mode: StopMainRegFlashStop
  cycles: 3
pwm:
  step: 100
  step_delay: 2ms
rtc:
  hour_format: 24
  time: "23:59:30"
sim:
  realtime: false
`))
	require.NoError(t, err)
	assert.EqualValues(t, 84, cfg.Clock.SysClkMHz)
	assert.Equal(t, power.ModeMainRegFlashStop, cfg.PowerMode())
	assert.Equal(t, 3, cfg.Power.Cycles)
	assert.EqualValues(t, 100, cfg.PWM.Step)
	assert.EqualValues(t, 9999, cfg.PWM.Period, "default kept")
	assert.Equal(t, 2*time.Millisecond, cfg.PWM.StepDelay)
	assert.False(t, cfg.Sim.Realtime)
	assert.Equal(t, "HELLO", cfg.CAN.Payload)

	tm, _ := cfg.Calendar()
	assert.Equal(t, hal.RTCTime{Hours: 23, Minutes: 59, Seconds: 30}, tm)
	assert.Equal(t, hal.Hour24, cfg.RTCInit().HourFormat)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"clock", "clock: {sysclk_mhz: 72}"},
		{"baud", "uart: {baud: 0}"},
		{"can id", "can: {id: 0x800}"},
		{"can payload", "can: {payload: NINEBYTES}"},
		{"pwm step", "pwm: {step: 0}"},
		{"pwm step above period", "pwm: {period: 10, step: 11}"},
		{"mode", "power: {mode: hibernate}"},
		{"hour format", "rtc: {hour_format: 13}"},
		{"meridiem", "rtc: {meridiem: XM}"},
		{"12h hour", `rtc: {time: "13:00:00"}`},
		{"date", "rtc: {date: 2018-13-01}"},
		{"century", "rtc: {date: 1999-01-01}"},
		{"weekday", "rtc: {weekday: Someday}"},
		{"yaml", "clock: ["},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			var le *LoadError
			assert.ErrorAs(t, err, &le)
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "board.yaml")
	require.NoError(t, os.WriteFile(path, []byte("can: {loopback: true}\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.CAN.Loopback)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Contains(t, err.Error(), "missing.yaml")

	require.NoError(t, os.WriteFile(path, []byte("clock: {sysclk_mhz: 1}\n"), 0o644))
	_, err = Load(path)
	require.ErrorAs(t, err, &le)
	assert.Equal(t, path, le.File)
}
