package rtcstandby

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenTraceLab/f4demos/pkg/config"
	"github.com/OpenTraceLab/f4demos/pkg/firmware"
	"github.com/OpenTraceLab/f4demos/pkg/hal"
)

func newDemo(t *testing.T, setCalendar bool) firmware.Demo {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.RTC.SetCalendar = setCalendar
	require.NoError(t, cfg.Validate())
	d, err := New(cfg)
	require.NoError(t, err)
	return d
}

func awaitStandby(t *testing.T, ctx context.Context, b *hal.SimBoard, resets int) {
	t.Helper()
	require.NoError(t, b.Await(ctx, func(b *hal.SimBoard) bool {
		return b.PowerState() == hal.PowerStandby && b.Resets() == resets
	}))
}

func TestColdBootEntersStandby(t *testing.T) {
	b := hal.NewSimBoard()
	defer b.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- newDemo(t, true).Main(ctx, b) }()
	awaitStandby(t, ctx, b, 0)

	assert.Equal(t, Banner+EnteringMsg, b.UARTOutput())
	assert.True(t, b.WakeupPinEnabled(WakeupPin))
	uart, ok := b.UARTConfigured()
	assert.False(t, ok, "USART2 is reset in STANDBY")
	assert.Zero(t, uart.Direction)

	b.Wake()
	assert.ErrorIs(t, <-done, hal.ErrStandbyReset)
}

func TestResumePrintsCalendarFirst(t *testing.T) {
	b := hal.NewSimBoard()
	defer b.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- firmware.Run(ctx, b, newDemo(t, true)) }()
	awaitStandby(t, ctx, b, 0)
	b.Advance(5 * time.Second)
	b.Wake()
	awaitStandby(t, ctx, b, 1)

	lines := b.UARTLines()
	require.Len(t, lines, 6)
	assert.Equal(t, []string{
		"Time : 12:11:15",
		"Date : 06-12-18 Tuesday",
		"System woke up from STANDBY mode",
		"Entering STANDBY mode now",
	}, lines[2:])
	assert.False(t, b.PWR().Flag(hal.FlagStandby), "SB cleared on resume")
	assert.False(t, b.PWR().Flag(hal.FlagWakeup))

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestCalendarRunsAcrossDays(t *testing.T) {
	b := hal.NewSimBoard()
	defer b.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() { _ = firmware.Run(ctx, b, newDemo(t, true)) }()
	awaitStandby(t, ctx, b, 0)
	b.Advance(12*time.Hour + 2*time.Minute)
	b.Wake()
	awaitStandby(t, ctx, b, 1)

	lines := b.UARTLines()
	require.GreaterOrEqual(t, len(lines), 4)
	assert.Equal(t, "Time : 12:13:10", lines[2])
	assert.Equal(t, "Date : 06-13-18 Wednesday", lines[3])
}

func TestNoPresetKeepsResetCalendar(t *testing.T) {
	b := hal.NewSimBoard()
	defer b.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() { _ = firmware.Run(ctx, b, newDemo(t, false)) }()
	awaitStandby(t, ctx, b, 0)
	b.Wake()
	awaitStandby(t, ctx, b, 1)

	lines := b.UARTLines()
	require.GreaterOrEqual(t, len(lines), 4)
	assert.Equal(t, "Time : 12:00:00", lines[2])
	assert.Equal(t, "Date : 01-01-00 Monday", lines[3])
}

func TestPowerOnResetIsColdBoot(t *testing.T) {
	b := hal.NewSimBoard()
	defer b.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() { _ = firmware.Run(ctx, b, newDemo(t, true)) }()
	awaitStandby(t, ctx, b, 0)
	b.PowerOnReset()
	awaitStandby(t, ctx, b, 1)

	assert.Equal(t, Banner+EnteringMsg+Banner+EnteringMsg, b.UARTOutput())
}

func TestButtonPrintsTimestamp(t *testing.T) {
	b := hal.NewSimBoard()
	defer b.Close()
	cfg := config.DefaultConfig()
	require.NoError(t, cfg.Validate())
	d, err := New(cfg)
	require.NoError(t, err)
	demo := d.(*Demo)

	require.NoError(t, initUART(b, demo.uart))
	require.NoError(t, b.RTC().Init(demo.rtc))
	require.NoError(t, demo.presetCalendar(b.RTC()))
	a := &app{uart: b.UART(), rtc: b.RTC()}
	require.NoError(t, initButton(b, a.onButton))

	b.PressButton()
	assert.Equal(t, "Time : 12:11:10\r\nDate : 06-12-18 Tuesday\r\n", b.UARTOutput())
	assert.True(t, b.InterruptArmed(hal.UserButton))
}

func TestRTCFailureIsFatal(t *testing.T) {
	b := hal.NewSimBoard()
	defer b.Close()
	b.FailOn(hal.OpRTCInit)

	err := newDemo(t, true).Main(context.Background(), b)
	require.ErrorIs(t, err, hal.ErrHardware)
	assert.Contains(t, err.Error(), "rtcstandby.go:")
	assert.Empty(t, b.UARTOutput())
}

func TestCancelInStandby(t *testing.T) {
	b := hal.NewSimBoard()
	defer b.Close()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- newDemo(t, true).Main(ctx, b) }()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	awaitStandby(t, waitCtx, b, 0)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "Time : 01:02:03\r\n", FormatTime(hal.RTCTime{Hours: 1, Minutes: 2, Seconds: 3}))
	assert.Equal(t, "Date : 12-31-99 Sunday\r\n", FormatDate(hal.RTCDate{Year: 99, Month: 12, Day: 31, Weekday: hal.Sunday}))
	assert.Equal(t, "Date : 01-01-00 ?\r\n", FormatDate(hal.RTCDate{Month: 1, Day: 1}))
}

func TestRegistered(t *testing.T) {
	assert.Contains(t, firmware.Names(), Name)
}
