package power

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenTraceLab/f4demos/pkg/clock"
	"github.com/OpenTraceLab/f4demos/pkg/hal"
)

func TestModeProperties(t *testing.T) {
	tests := []struct {
		mode       Mode
		name       string
		regulator  hal.Regulator
		flashPD    bool
		underDrive bool
	}{
		{ModeMainRegFlashStop, "main-flash-stop", hal.RegulatorMain, false, false},
		{ModeMainRegFlashPowerDown, "main-flash-pd", hal.RegulatorMain, true, false},
		{ModeLowPowerRegFlashStop, "lp-flash-stop", hal.RegulatorLowPower, false, false},
		{ModeLowPowerRegFlashPowerDown, "lp-flash-pd", hal.RegulatorLowPower, true, false},
		{ModeMainRegUnderDriveFlashPowerDown, "main-ud-flash-pd", hal.RegulatorMain, true, true},
		{ModeLowPowerRegUnderDriveFlashPowerDown, "lp-ud-flash-pd", hal.RegulatorLowPower, true, true},
	}
	require.Len(t, Modes(), len(tests))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.mode.String())
			assert.Equal(t, tt.regulator, tt.mode.Regulator())
			assert.Equal(t, tt.flashPD, tt.mode.FlashPowerDown())
			assert.Equal(t, tt.underDrive, tt.mode.UnderDrive())
			assert.True(t, tt.mode.Valid())

			parsed, err := ParseMode(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.mode, parsed)
		})
	}
}

func TestParseModeLongNames(t *testing.T) {
	m, err := ParseMode("StopLowPwrRegUnderDriveFlashPwrDown")
	require.NoError(t, err)
	assert.Equal(t, ModeLowPowerRegUnderDriveFlashPowerDown, m)
	assert.Equal(t, "StopLowPwrRegUnderDriveFlashPwrDown", m.LongName())

	for _, mode := range Modes() {
		parsed, err := ParseMode(mode.LongName())
		require.NoError(t, err)
		assert.Equal(t, mode, parsed)
	}

	m, err = ParseMode("  MAIN-FLASH-STOP ")
	require.NoError(t, err)
	assert.Equal(t, ModeMainRegFlashStop, m)

	_, err = ParseMode("standby")
	assert.ErrorIs(t, err, ErrUnknownMode)
	assert.False(t, Mode(0).Valid())
	assert.Equal(t, "Mode(9)", Mode(9).String())
}

func TestDefaultMode(t *testing.T) {
	m, err := DefaultMode()
	require.NoError(t, err)
	assert.Equal(t, ModeLowPowerRegFlashPowerDown, m)

	saved := BuildMode
	t.Cleanup(func() { BuildMode = saved })
	BuildMode = "bogus"
	_, err = DefaultMode()
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestModeDescribe(t *testing.T) {
	assert.Equal(t, "low-power regulator, under-drive, flash power-down", ModeLowPowerRegUnderDriveFlashPowerDown.Describe())
	assert.Equal(t, "main regulator, flash stop", ModeMainRegFlashStop.Describe())
}

func TestStateMachineCycles(t *testing.T) {
	m := NewStateMachine()
	for _, next := range []State{StateWaitingForButton, StateEnteringLowPower, StateAsleep, StateResuming, StateIdle} {
		require.NoError(t, m.Transition(next))
	}
	assert.Equal(t, StateIdle, m.State())

	require.NoError(t, m.Transition(StateWaitingForButton))
	require.NoError(t, m.Transition(StateEnteringStandby))
	require.NoError(t, m.Transition(StateReset))
	assert.ErrorIs(t, m.Transition(StateIdle), ErrIllegalTransition, "reset is terminal")
}

func TestStateMachineRejectsIllegal(t *testing.T) {
	illegal := [][2]State{
		{StateIdle, StateAsleep},
		{StateIdle, StateResuming},
		{StateWaitingForButton, StateIdle},
		{StateEnteringLowPower, StateResuming},
		{StateAsleep, StateIdle},
		{StateResuming, StateAsleep},
		{StateEnteringStandby, StateIdle},
	}
	for _, pair := range illegal {
		assert.False(t, CanTransition(pair[0], pair[1]), "%s -> %s", pair[0], pair[1])
	}

	m := NewStateMachine()
	err := m.Transition(StateAsleep)
	require.ErrorIs(t, err, ErrIllegalTransition)
	assert.Contains(t, err.Error(), "Idle -> Asleep")
	assert.Equal(t, StateIdle, m.State())
	assert.Equal(t, []State{StateIdle}, m.History())
}

func TestWakeupFlag(t *testing.T) {
	f := NewWakeupFlag()
	assert.False(t, f.IsSet())
	assert.False(t, f.TryClear())

	f.Set()
	f.Set()
	assert.True(t, f.IsSet())
	require.NoError(t, f.Wait(context.Background()))
	assert.False(t, f.IsSet(), "Wait clears the flag")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, f.Wait(ctx), context.DeadlineExceeded)
}

func TestWakeupFlagConcurrentSetters(t *testing.T) {
	f := NewWakeupFlag()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for round := 0; round < 100; round++ {
		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				f.Set()
			}()
		}
		require.NoError(t, f.Wait(ctx))
		wg.Wait()
		f.TryClear()
	}
}

type fixture struct {
	board *hal.SimBoard
	seq   *Sequencer
	ctx   context.Context
}

func newFixture(t *testing.T, mode Mode) *fixture {
	t.Helper()
	b := hal.NewSimBoard()
	t.Cleanup(func() { b.Close() })
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	seq, err := NewSequencer(b, mode)
	require.NoError(t, err)
	b.RCC().SetPeripheralClock(hal.PeriphPWR, true)
	require.NoError(t, seq.ConfigureIndicator())
	require.NoError(t, seq.ArmWakeup())
	return &fixture{board: b, seq: seq, ctx: ctx}
}

func (f *fixture) awaitLED(t *testing.T, on bool) {
	t.Helper()
	require.NoError(t, f.board.Await(f.ctx, func(b *hal.SimBoard) bool { return b.PinLevel(hal.UserLED) == on }))
}

func TestWaitForUserSignalDrivesIndicator(t *testing.T) {
	f := newFixture(t, ModeLowPowerRegFlashPowerDown)
	errc := make(chan error, 1)
	go func() { errc <- f.seq.WaitForUserSignal(f.ctx) }()

	f.awaitLED(t, true)
	assert.Equal(t, StateWaitingForButton, f.seq.State())
	f.board.PressButton()

	require.NoError(t, <-errc)
	assert.False(t, f.board.PinLevel(hal.UserLED))
	assert.False(t, f.seq.Flag().IsSet())
	assert.Equal(t, []bool{true, false}, f.board.PinHistory(hal.UserLED))
}

func TestStopCycleForEveryMode(t *testing.T) {
	for _, mode := range Modes() {
		t.Run(mode.String(), func(t *testing.T) {
			f := newFixture(t, mode)
			require.NoError(t, clock.ConfigureHSE(f.board.RCC(), 84))

			errc := make(chan error, 1)
			go func() {
				if err := f.seq.WaitForUserSignal(f.ctx); err != nil {
					errc <- err
					return
				}
				if err := PrepareAnalog(f.board); err != nil {
					errc <- err
					return
				}
				errc <- f.seq.EnterPowerMode(f.ctx)
			}()

			f.awaitLED(t, true)
			f.board.PressButton()
			require.NoError(t, f.board.Await(f.ctx, func(b *hal.SimBoard) bool { return b.PowerState() == hal.PowerStop }))
			assert.Equal(t, StateAsleep, f.seq.State())
			f.board.PressButton()
			require.NoError(t, <-errc)

			require.NoError(t, f.seq.ResumeAfterWake())
			assert.Equal(t, StateIdle, f.seq.State())
			assert.Equal(t, hal.ClockHSI, f.board.RCC().SysClkSource())
			assert.True(t, f.board.RCC().PeripheralClock(hal.PeriphPWR))
			assert.True(t, f.board.InterruptArmed(hal.UserButton))
			assert.False(t, f.seq.Flag().IsSet(), "wake press consumed")

			stops := f.board.StopHistory()
			require.Len(t, stops, 1)
			assert.Equal(t, mode.StopConfig(), stops[0].StopConfig)
			assert.Equal(t, mode.FlashPowerDown(), stops[0].FlashPowerDown)
			assert.Equal(t, hal.PinConfig{Mode: hal.ModeOutput, Speed: hal.SpeedFast}, f.board.PinConfig(hal.UserLED))
		})
	}
}

func TestResumeOutOfOrder(t *testing.T) {
	f := newFixture(t, ModeMainRegFlashStop)
	assert.ErrorIs(t, f.seq.ResumeAfterWake(), ErrIllegalTransition)
}

func TestUnderDriveRequiresPWRClock(t *testing.T) {
	f := newFixture(t, ModeMainRegUnderDriveFlashPowerDown)
	f.board.RCC().SetPeripheralClock(hal.PeriphPWR, false)
	err := f.seq.EnterPowerMode(f.ctx)
	assert.ErrorIs(t, err, hal.ErrNotConfigured)
}

func TestEnterPowerModeHardwareFailure(t *testing.T) {
	f := newFixture(t, ModeLowPowerRegUnderDriveFlashPowerDown)
	f.board.FailOn(hal.OpUnderDrive)
	assert.ErrorIs(t, f.seq.EnterPowerMode(f.ctx), hal.ErrHardware)
}

func TestEnterStandbyAndResumeDetection(t *testing.T) {
	f := newFixture(t, ModeLowPowerRegFlashPowerDown)
	assert.False(t, ResumedFromStandby(f.board.PWR()))
	require.NoError(t, f.board.PWR().EnableWakeupPin(1))

	errc := make(chan error, 1)
	go func() { errc <- f.seq.EnterStandby(f.ctx) }()
	require.NoError(t, f.board.Await(f.ctx, func(b *hal.SimBoard) bool { return b.PowerState() == hal.PowerStandby }))
	f.board.Wake()

	require.ErrorIs(t, <-errc, hal.ErrStandbyReset)
	assert.Equal(t, StateReset, f.seq.State())
	assert.True(t, ResumedFromStandby(f.board.PWR()))
	assert.False(t, f.board.PWR().Flag(hal.FlagWakeup))
	assert.False(t, ResumedFromStandby(f.board.PWR()), "flag cleared after first check")
}

func TestStandbySequencerHasNoStopMode(t *testing.T) {
	b := hal.NewSimBoard()
	t.Cleanup(func() { b.Close() })
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	seq := NewStandbySequencer(b)
	assert.False(t, seq.Mode().Valid())
	assert.ErrorIs(t, seq.EnterPowerMode(ctx), ErrUnknownMode)
	assert.Equal(t, StateIdle, seq.State())
	assert.Empty(t, b.StopHistory())

	b.RCC().SetPeripheralClock(hal.PeriphPWR, true)
	require.NoError(t, b.PWR().EnableWakeupPin(1))
	errc := make(chan error, 1)
	go func() { errc <- seq.EnterStandby(ctx) }()
	require.NoError(t, b.Await(ctx, func(b *hal.SimBoard) bool { return b.PowerState() == hal.PowerStandby }))
	b.Wake()
	require.ErrorIs(t, <-errc, hal.ErrStandbyReset)
	assert.Equal(t, StateReset, seq.State())
}

func TestPrepareAnalog(t *testing.T) {
	f := newFixture(t, ModeLowPowerRegFlashPowerDown)
	require.NoError(t, PrepareAnalog(f.board))
	for _, port := range hal.Ports {
		assert.False(t, f.board.RCC().PeripheralClock(hal.PortClock(port)), "GPIO%c clock", port)
	}
	assert.Equal(t, hal.ModeAnalog, f.board.PinConfig(hal.PC13).Mode)
	assert.Equal(t, hal.ModeAnalog, f.board.PinConfig(hal.Pin{Port: 'H', Num: 1}).Mode)

	f.board.FailOn(hal.OpGPIOConfigure)
	assert.ErrorIs(t, PrepareAnalog(f.board), hal.ErrHardware)
}

func TestNewSequencerRejectsInvalidMode(t *testing.T) {
	_, err := NewSequencer(nil, Mode(0))
	assert.ErrorIs(t, err, ErrUnknownMode)
}
