package hal

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/OpenTraceLab/f4demos/pkg/trace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBoard(t *testing.T, opts ...SimOption) *SimBoard {
	t.Helper()
	b := NewSimBoard(opts...)
	t.Cleanup(func() { b.Close() })
	return b
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestSimGPIORequiresPortClock(t *testing.T) {
	b := newBoard(t)
	err := b.GPIO().Configure(PA5, PinConfig{Mode: ModeOutput})
	require.ErrorIs(t, err, ErrNotConfigured)

	b.RCC().SetPeripheralClock(PeriphGPIOA, true)
	require.NoError(t, b.GPIO().Configure(PA5, PinConfig{Mode: ModeOutput}))

	b.GPIO().Write(PA5, true)
	assert.True(t, b.PinLevel(PA5))
	b.GPIO().Toggle(PA5)
	assert.False(t, b.PinLevel(PA5))
	assert.Equal(t, []bool{true, false}, b.PinHistory(PA5))

	b.RCC().SetPeripheralClock(PeriphGPIOA, false)
	b.GPIO().Write(PA5, true)
	assert.False(t, b.PinLevel(PA5), "writes ignored with port clock off")
}

func TestSimButtonIdlesHigh(t *testing.T) {
	b := newBoard(t)
	b.RCC().SetPeripheralClock(PeriphGPIOC, true)
	require.NoError(t, b.GPIO().Configure(PC13, PinConfig{Mode: ModeInput}))
	assert.True(t, b.GPIO().Read(PC13))
}

func TestSimExtiEdges(t *testing.T) {
	b := newBoard(t)
	b.RCC().SetPeripheralClock(PeriphGPIOC, true)
	require.NoError(t, b.GPIO().Configure(PC13, PinConfig{Mode: ModeInput}))

	var rising, falling atomic.Int32
	require.NoError(t, b.GPIO().SetInterrupt(PC13, EdgeRising, func(Pin) { rising.Add(1) }))
	b.PressButton()
	assert.EqualValues(t, 1, rising.Load())

	require.NoError(t, b.GPIO().SetInterrupt(PC13, EdgeFalling, func(Pin) { falling.Add(1) }))
	b.PressButton()
	assert.EqualValues(t, 1, rising.Load())
	assert.EqualValues(t, 1, falling.Load())
	assert.True(t, b.InterruptArmed(PC13))

	require.NoError(t, b.GPIO().SetInterrupt(PC13, EdgeFalling, nil))
	assert.False(t, b.InterruptArmed(PC13))
}

func TestSimAnalogPinsDoNotInterrupt(t *testing.T) {
	b := newBoard(t)
	b.RCC().SetPeripheralClock(PeriphGPIOC, true)
	var n atomic.Int32
	require.NoError(t, b.GPIO().SetInterrupt(PC13, EdgeBoth, func(Pin) { n.Add(1) }))
	require.NoError(t, b.GPIO().Configure(PC13, PinConfig{Mode: ModeAnalog}))
	b.PressButton()
	assert.Zero(t, n.Load())
}

func TestSimMaskedInterruptStaysPending(t *testing.T) {
	b := newBoard(t)
	b.RCC().SetPeripheralClock(PeriphGPIOC, true)
	var n atomic.Int32
	require.NoError(t, b.GPIO().SetInterrupt(PC13, EdgeRising, func(Pin) { n.Add(1) }))
	b.DisableInterrupts()
	b.PressButton()
	assert.Zero(t, n.Load())
	assert.True(t, b.InterruptPending(PC13))
	b.GPIO().ClearPending(PC13)
	assert.False(t, b.InterruptPending(PC13))
}

func TestSimClockTree(t *testing.T) {
	b := newBoard(t)
	rcc := b.RCC()
	assert.Equal(t, ClockHSI, rcc.SysClkSource())
	assert.EqualValues(t, HSIFrequency, rcc.HCLK())

	err := rcc.ConfigureClock(ClockConfig{SysClkSource: ClockPLL, AHBDiv: 1, APB1Div: 2, APB2Div: 1}, 1)
	require.ErrorIs(t, err, ErrHardware, "PLL not running yet")

	pll := PLLConfig{On: true, Source: ClockHSE, M: 4, N: 50, P: 2, Q: 2, R: 2}
	require.NoError(t, rcc.ConfigureOscillator(OscConfig{HSE: true, PLL: pll}))

	err = rcc.ConfigureClock(ClockConfig{SysClkSource: ClockPLL, AHBDiv: 1, APB1Div: 1, APB2Div: 1}, 1)
	require.ErrorIs(t, err, ErrHardware, "APB1 above 45 MHz")
	err = rcc.ConfigureClock(ClockConfig{SysClkSource: ClockPLL, AHBDiv: 1, APB1Div: 2, APB2Div: 1}, 0)
	require.ErrorIs(t, err, ErrHardware, "flash latency too low")

	require.NoError(t, rcc.ConfigureClock(ClockConfig{SysClkSource: ClockPLL, AHBDiv: 1, APB1Div: 2, APB2Div: 1}, 1))
	assert.EqualValues(t, 50_000_000, rcc.HCLK())
	assert.EqualValues(t, 25_000_000, rcc.PCLK1())

	require.ErrorIs(t, rcc.ConfigureOscillator(OscConfig{HSE: true, PLL: pll}), ErrHardware, "PLL in use")

	require.NoError(t, rcc.SwitchSysClk(ClockHSI))
	assert.Equal(t, ClockHSI, b.Clocks().SysClk)

	require.ErrorIs(t, rcc.ConfigureSysTick(0), ErrHardware)
	require.NoError(t, rcc.ConfigureSysTick(50_000))
	assert.EqualValues(t, 50_000, b.Clocks().SysTick)
}

func TestSimFailOn(t *testing.T) {
	b := newBoard(t)
	b.FailOn(OpOscillator)
	err := b.RCC().ConfigureOscillator(OscConfig{})
	require.ErrorIs(t, err, ErrHardware)
	assert.Contains(t, err.Error(), string(OpOscillator))

	b.ClearFailures()
	require.NoError(t, b.RCC().ConfigureOscillator(OscConfig{}))
}

func armButton(t *testing.T, b *SimBoard, edge Edge, fn InterruptHandler) {
	t.Helper()
	b.RCC().SetPeripheralClock(PeriphGPIOC, true)
	require.NoError(t, b.GPIO().Configure(PC13, PinConfig{Mode: ModeInput}))
	require.NoError(t, b.GPIO().SetInterrupt(PC13, edge, fn))
}

func TestSimStopWakesOnExti(t *testing.T) {
	b := newBoard(t)
	ctx := testContext(t)
	pll := PLLConfig{On: true, Source: ClockHSE, M: 4, N: 84, P: 2, Q: 2, R: 2}
	require.NoError(t, b.RCC().ConfigureOscillator(OscConfig{HSE: true, PLL: pll}))
	require.NoError(t, b.RCC().ConfigureClock(ClockConfig{SysClkSource: ClockPLL, AHBDiv: 1, APB1Div: 2, APB2Div: 1}, 2))

	var handled atomic.Bool
	armButton(t, b, EdgeRising, func(Pin) { handled.Store(true) })
	b.PWR().SetFlashPowerDown(true)

	errc := make(chan error, 1)
	go func() { errc <- b.PWR().EnterStop(ctx, StopConfig{Regulator: RegulatorLowPower}) }()

	require.NoError(t, b.Await(ctx, func(b *SimBoard) bool { return b.PowerState() == PowerStop }))
	b.PressButton()
	require.NoError(t, <-errc)

	assert.True(t, handled.Load(), "handler runs before STOP returns")
	assert.Equal(t, PowerRun, b.PowerState())
	clocks := b.Clocks()
	assert.Equal(t, ClockHSI, clocks.SysClk)
	assert.False(t, clocks.PLL)
	assert.False(t, clocks.HSE)
	assert.Equal(t, []StopEntry{{StopConfig: StopConfig{Regulator: RegulatorLowPower}, FlashPowerDown: true}}, b.StopHistory())
}

func TestSimStopUnderDriveNeedsEnable(t *testing.T) {
	b := newBoard(t)
	ctx := testContext(t)
	err := b.PWR().EnterStop(ctx, StopConfig{UnderDrive: true})
	require.ErrorIs(t, err, ErrNotConfigured)

	require.ErrorIs(t, b.PWR().SetUnderDrive(true), ErrNotConfigured, "PWR clock off")
	b.RCC().SetPeripheralClock(PeriphPWR, true)
	require.NoError(t, b.PWR().SetUnderDrive(true))
	assert.True(t, b.UnderDrive())
}

func TestSimStopCancelled(t *testing.T) {
	b := newBoard(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := b.PWR().EnterStop(ctx, StopConfig{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, PowerRun, b.PowerState())
}

func TestSimStandbyWakeupPin(t *testing.T) {
	b := newBoard(t)
	ctx := testContext(t)
	b.RCC().SetPeripheralClock(PeriphGPIOA, true)
	require.NoError(t, b.GPIO().Configure(PA5, PinConfig{Mode: ModeOutput}))
	b.GPIO().Write(PA5, true)
	require.NoError(t, b.PWR().EnableWakeupPin(1))
	require.Error(t, b.PWR().EnableWakeupPin(3))

	errc := make(chan error, 1)
	go func() { errc <- b.PWR().EnterStandby(ctx) }()
	require.NoError(t, b.Await(ctx, func(b *SimBoard) bool { return b.PowerState() == PowerStandby }))

	assert.False(t, b.PinLevel(PA5), "outputs released in STANDBY")
	assert.False(t, b.RCC().PeripheralClock(PeriphGPIOA))

	b.PressButton()
	assert.Equal(t, PowerStandby, b.PowerState(), "button is not a wake source by default")

	b.Wake()
	require.ErrorIs(t, <-errc, ErrStandbyReset)
	assert.True(t, b.PWR().Flag(FlagStandby))
	assert.True(t, b.PWR().Flag(FlagWakeup))
	assert.Equal(t, 1, b.Resets())
	assert.False(t, b.WakeupPinEnabled(1))

	b.PWR().ClearFlag(FlagStandby)
	assert.False(t, b.PWR().Flag(FlagStandby))
}

func TestSimStandbyButtonOption(t *testing.T) {
	b := newBoard(t, WithButtonWakesStandby(true))
	ctx := testContext(t)
	errc := make(chan error, 1)
	go func() { errc <- b.PWR().EnterStandby(ctx) }()
	require.NoError(t, b.Await(ctx, func(b *SimBoard) bool { return b.PowerState() == PowerStandby }))
	b.PressButton()
	require.ErrorIs(t, <-errc, ErrStandbyReset)
	assert.True(t, b.PWR().Flag(FlagStandby))
}

func TestSimPowerOnResetFromStandby(t *testing.T) {
	b := newBoard(t)
	ctx := testContext(t)
	errc := make(chan error, 1)
	go func() { errc <- b.PWR().EnterStandby(ctx) }()
	require.NoError(t, b.Await(ctx, func(b *SimBoard) bool { return b.PowerState() == PowerStandby }))
	b.PowerOnReset()
	require.ErrorIs(t, <-errc, ErrStandbyReset)
	assert.False(t, b.PWR().Flag(FlagStandby), "cold boot")
}

func enableUART(t *testing.T, b *SimBoard) {
	t.Helper()
	b.RCC().SetPeripheralClock(PeriphUSART2, true)
	require.NoError(t, b.UART().Configure(DefaultUARTConfig()))
}

func TestSimUART(t *testing.T) {
	var sink strings.Builder
	b := newBoard(t, WithUARTSink(&sink))

	_, err := b.UART().Write([]byte("x"))
	require.ErrorIs(t, err, ErrNotConfigured)

	enableUART(t, b)
	_, err = b.UART().Write([]byte("hello\r\nwor"))
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, b.UARTLines())
	_, err = b.UART().Write([]byte("ld\r\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"hello", "world"}, b.UARTLines())
	assert.Equal(t, "hello\r\nworld\r\n", sink.String())

	cfg, ok := b.UARTConfigured()
	require.True(t, ok)
	assert.EqualValues(t, 115200, cfg.BaudRate)

	tx := DefaultUARTConfig()
	tx.Direction = DirectionRX
	require.NoError(t, b.UART().Configure(tx))
	_, err = b.UART().Write([]byte("x"))
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func startCAN(t *testing.T, b *SimBoard, mode CANMode, cb CANCallbacks) {
	t.Helper()
	b.RCC().SetPeripheralClock(PeriphCAN1, true)
	cfg := DefaultCANConfig()
	cfg.Mode = mode
	require.NoError(t, b.CAN().Init(cfg))
	require.NoError(t, b.CAN().ConfigFilter(AcceptAll()))
	require.NoError(t, b.CAN().ActivateNotification(NotifyTxMailboxEmpty|NotifyRxFIFO0Pending|NotifyBusOff, cb))
	require.NoError(t, b.CAN().Start())
}

func TestSimCANTransmitCompletes(t *testing.T) {
	b := newBoard(t)
	ctx := testContext(t)
	done := make(chan int, 3)
	startCAN(t, b, CANModeNormal, CANCallbacks{TxMailboxComplete: func(mb int) { done <- mb }})

	mb, err := b.CAN().AddTxMessage(TxHeader{StdID: 0x65D, DLC: 5}, []byte("HELLO"))
	require.NoError(t, err)
	assert.Equal(t, 0, mb)

	select {
	case got := <-done:
		assert.Equal(t, 0, got)
	case <-ctx.Done():
		t.Fatal("no TX completion")
	}
	frames := b.CANTransmitted()
	require.Len(t, frames, 1)
	assert.EqualValues(t, 0x65D, frames[0].ID)
	assert.Equal(t, []byte("HELLO"), frames[0].Data)

	_, err = b.CAN().AddTxMessage(TxHeader{StdID: 0x800, DLC: 1}, []byte{1})
	assert.ErrorIs(t, err, ErrHardware)
	_, err = b.CAN().AddTxMessage(TxHeader{StdID: 1, DLC: 9}, make([]byte, 9))
	assert.ErrorIs(t, err, ErrHardware)
}

func TestSimCANReceive(t *testing.T) {
	b := newBoard(t)
	var got []RxHeader
	var mu sync.Mutex
	startCAN(t, b, CANModeNormal, CANCallbacks{RxFIFO0Pending: func() {
		h, _, err := b.CAN().GetRxMessage(0)
		if err == nil {
			mu.Lock()
			got = append(got, h)
			mu.Unlock()
		}
	}})

	assert.True(t, b.InjectCAN(CANFrame{ID: 0x123, Data: []byte{1, 2}}))
	mu.Lock()
	require.Len(t, got, 1)
	assert.EqualValues(t, 0x123, got[0].ID())
	assert.EqualValues(t, 2, got[0].DLC)
	mu.Unlock()

	assert.False(t, b.InjectCAN(CANFrame{ID: 1, Data: make([]byte, 9)}))
	_, _, err := b.CAN().GetRxMessage(0)
	assert.ErrorIs(t, err, ErrFIFOEmpty)
}

func TestSimCANPendingFIFORaisesUntilEmpty(t *testing.T) {
	b := newBoard(t)
	ctx := testContext(t)
	b.RCC().SetPeripheralClock(PeriphCAN1, true)
	require.NoError(t, b.CAN().Init(DefaultCANConfig()))
	require.NoError(t, b.CAN().ConfigFilter(AcceptAll()))
	require.NoError(t, b.CAN().Start())
	require.True(t, b.InjectCAN(CANFrame{ID: 1, Data: []byte("A")}))
	require.True(t, b.InjectCAN(CANFrame{ID: 2, Data: []byte("B")}))

	rx := make(chan string, CANFIFODepth)
	cb := CANCallbacks{RxFIFO0Pending: func() {
		h, data, err := b.CAN().GetRxMessage(0)
		if err == nil {
			rx <- string(data[:h.DLC])
		}
	}}
	require.NoError(t, b.CAN().ActivateNotification(NotifyRxFIFO0Pending, cb))

	var got []string
	for len(got) < 2 {
		select {
		case p := <-rx:
			got = append(got, p)
		case <-ctx.Done():
			t.Fatalf("received %q, FIFO0 still holds %d", got, b.CANPending(0))
		}
	}
	assert.Equal(t, []string{"A", "B"}, got)
	assert.Equal(t, 0, b.CANPending(0))
}

func TestSimCANUnreadFIFOStopsRaising(t *testing.T) {
	b := newBoard(t)
	var calls atomic.Int32
	startCAN(t, b, CANModeNormal, CANCallbacks{RxFIFO0Pending: func() { calls.Add(1) }})
	assert.True(t, b.InjectCAN(CANFrame{ID: 1, Data: []byte{1}}))
	assert.EqualValues(t, 1, calls.Load())
	assert.Equal(t, 1, b.CANPending(0))
}

func TestSimCANFIFOOverrun(t *testing.T) {
	b := newBoard(t)
	startCAN(t, b, CANModeNormal, CANCallbacks{})
	for i := 0; i < CANFIFODepth; i++ {
		assert.True(t, b.InjectCAN(CANFrame{ID: uint32(i), Data: []byte{byte(i)}}))
	}
	assert.False(t, b.InjectCAN(CANFrame{ID: 9}))
	assert.Equal(t, CANFIFODepth, b.CANPending(0))
}

func TestSimCANIgnoresFramesBeforeStart(t *testing.T) {
	b := newBoard(t)
	assert.False(t, b.InjectCAN(CANFrame{ID: 1}))
	assert.False(t, b.CANStarted())
}

func TestSimCANLoopback(t *testing.T) {
	b := newBoard(t)
	ctx := testContext(t)
	rx := make(chan []byte, 1)
	startCAN(t, b, CANModeLoopback, CANCallbacks{RxFIFO0Pending: func() {
		h, data, err := b.CAN().GetRxMessage(0)
		if err == nil {
			rx <- append([]byte(nil), data[:h.DLC]...)
		}
	}})
	_, err := b.CAN().AddTxMessage(TxHeader{StdID: 0x65D, DLC: 5}, []byte("HELLO"))
	require.NoError(t, err)
	select {
	case data := <-rx:
		assert.Equal(t, []byte("HELLO"), data)
	case <-ctx.Done():
		t.Fatal("loopback frame not received")
	}
}

func TestSimCANBusError(t *testing.T) {
	b := newBoard(t)
	var code atomic.Uint32
	startCAN(t, b, CANModeNormal, CANCallbacks{Error: func(c uint32) { code.Store(c) }})
	b.BusError(CANErrorBusOff)
	assert.Equal(t, CANErrorBusOff, code.Load())
}

func TestSimTimer(t *testing.T) {
	b := newBoard(t)
	require.ErrorIs(t, b.PWM().Init(TimerConfig{Period: 9999, Prescaler: 4}), ErrNotConfigured)
	b.RCC().SetPeripheralClock(PeriphTIM2, true)
	require.NoError(t, b.PWM().Init(TimerConfig{Period: 9999, Prescaler: 4}))
	require.ErrorIs(t, b.PWM().Start(Channel1), ErrNotConfigured)
	require.NoError(t, b.PWM().ConfigChannel(Channel1, OCConfig{Mode: OCModePWM1, ActiveHigh: true}))
	require.NoError(t, b.PWM().Start(Channel1))

	b.PWM().SetCompare(Channel1, 5000)
	assert.EqualValues(t, 5000, b.PWM().Compare(Channel1))
	assert.EqualValues(t, 9999, b.PWM().Period())
	assert.InDelta(t, 0.5, b.Duty(Channel1), 1e-9)
	assert.Equal(t, []uint32{5000}, b.CompareHistory(Channel1))
}

func TestSimRTCCalendar(t *testing.T) {
	b := newBoard(t)
	rtc := b.RTC()
	require.ErrorIs(t, rtc.SetTime(RTCTime{Hours: 1}), ErrNotConfigured)
	require.NoError(t, rtc.Init(DefaultRTCConfig()))

	require.NoError(t, rtc.SetTime(RTCTime{Hours: 11, Minutes: 59, Seconds: 58, Meridiem: PM}))
	require.NoError(t, rtc.SetDate(RTCDate{Year: 18, Month: 6, Day: 12, Weekday: Tuesday}))

	tm, err := rtc.Time()
	require.NoError(t, err)
	assert.Equal(t, RTCTime{Hours: 11, Minutes: 59, Seconds: 58, Meridiem: PM}, tm)

	b.Advance(3 * time.Second)
	tm, err = rtc.Time()
	require.NoError(t, err)
	assert.Equal(t, RTCTime{Hours: 12, Minutes: 0, Seconds: 1, Meridiem: AM}, tm)
	d, err := rtc.Date()
	require.NoError(t, err)
	assert.Equal(t, RTCDate{Year: 18, Month: 6, Day: 13, Weekday: Wednesday}, d)

	assert.ErrorIs(t, rtc.SetTime(RTCTime{Hours: 13}), ErrHardware)
	assert.ErrorIs(t, rtc.SetDate(RTCDate{Year: 18, Month: 2, Day: 30, Weekday: Monday}), ErrHardware)
	assert.ErrorIs(t, rtc.SetDate(RTCDate{Year: 18, Month: 2, Day: 3, Weekday: 0}), ErrHardware)
}

func TestSimRTCSurvivesStandby(t *testing.T) {
	b := newBoard(t)
	ctx := testContext(t)
	require.NoError(t, b.RTC().Init(DefaultRTCConfig()))
	require.NoError(t, b.RTC().SetTime(RTCTime{Hours: 12, Minutes: 11, Seconds: 10, Meridiem: PM}))
	require.NoError(t, b.PWR().EnableWakeupPin(1))

	errc := make(chan error, 1)
	go func() { errc <- b.PWR().EnterStandby(ctx) }()
	require.NoError(t, b.Await(ctx, func(b *SimBoard) bool { return b.PowerState() == PowerStandby }))
	b.Advance(5 * time.Second)
	b.Wake()
	require.ErrorIs(t, <-errc, ErrStandbyReset)

	tm, err := b.RTC().Time()
	require.NoError(t, err)
	assert.Equal(t, RTCTime{Hours: 12, Minutes: 11, Seconds: 15, Meridiem: PM}, tm)
}

func TestSimTraceEvents(t *testing.T) {
	var mu sync.Mutex
	var events []trace.Event
	logger := trace.LoggerFunc(func(ev trace.Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})
	b := newBoard(t, WithTraceLogger(logger), WithSession("session-1"))
	b.RCC().SetPeripheralClock(PeriphGPIOA, true)
	require.NoError(t, b.GPIO().Configure(PA5, PinConfig{Mode: ModeOutput}))
	b.GPIO().Write(PA5, true)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 2)
	assert.Equal(t, trace.KindPinConfig, events[0].Kind)
	assert.Equal(t, trace.KindPinWrite, events[1].Kind)
	assert.Equal(t, "PA5", events[1].Pin)
	assert.EqualValues(t, 1, events[1].Value)
	assert.Equal(t, "session-1", events[1].Session)
}

func TestSimVirtualClock(t *testing.T) {
	b := newBoard(t)
	start := b.Now()
	b.Delay(250 * time.Millisecond)
	assert.Equal(t, 250*time.Millisecond, b.Now().Sub(start))
}

func TestSimAwaitCancelled(t *testing.T) {
	b := newBoard(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := b.Await(ctx, func(*SimBoard) bool { return false })
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestSimCANPendingFrameRaisesOnEnable(t *testing.T) {
	b := newBoard(t)
	ctx := testContext(t)
	b.RCC().SetPeripheralClock(PeriphCAN1, true)
	require.NoError(t, b.CAN().Init(DefaultCANConfig()))
	require.NoError(t, b.CAN().ConfigFilter(AcceptAll()))
	require.NoError(t, b.CAN().Start())
	require.True(t, b.InjectCAN(CANFrame{ID: 0x42, Data: []byte("hi")}))

	got := make(chan uint32, 1)
	cb := CANCallbacks{RxFIFO0Pending: func() {
		h, _, err := b.CAN().GetRxMessage(0)
		if err == nil {
			got <- h.ID()
		}
	}}
	require.NoError(t, b.CAN().ActivateNotification(NotifyRxFIFO0Pending, cb))
	select {
	case id := <-got:
		assert.EqualValues(t, 0x42, id)
	case <-ctx.Done():
		t.Fatal("pending frame not signalled")
	}
}
