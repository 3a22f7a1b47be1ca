package hal

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/OpenTraceLab/f4demos/pkg/trace"
)

// Op names a simulated peripheral operation for fault injection.
type Op string

const (
	OpGPIOConfigure Op = "gpio.configure"
	OpGPIOInterrupt Op = "gpio.interrupt"
	OpOscillator    Op = "rcc.oscillator"
	OpClockConfig   Op = "rcc.clock"
	OpSysTick       Op = "rcc.systick"
	OpUnderDrive    Op = "pwr.underdrive"
	OpWakeupPin     Op = "pwr.wakeup"
	OpUARTConfigure Op = "uart.configure"
	OpUARTWrite     Op = "uart.write"
	OpCANInit       Op = "can.init"
	OpCANFilter     Op = "can.filter"
	OpCANNotify     Op = "can.notify"
	OpCANStart      Op = "can.start"
	OpCANTransmit   Op = "can.tx"
	OpCANReceive    Op = "can.rx"
	OpTimerInit     Op = "tim.init"
	OpTimerChannel  Op = "tim.channel"
	OpTimerStart    Op = "tim.start"
	OpRTCInit       Op = "rtc.init"
	OpRTCSetTime    Op = "rtc.settime"
	OpRTCSetDate    Op = "rtc.setdate"
	OpRTCRead       Op = "rtc.read"
)

// historyLimit bounds every recorded history slice.
const historyLimit = 4096

// SimOption customises a SimBoard.
type SimOption func(*SimBoard)

// WithTraceLogger sends every peripheral event to l.
func WithTraceLogger(l trace.Logger) SimOption {
	return func(b *SimBoard) {
		if l != nil {
			b.log = l
		}
	}
}

// WithUARTSink mirrors everything the firmware prints to w.
func WithUARTSink(w io.Writer) SimOption {
	return func(b *SimBoard) { b.sink = w }
}

// WithRealtime makes Delay sleep on the host clock. By default the board
// runs on a virtual clock advanced only by Delay and Advance.
func WithRealtime(on bool) SimOption {
	return func(b *SimBoard) { b.realtime = on }
}

// WithButtonWakesStandby lets the user button end STANDBY even when no
// wakeup pin is enabled. The NUCLEO routes B1 to PC13, which is WKUP2 on
// the F446.
func WithButtonWakesStandby(on bool) SimOption {
	return func(b *SimBoard) { b.buttonWakesStandby = on }
}

// WithSession overrides the generated trace session identifier.
func WithSession(id string) SimOption {
	return func(b *SimBoard) {
		if id != "" {
			b.session = id
		}
	}
}

// SimBoard is an in-memory STM32F446 board. It implements Board and exposes
// inspection accessors and stimulus methods for tests and tooling.
//
// Interrupt handlers registered by the firmware run one at a time on an
// internal goroutine, never while the board lock is held, so they may call
// back into any peripheral. Stimulus methods must not be called from an
// interrupt handler.
type SimBoard struct {
	mu      sync.Mutex
	changed chan struct{}
	dirty   bool
	pending []trace.Event

	sinkMu sync.Mutex
	sink   io.Writer

	log                trace.Logger
	session            string
	realtime           bool
	buttonWakesStandby bool
	epoch              time.Time
	elapsed            time.Duration

	irqs chan irqJob
	quit chan struct{}
	done chan struct{}
	once sync.Once

	failures map[Op]bool

	// Volatile state, reset on STANDBY exit.
	clocks     map[Peripheral]bool
	pins       map[Pin]*pinState
	exti       [16]extiLine
	rcc        rccState
	uart       uartState
	can        canState
	tim        timState
	irqEnabled bool
	underDrive bool
	flashPD    bool
	wakeupPins [3]bool

	// Backup domain and PWR status, kept across STANDBY.
	flags map[PowerFlag]bool
	rtc   rtcState
	power PowerState

	wakeSeq uint64
	porSeq  uint64
	resets  int

	// Records seen by an external observer, kept across resets.
	uartOut    []byte
	canTx      []CANFrame
	compares   map[Channel][]uint32
	pinHistory map[Pin][]bool
	stops      []StopEntry
}

// irqJob is one interrupt dispatch. fn is the firmware handler and is
// skipped while interrupts are masked; after always runs.
type irqJob struct {
	fn    func()
	after func()
	done  chan struct{}
}

// NewSimBoard powers up a simulated board and starts its interrupt
// dispatcher. Call Close to stop it.
func NewSimBoard(opts ...SimOption) *SimBoard {
	b := &SimBoard{
		changed:    make(chan struct{}),
		log:        trace.NoopLogger{},
		session:    trace.NewSession(),
		epoch:      time.Now(),
		irqs:       make(chan irqJob, 64),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		failures:   make(map[Op]bool),
		flags:      make(map[PowerFlag]bool),
		compares:   make(map[Channel][]uint32),
		pinHistory: make(map[Pin][]bool),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.resetVolatile()
	b.rtc.reset(b.now())
	go b.dispatch()
	return b
}

// Close stops the interrupt dispatcher. Pending interrupts are dropped.
func (b *SimBoard) Close() error {
	b.once.Do(func() {
		close(b.quit)
		<-b.done
	})
	return nil
}

// Session returns the trace session identifier.
func (b *SimBoard) Session() string {
	return b.session
}

func (b *SimBoard) GPIO() GPIO { return simGPIO{b} }
func (b *SimBoard) RCC() RCC { return simRCC{b} }
func (b *SimBoard) PWR() PWR { return simPWR{b} }
func (b *SimBoard) UART() UART { return simUART{b} }
func (b *SimBoard) CAN() CAN { return simCAN{b} }
func (b *SimBoard) PWM() PWMTimer { return simTimer{b} }
func (b *SimBoard) RTC() RTC { return simRTC{b} }

// Delay advances the board clock by d.
func (b *SimBoard) Delay(d time.Duration) {
	if d <= 0 {
		return
	}
	if b.realtime {
		time.Sleep(d)
		return
	}
	b.Advance(d)
}

// Advance moves the virtual clock forward. It has no effect in realtime
// mode.
func (b *SimBoard) Advance(d time.Duration) {
	b.mu.Lock()
	defer b.unlock()
	if b.realtime || d <= 0 {
		return
	}
	b.elapsed += d
	b.dirty = true
}

// Now returns the board time.
func (b *SimBoard) Now() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.now()
}

// Realtime reports whether delays take host time.
func (b *SimBoard) Realtime() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.realtime
}

func (b *SimBoard) now() time.Time {
	if b.realtime {
		return time.Now()
	}
	return b.epoch.Add(b.elapsed)
}

// DisableInterrupts masks all interrupts until the next reset.
func (b *SimBoard) DisableInterrupts() {
	b.mu.Lock()
	defer b.unlock()
	b.irqEnabled = false
	b.record(trace.Event{Source: trace.SourceCore, Kind: trace.KindFault, Detail: "interrupts disabled"})
}

// InterruptsEnabled reports whether interrupts are unmasked.
func (b *SimBoard) InterruptsEnabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.irqEnabled
}

// FailOn makes every later call of op fail with ErrHardware.
func (b *SimBoard) FailOn(op Op) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[op] = true
}

// ClearFailures removes all injected failures.
func (b *SimBoard) ClearFailures() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = make(map[Op]bool)
}

func (b *SimBoard) fail(op Op) error {
	if b.failures[op] {
		return fmt.Errorf("%w: %s", ErrHardware, op)
	}
	return nil
}

// Await blocks until cond holds or ctx is done. cond runs without the board
// lock held and may use any accessor.
func (b *SimBoard) Await(ctx context.Context, cond func(*SimBoard) bool) error {
	for {
		b.mu.Lock()
		ch := b.changed
		b.mu.Unlock()
		if cond(b) {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Resets reports how many times the core restarted from the reset vector.
func (b *SimBoard) Resets() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.resets
}

// PowerState reports the current core power state.
func (b *SimBoard) PowerState() PowerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.power
}

// record queues an event for the trace logger. Callers hold b.mu; events are
// delivered by unlock.
func (b *SimBoard) record(ev trace.Event) {
	ev.Timestamp = b.now()
	ev.Session = b.session
	b.pending = append(b.pending, ev)
	b.dirty = true
}

// unlock releases b.mu, wakes waiters and flushes queued events.
func (b *SimBoard) unlock() {
	evs := b.pending
	b.pending = nil
	if b.dirty {
		close(b.changed)
		b.changed = make(chan struct{})
		b.dirty = false
	}
	b.mu.Unlock()
	for _, ev := range evs {
		b.log.Log(ev)
	}
}

func (b *SimBoard) dispatch() {
	defer close(b.done)
	for {
		select {
		case job := <-b.irqs:
			if job.fn != nil && b.InterruptsEnabled() {
				job.fn()
			}
			if job.after != nil {
				job.after()
			}
			if job.done != nil {
				close(job.done)
			}
		case <-b.quit:
			return
		}
	}
}

// interrupt runs fn in interrupt context followed by after, and waits for
// both to finish.
func (b *SimBoard) interrupt(fn, after func()) {
	job := irqJob{fn: fn, after: after, done: make(chan struct{})}
	select {
	case b.irqs <- job:
	case <-b.quit:
		return
	}
	select {
	case <-job.done:
	case <-b.quit:
	}
}

// pend queues fn on the interrupt dispatcher without waiting. fn runs even
// while interrupts are masked and must check irqEnabled before calling
// firmware handlers.
func (b *SimBoard) pend(fn func()) {
	select {
	case b.irqs <- irqJob{after: fn}:
	case <-b.quit:
	}
}

func appendBounded[T any](s []T, v T) []T {
	s = append(s, v)
	if len(s) > historyLimit {
		s = s[len(s)-historyLimit:]
	}
	return s
}

var _ Board = (*SimBoard)(nil)
