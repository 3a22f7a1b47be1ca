package ui

import (
	"strings"
	"sync"
	"time"

	"github.com/OpenTraceLab/f4demos/pkg/hal"
	"github.com/OpenTraceLab/f4demos/pkg/trace"
)

// StateSnapshot captures a copy of the board view for rendering without
// holding locks while the frame is laid out.
type StateSnapshot struct {
	Demo    string
	Session string

	LED     bool
	Compare uint32
	Period  uint32
	Clock   string
	HCLK    uint64
	Power   string
	Resets  int

	CANTx  int
	CANRx  int
	Events int

	UART []string

	Status    string
	LastError error
	Done      bool

	LastUpdated time.Time
}

// Duty returns the PWM duty cycle in [0, 1].
func (s StateSnapshot) Duty() float64 {
	if s.Period == 0 {
		return 0
	}
	d := float64(s.Compare) / float64(s.Period+1)
	if d > 1 {
		d = 1
	}
	return d
}

// BoardState tracks what the watch view shows. It is updated from trace
// events delivered by the simulator, from both foreground and interrupt
// contexts.
type BoardState struct {
	mu sync.RWMutex

	demo    string
	session string

	led     bool
	compare uint32
	period  uint32
	clock   string
	hclk    uint64
	power   string
	resets  int

	canTx  int
	canRx  int
	events int

	uart      []string
	partial   string
	uartLimit int

	status    string
	lastError error
	done      bool

	lastUpdated time.Time
}

// NewState returns a BoardState for a board fresh out of reset.
func NewState(demo string) *BoardState {
	return &BoardState{
		demo:        demo,
		clock:       hal.ClockHSI.String(),
		hclk:        hal.HSIFrequency,
		power:       hal.PowerRun.String(),
		uartLimit:   200,
		status:      "Running",
		lastUpdated: time.Now(),
	}
}

// Logger returns a trace logger feeding this state.
func (s *BoardState) Logger() trace.Logger {
	return trace.LoggerFunc(s.Apply)
}

// Apply folds one board event into the state.
func (s *BoardState) Apply(ev trace.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events++
	if ev.Session != "" {
		s.session = ev.Session
	}
	switch ev.Kind {
	case trace.KindPinWrite:
		if ev.Pin == hal.UserLED.String() {
			s.led = ev.Value != 0
		}
	case trace.KindCompare:
		s.compare = uint32(ev.Value)
	case trace.KindClockSwitch:
		s.clock = strings.TrimPrefix(ev.Detail, "SYSCLK=")
		s.hclk = ev.Value
	case trace.KindPowerEnter:
		s.power = strings.Fields(ev.Detail + " ")[0]
		s.led = false
	case trace.KindPowerExit:
		s.power = hal.PowerRun.String()
		if ev.Detail == "STOP" {
			s.clock = hal.ClockHSI.String()
			s.hclk = ev.Value
		}
	case trace.KindReset:
		s.resets++
		s.clock = hal.ClockHSI.String()
		s.hclk = hal.HSIFrequency
		s.compare = 0
		s.led = false
	case trace.KindUARTTx:
		s.appendUART(string(ev.Data))
	case trace.KindCANTx:
		s.canTx++
	case trace.KindCANRx:
		s.canRx++
	case trace.KindFault:
		s.status = "Halted: " + ev.Detail
	}
	s.lastUpdated = time.Now()
}

// appendUART splits transmitted bytes into CRLF lines. Callers hold s.mu.
func (s *BoardState) appendUART(data string) {
	text := s.partial + data
	lines := strings.Split(text, "\r\n")
	s.partial = lines[len(lines)-1]
	s.uart = append(s.uart, lines[:len(lines)-1]...)
	if s.uartLimit > 0 && len(s.uart) > s.uartLimit {
		offset := len(s.uart) - s.uartLimit
		s.uart = append([]string(nil), s.uart[offset:]...)
	}
}

// SetPeriod records the PWM timer period used to scale the duty bar.
func (s *BoardState) SetPeriod(period uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.period = period
	s.lastUpdated = time.Now()
}

// SetStatus updates the user-facing status message.
func (s *BoardState) SetStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.lastUpdated = time.Now()
}

// Finish records that the demo returned.
func (s *BoardState) Finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = true
	s.lastError = err
	if err != nil {
		s.status = "Stopped"
	} else {
		s.status = "Finished"
	}
	s.lastUpdated = time.Now()
}

// Snapshot returns a copy of the mutable state for rendering.
func (s *BoardState) Snapshot() StateSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uart := make([]string, len(s.uart))
	copy(uart, s.uart)

	return StateSnapshot{
		Demo:        s.demo,
		Session:     s.session,
		LED:         s.led,
		Compare:     s.compare,
		Period:      s.period,
		Clock:       s.clock,
		HCLK:        s.hclk,
		Power:       s.power,
		Resets:      s.resets,
		CANTx:       s.canTx,
		CANRx:       s.canRx,
		Events:      s.events,
		UART:        uart,
		Status:      s.status,
		LastError:   s.lastError,
		Done:        s.done,
		LastUpdated: s.lastUpdated,
	}
}
