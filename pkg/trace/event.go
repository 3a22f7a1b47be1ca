package trace

import (
	"fmt"
	"time"
)

// Event is a single peripheral action captured from a board.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred on the board's clock.
	Timestamp time.Time `cbor:"1,keyasint"`

	// Session identifies the board session (UUID) that produced the event.
	Session string `cbor:"2,keyasint"`

	// Source is the peripheral block that produced the event.
	Source Source `cbor:"3,keyasint"`

	// Kind classifies the event.
	Kind Kind `cbor:"4,keyasint"`

	// Pin names the GPIO pin involved, if any (e.g. "PA5").
	Pin string `cbor:"5,keyasint,omitempty"`

	// Value carries a numeric payload: pin level, compare value, CAN ID,
	// mailbox number, clock frequency.
	Value uint64 `cbor:"6,keyasint,omitempty"`

	// Data carries raw bytes: UART output or a CAN payload.
	Data []byte `cbor:"7,keyasint,omitempty"`

	// Detail is a short human readable annotation.
	Detail string `cbor:"8,keyasint,omitempty"`
}

// Source identifies the peripheral block that produced an event.
type Source uint8

const (
	SourceCore Source = iota
	SourceGPIO
	SourceRCC
	SourcePWR
	SourceUART
	SourceCAN
	SourceTIM
	SourceRTC
)

var sourceNames = map[Source]string{
	SourceCore: "CORE",
	SourceGPIO: "GPIO",
	SourceRCC:  "RCC",
	SourcePWR:  "PWR",
	SourceUART: "UART",
	SourceCAN:  "CAN",
	SourceTIM:  "TIM",
	SourceRTC:  "RTC",
}

func (s Source) String() string {
	if name, ok := sourceNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Source(%d)", s)
}

// Kind classifies an event.
type Kind uint8

const (
	KindReset Kind = iota
	KindPinConfig
	KindPinWrite
	KindInterrupt
	KindClockConfig
	KindClockSwitch
	KindPowerEnter
	KindPowerExit
	KindUARTTx
	KindCANTx
	KindCANTxComplete
	KindCANRx
	KindCANError
	KindCompare
	KindRTCSet
	KindFault
)

var kindNames = map[Kind]string{
	KindReset:         "reset",
	KindPinConfig:     "pin-config",
	KindPinWrite:      "pin-write",
	KindInterrupt:     "interrupt",
	KindClockConfig:   "clock-config",
	KindClockSwitch:   "clock-switch",
	KindPowerEnter:    "power-enter",
	KindPowerExit:     "power-exit",
	KindUARTTx:        "uart-tx",
	KindCANTx:         "can-tx",
	KindCANTxComplete: "can-tx-complete",
	KindCANRx:         "can-rx",
	KindCANError:      "can-error",
	KindCompare:       "compare",
	KindRTCSet:        "rtc-set",
	KindFault:         "fault",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// String renders the event as a single line for terminal output.
func (e Event) String() string {
	line := fmt.Sprintf("%s %-4s %-15s", e.Timestamp.Format("15:04:05.000000"), e.Source, e.Kind)
	if e.Pin != "" {
		line += " pin=" + e.Pin
	}
	if e.Value != 0 {
		line += fmt.Sprintf(" value=%d", e.Value)
	}
	if len(e.Data) > 0 {
		line += fmt.Sprintf(" data=%q", e.Data)
	}
	if e.Detail != "" {
		line += " " + e.Detail
	}
	return line
}
