package hal

import (
	"fmt"
	"strconv"
	"strings"
)

// Port identifies a GPIO port by its letter.
type Port byte

// Ports lists every GPIO port of the STM32F446 in order.
var Ports = []Port{'A', 'B', 'C', 'D', 'E', 'F', 'G', 'H'}

// Pin identifies a single GPIO line.
type Pin struct {
	Port Port
	Num  uint8
}

// Pins used by the NUCLEO-F446RE demos.
var (
	PA0  = Pin{Port: 'A', Num: 0}  // WKUP1
	PA2  = Pin{Port: 'A', Num: 2}  // USART2 TX
	PA3  = Pin{Port: 'A', Num: 3}  // USART2 RX
	PA5  = Pin{Port: 'A', Num: 5}  // LD2, TIM2 CH1
	PA11 = Pin{Port: 'A', Num: 11} // CAN1 RX
	PA12 = Pin{Port: 'A', Num: 12} // CAN1 TX
	PC13 = Pin{Port: 'C', Num: 13} // B1 user button

	UserLED    = PA5
	UserButton = PC13
)

func (p Pin) String() string {
	return fmt.Sprintf("P%c%d", p.Port, p.Num)
}

// Valid reports whether the pin exists on the device.
func (p Pin) Valid() bool {
	return p.Port >= 'A' && p.Port <= 'H' && p.Num < 16
}

// ParsePin parses names such as "PA5" or "pc13".
func ParsePin(s string) (Pin, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	if len(name) < 3 || name[0] != 'P' {
		return Pin{}, fmt.Errorf("hal: invalid pin name %q", s)
	}
	num, err := strconv.ParseUint(name[2:], 10, 8)
	if err != nil {
		return Pin{}, fmt.Errorf("hal: invalid pin number in %q", s)
	}
	p := Pin{Port: Port(name[1]), Num: uint8(num)}
	if !p.Valid() {
		return Pin{}, fmt.Errorf("hal: pin %q does not exist", s)
	}
	return p, nil
}

// PinMode selects the pin function.
type PinMode uint8

const (
	ModeInput PinMode = iota
	ModeOutput
	ModeAlternate
	ModeAnalog
)

var pinModeNames = map[PinMode]string{
	ModeInput:     "input",
	ModeOutput:    "output",
	ModeAlternate: "alternate",
	ModeAnalog:    "analog",
}

func (m PinMode) String() string {
	if name, ok := pinModeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("PinMode(%d)", m)
}

// Pull selects the internal pull resistor.
type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

// Speed is the output slew rate.
type Speed uint8

const (
	SpeedLow Speed = iota
	SpeedMedium
	SpeedFast
	SpeedHigh
)

// Alternate function numbers used by the demos.
const (
	AF1TIM2   uint8 = 1
	AF7USART2 uint8 = 7
	AF9CAN1   uint8 = 9
)

// PinConfig is the GPIO init structure.
type PinConfig struct {
	Mode      PinMode
	Pull      Pull
	Speed     Speed
	OpenDrain bool
	Alternate uint8
}

// Edge selects which transitions raise an external interrupt.
type Edge uint8

const (
	EdgeRising Edge = iota + 1
	EdgeFalling
	EdgeBoth
)

func (e Edge) String() string {
	switch e {
	case EdgeRising:
		return "rising"
	case EdgeFalling:
		return "falling"
	case EdgeBoth:
		return "both"
	default:
		return fmt.Sprintf("Edge(%d)", e)
	}
}

// Matches reports whether a transition to level high fires on this edge.
func (e Edge) Matches(high bool) bool {
	switch e {
	case EdgeRising:
		return high
	case EdgeFalling:
		return !high
	case EdgeBoth:
		return true
	}
	return false
}

// InterruptHandler runs in interrupt context when an armed EXTI line fires.
type InterruptHandler func(pin Pin)

// GPIO covers the GPIO ports and the EXTI controller.
type GPIO interface {
	// Configure applies cfg to pin. The port clock must be enabled.
	Configure(pin Pin, cfg PinConfig) error
	// Write drives an output pin.
	Write(pin Pin, high bool)
	// Read samples the pin level.
	Read(pin Pin) bool
	// Toggle inverts an output pin.
	Toggle(pin Pin)
	// SetInterrupt routes the pin to its EXTI line, selects the edge and
	// enables the line in the NVIC. A nil handler disarms the line.
	SetInterrupt(pin Pin, edge Edge, handler InterruptHandler) error
	// ClearPending clears the EXTI pending bit for the pin's line.
	ClearPending(pin Pin)
}
