package hal

import "io"

// Parity selects the UART parity bit.
type Parity uint8

const (
	ParityNone Parity = iota
	ParityEven
	ParityOdd
)

// Direction enables transmitter, receiver or both.
type Direction uint8

const (
	DirectionTX Direction = 1 << iota
	DirectionRX

	DirectionTXRX = DirectionTX | DirectionRX
)

// UARTConfig is the USART init structure.
type UARTConfig struct {
	BaudRate    uint32
	WordLength  uint8
	StopBits    uint8
	Parity      Parity
	FlowControl bool
	Direction   Direction
}

// DefaultUARTConfig returns the debug link settings: 115200 8N1, no flow
// control.
func DefaultUARTConfig() UARTConfig {
	return UARTConfig{
		BaudRate:   115200,
		WordLength: 8,
		StopBits:   1,
		Parity:     ParityNone,
		Direction:  DirectionTXRX,
	}
}

// UART is the serial debug link. Write blocks until all bytes have been
// shifted out.
type UART interface {
	Configure(cfg UARTConfig) error
	io.Writer
}
