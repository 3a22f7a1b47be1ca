package hal

import (
	"fmt"
	"strings"

	"github.com/OpenTraceLab/f4demos/pkg/trace"
)

type uartState struct {
	configured bool
	cfg        UARTConfig
}

type simUART struct{ b *SimBoard }

func (u simUART) Configure(cfg UARTConfig) error {
	b := u.b
	b.mu.Lock()
	defer b.unlock()
	if err := b.fail(OpUARTConfigure); err != nil {
		return err
	}
	if !b.clocks[PeriphUSART2] {
		return fmt.Errorf("%w: USART2 clock disabled", ErrNotConfigured)
	}
	switch {
	case cfg.BaudRate == 0:
		return fmt.Errorf("%w: baud rate 0", ErrHardware)
	case cfg.WordLength != 8 && cfg.WordLength != 9:
		return fmt.Errorf("%w: word length %d", ErrHardware, cfg.WordLength)
	case cfg.StopBits != 1 && cfg.StopBits != 2:
		return fmt.Errorf("%w: stop bits %d", ErrHardware, cfg.StopBits)
	case cfg.Direction&DirectionTXRX == 0:
		return fmt.Errorf("%w: no direction enabled", ErrHardware)
	}
	b.uart = uartState{configured: true, cfg: cfg}
	return nil
}

// Write transmits p. Output is recorded in the board transcript and copied
// to the UART sink.
func (u simUART) Write(p []byte) (int, error) {
	b := u.b
	b.mu.Lock()
	if err := b.fail(OpUARTWrite); err != nil {
		b.unlock()
		return 0, err
	}
	if !b.uart.configured || b.uart.cfg.Direction&DirectionTX == 0 || !b.clocks[PeriphUSART2] {
		b.unlock()
		return 0, fmt.Errorf("%w: USART2 transmitter", ErrNotConfigured)
	}
	b.uartOut = append(b.uartOut, p...)
	b.record(trace.Event{Source: trace.SourceUART, Kind: trace.KindUARTTx, Data: append([]byte(nil), p...)})
	// Hold sinkMu across the unlock so concurrent writers reach the sink in
	// transcript order.
	b.sinkMu.Lock()
	b.unlock()
	defer b.sinkMu.Unlock()
	if b.sink != nil {
		// A host side consumer going away does not stall the firmware.
		_, _ = b.sink.Write(p)
	}
	return len(p), nil
}

// UARTOutput returns everything transmitted on the debug UART since power
// on.
func (b *SimBoard) UARTOutput() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.uartOut)
}

// UARTLines returns the complete CRLF terminated lines transmitted so far,
// without terminators.
func (b *SimBoard) UARTLines() []string {
	out := b.UARTOutput()
	end := strings.LastIndex(out, "\r\n")
	if end < 0 {
		return nil
	}
	return strings.Split(out[:end], "\r\n")
}

// UARTConfigured reports whether the UART is initialised and its settings.
func (b *SimBoard) UARTConfigured() (UARTConfig, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.uart.cfg, b.uart.configured
}
