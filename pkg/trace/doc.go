// Package trace records peripheral-level events from a running board.
//
// Every action the simulated board observes (a GPIO write, bytes leaving the
// UART, a CAN frame, a clock switch, a power-mode entry or exit) becomes an
// Event. Events are delivered to a Logger; implementations exist for
// discarding (NoopLogger), persisting as a CBOR stream (FileLogger),
// forwarding to zap (ZapAdapter) and fanning out (MultiLogger).
//
// A trace file is a concatenation of CBOR-encoded events and can be read back
// with NewReader.
package trace
