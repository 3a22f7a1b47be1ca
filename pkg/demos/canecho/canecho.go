// Package canecho sends one greeting frame on CAN1 and reports every
// transmit completion, received frame and bus error on the debug UART.
package canecho

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/OpenTraceLab/f4demos/pkg/config"
	"github.com/OpenTraceLab/f4demos/pkg/fault"
	"github.com/OpenTraceLab/f4demos/pkg/firmware"
	"github.com/OpenTraceLab/f4demos/pkg/hal"
)

// Name is the registry name of the demo.
const Name = "canecho"

func init() {
	firmware.Register(Name, New)
}

// Demo is the CAN echo firmware.
type Demo struct {
	id      uint32
	payload []byte
	uart    hal.UARTConfig
	can     hal.CANConfig
}

// New builds the demo from cfg.
func New(cfg *config.Config) (firmware.Demo, error) {
	if len(cfg.CAN.Payload) > hal.CANMaxDLC {
		return nil, fmt.Errorf("canecho: payload %q longer than %d bytes", cfg.CAN.Payload, hal.CANMaxDLC)
	}
	can := hal.DefaultCANConfig()
	can.Prescaler = cfg.CAN.Prescaler
	if cfg.CAN.Loopback {
		can.Mode = hal.CANModeLoopback
	}
	return &Demo{
		id:      cfg.CAN.ID,
		payload: []byte(cfg.CAN.Payload),
		uart:    cfg.UARTInit(),
		can:     can,
	}, nil
}

func (d *Demo) Name() string { return Name }

// Main initialises USART2 and CAN1, sends the greeting and then idles while
// the CAN interrupts do the work.
func (d *Demo) Main(ctx context.Context, board hal.Board) error {
	if err := initPins(board); err != nil {
		return fault.At(err)
	}
	uart := board.UART()
	if err := uart.Configure(d.uart); err != nil {
		return fault.At(err)
	}

	can := board.CAN()
	if err := can.Init(d.can); err != nil {
		return fault.At(err)
	}
	if err := can.ConfigFilter(hal.AcceptAll()); err != nil {
		return fault.At(err)
	}

	a := &app{uart: uart, can: can, faults: make(chan error, 1)}
	callbacks := hal.CANCallbacks{
		TxMailboxComplete: a.onTxComplete,
		RxFIFO0Pending:    a.onRxPending,
		Error:             a.onError,
	}
	if err := can.ActivateNotification(hal.NotifyTxMailboxEmpty|hal.NotifyBusOff, callbacks); err != nil {
		return fault.At(err)
	}
	if err := can.Start(); err != nil {
		return fault.At(err)
	}
	if err := d.sendGreeting(can); err != nil {
		return fault.At(err)
	}
	// Receive processing starts only once the greeting is queued; frames
	// that arrived meanwhile wait in the FIFO.
	if err := can.ActivateNotification(hal.NotifyRxFIFO0Pending, callbacks); err != nil {
		return fault.At(err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-a.faults:
		return err
	}
}

func (d *Demo) sendGreeting(can hal.CAN) error {
	h := hal.TxHeader{
		StdID: d.id,
		IDE:   hal.IDStandard,
		RTR:   hal.FrameData,
		DLC:   uint8(len(d.payload)),
	}
	_, err := can.AddTxMessage(h, d.payload)
	return err
}

// initPins does what the MSP init callbacks do: clocks on, USART2 on
// PA2/PA3 and CAN1 on PA11/PA12.
func initPins(board hal.Board) error {
	rcc := board.RCC()
	rcc.SetPeripheralClock(hal.PeriphGPIOA, true)
	rcc.SetPeripheralClock(hal.PeriphUSART2, true)
	rcc.SetPeripheralClock(hal.PeriphCAN1, true)

	gpio := board.GPIO()
	for _, p := range []struct {
		pin hal.Pin
		af  uint8
	}{
		{hal.PA2, hal.AF7USART2},
		{hal.PA3, hal.AF7USART2},
		{hal.PA11, hal.AF9CAN1},
		{hal.PA12, hal.AF9CAN1},
	} {
		cfg := hal.PinConfig{Mode: hal.ModeAlternate, Speed: hal.SpeedHigh, Alternate: p.af}
		if err := gpio.Configure(p.pin, cfg); err != nil {
			return err
		}
	}
	return nil
}

// app holds the state shared with the CAN interrupt handlers.
type app struct {
	uart   io.Writer
	can    hal.CAN
	faults chan error
}

func (a *app) print(s string) {
	_, _ = io.WriteString(a.uart, s)
}

func (a *app) onTxComplete(mailbox int) {
	a.print(fmt.Sprintf("CAN TX complete: mailbox %d\r\n", mailbox))
}

func (a *app) onRxPending() {
	h, data, err := a.can.GetRxMessage(0)
	if err != nil {
		select {
		case a.faults <- fault.At(err):
		default:
		}
		return
	}
	a.print("CAN RX: " + PayloadText(h, data) + "\r\n")
}

func (a *app) onError(uint32) {
	a.print("CAN error detected\r\n")
}

// PayloadText renders a received payload as text. The payload is cut at
// min(DLC, 7) so that a terminator always fits in the 8 byte buffer, and at
// the first NUL byte before that.
func PayloadText(h hal.RxHeader, data [hal.CANMaxDLC]byte) string {
	n := int(h.DLC)
	if n > hal.CANMaxDLC-1 {
		n = hal.CANMaxDLC - 1
	}
	text := data[:n]
	if i := bytes.IndexByte(text, 0); i >= 0 {
		text = text[:i]
	}
	return string(text)
}
