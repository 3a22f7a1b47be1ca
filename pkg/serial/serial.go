// Package serial connects to the debug UART of a real board through its
// USB virtual COM port.
package serial

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"github.com/OpenTraceLab/f4demos/pkg/hal"
)

// DefaultBaud matches the firmware debug link.
const DefaultBaud = 115200

// PortInfo describes a serial port and, for USB ports, the adapter behind it.
type PortInfo struct {
	Name         string
	USB          bool
	VendorID     string
	ProductID    string
	SerialNumber string
	Product      string
	// Probe is set when the port belongs to a known debug probe.
	Probe *hal.ProbeInfo
}

// ListPorts returns the serial ports of the host. Ports of known debug
// probes, such as the NUCLEO ST-LINK virtual COM port, are tagged.
func ListPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		names, lerr := serial.GetPortsList()
		if lerr != nil {
			return nil, fmt.Errorf("failed to list serial ports: %w", lerr)
		}
		ports := make([]PortInfo, 0, len(names))
		for _, name := range names {
			ports = append(ports, PortInfo{Name: name})
		}
		return ports, nil
	}

	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		p := PortInfo{
			Name:         d.Name,
			USB:          d.IsUSB,
			VendorID:     strings.ToLower(d.VID),
			ProductID:    strings.ToLower(d.PID),
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		}
		if d.IsUSB {
			p.Probe = classify(p.VendorID, p.ProductID)
		}
		ports = append(ports, p)
	}
	return ports, nil
}

func classify(vid, pid string) *hal.ProbeInfo {
	var v, p uint16
	if _, err := fmt.Sscanf(vid+":"+pid, "%x:%x", &v, &p); err != nil {
		return nil
	}
	info, ok := hal.ClassifyProbe(v, p)
	if !ok {
		return nil
	}
	return &info
}

// Open opens a port at baud, 8N1 without flow control. A zero baud selects
// DefaultBaud.
func Open(name string, baud int) (serial.Port, error) {
	if baud == 0 {
		baud = DefaultBaud
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	return port, nil
}

// Monitor copies complete lines from r to w until r is exhausted or ctx is
// done. CRLF terminators become a single newline. r is closed when ctx ends
// so that a blocked read returns.
func Monitor(ctx context.Context, r io.ReadCloser, w io.Writer) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			r.Close()
		case <-stop:
		}
	}()

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if _, err := fmt.Fprintln(w, scanner.Text()); err != nil {
			return err
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return scanner.Err()
}
