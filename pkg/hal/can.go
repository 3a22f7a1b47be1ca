package hal

import "fmt"

// CAN frame limits.
const (
	CANMaxDLC      = 8
	CANMaxStdID    = 0x7FF
	CANMaxExtID    = 0x1FFFFFFF
	CANTxMailboxes = 3
	CANFIFODepth   = 3
)

// IDType selects standard (11-bit) or extended (29-bit) identifiers.
type IDType uint8

const (
	IDStandard IDType = iota
	IDExtended
)

// FrameType selects data or remote frames.
type FrameType uint8

const (
	FrameData FrameType = iota
	FrameRemote
)

// TxHeader describes an outgoing frame.
type TxHeader struct {
	StdID uint32
	ExtID uint32
	IDE   IDType
	RTR   FrameType
	DLC   uint8
}

// RxHeader describes a received frame.
type RxHeader struct {
	StdID       uint32
	ExtID       uint32
	IDE         IDType
	RTR         FrameType
	DLC         uint8
	FilterMatch uint8
}

// ID returns the identifier selected by IDE.
func (h RxHeader) ID() uint32 {
	if h.IDE == IDExtended {
		return h.ExtID
	}
	return h.StdID
}

// FilterMode selects mask or list filtering.
type FilterMode uint8

const (
	FilterIDMask FilterMode = iota
	FilterIDList
)

// Filter configures one acceptance filter bank (32-bit scale).
type Filter struct {
	Bank   uint8
	FIFO   uint8
	Mode   FilterMode
	ID     uint32
	Mask   uint32
	Active bool
}

// AcceptAll returns an active mask filter passing every identifier to FIFO0.
func AcceptAll() Filter {
	return Filter{Bank: 0, FIFO: 0, Mode: FilterIDMask, Active: true}
}

// Accepts reports whether the filter passes a standard identifier.
func (f Filter) Accepts(stdID uint32) bool {
	if !f.Active {
		return false
	}
	// 32-bit scale: STID occupies bits 31..21.
	reg := stdID << 21
	if f.Mode == FilterIDList {
		return reg == f.ID || reg == f.Mask
	}
	return reg&f.Mask == f.ID&f.Mask
}

// Notification is a bitmask of CAN interrupt sources.
type Notification uint32

const (
	NotifyTxMailboxEmpty Notification = 1 << iota
	NotifyRxFIFO0Pending
	NotifyRxFIFO1Pending
	NotifyBusOff
	NotifyErrorWarning
	NotifyErrorPassive
)

// CAN error codes reported to the error callback.
const (
	CANErrorNone    uint32 = 0
	CANErrorBusOff  uint32 = 1 << 2
	CANErrorPassive uint32 = 1 << 1
	CANErrorWarning uint32 = 1 << 0
)

// CANCallbacks are the interrupt-context handlers of the CAN peripheral.
// Nil handlers are skipped.
type CANCallbacks struct {
	TxMailboxComplete func(mailbox int)
	RxFIFO0Pending    func()
	Error             func(code uint32)
}

// CANMode selects the bxCAN test modes.
type CANMode uint8

const (
	CANModeNormal CANMode = iota
	CANModeLoopback
	CANModeSilent
)

// CANConfig is the bxCAN init structure. Bit time is
// Prescaler * (1 + BS1 + BS2) time quanta of PCLK1.
type CANConfig struct {
	Prescaler uint32
	Mode      CANMode
	SJW       uint8
	BS1       uint8
	BS2       uint8
}

// DefaultCANConfig returns 500 kbit/s at a 16 MHz PCLK1.
func DefaultCANConfig() CANConfig {
	return CANConfig{Prescaler: 2, Mode: CANModeNormal, SJW: 1, BS1: 13, BS2: 2}
}

// Bitrate computes the nominal bit rate for a peripheral clock.
func (c CANConfig) Bitrate(pclk1 uint32) (uint32, error) {
	tq := uint32(1) + uint32(c.BS1) + uint32(c.BS2)
	if c.Prescaler == 0 || c.BS1 == 0 || c.BS2 == 0 {
		return 0, fmt.Errorf("hal: invalid CAN bit timing %+v", c)
	}
	return pclk1 / (c.Prescaler * tq), nil
}

// CAN is the bxCAN peripheral.
type CAN interface {
	Init(cfg CANConfig) error
	ConfigFilter(f Filter) error
	ActivateNotification(n Notification, cb CANCallbacks) error
	Start() error
	// AddTxMessage queues a frame in the lowest free mailbox and returns its
	// index.
	AddTxMessage(h TxHeader, data []byte) (int, error)
	// GetRxMessage pops the oldest frame of a receive FIFO.
	GetRxMessage(fifo uint8) (RxHeader, [CANMaxDLC]byte, error)
}
