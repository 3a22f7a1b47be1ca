package hal

import (
	"fmt"

	"github.com/OpenTraceLab/f4demos/pkg/trace"
)

// CANFrame is a frame seen on the simulated bus.
type CANFrame struct {
	ID       uint32
	Extended bool
	Remote   bool
	Data     []byte
}

func (f CANFrame) String() string {
	return fmt.Sprintf("%03X [%d] % X", f.ID, len(f.Data), f.Data)
}

type rxEntry struct {
	header RxHeader
	data   [CANMaxDLC]byte
}

type canState struct {
	initialized bool
	started     bool
	cfg         CANConfig
	filters     [28]Filter
	notify      Notification
	callbacks   CANCallbacks
	mailboxes   [CANTxMailboxes]bool
	fifo        [2][]rxEntry
	overruns    int
}

type simCAN struct{ b *SimBoard }

func (c simCAN) Init(cfg CANConfig) error {
	b := c.b
	b.mu.Lock()
	defer b.unlock()
	if err := b.fail(OpCANInit); err != nil {
		return err
	}
	if !b.clocks[PeriphCAN1] {
		return fmt.Errorf("%w: CAN1 clock disabled", ErrNotConfigured)
	}
	switch {
	case cfg.Prescaler < 1 || cfg.Prescaler > 1024:
		return fmt.Errorf("%w: CAN prescaler %d", ErrHardware, cfg.Prescaler)
	case cfg.BS1 < 1 || cfg.BS1 > 16:
		return fmt.Errorf("%w: CAN BS1 %d", ErrHardware, cfg.BS1)
	case cfg.BS2 < 1 || cfg.BS2 > 8:
		return fmt.Errorf("%w: CAN BS2 %d", ErrHardware, cfg.BS2)
	case cfg.SJW < 1 || cfg.SJW > 4:
		return fmt.Errorf("%w: CAN SJW %d", ErrHardware, cfg.SJW)
	}
	b.can = canState{initialized: true, cfg: cfg}
	return nil
}

func (c simCAN) ConfigFilter(f Filter) error {
	b := c.b
	b.mu.Lock()
	defer b.unlock()
	if err := b.fail(OpCANFilter); err != nil {
		return err
	}
	if !b.can.initialized {
		return fmt.Errorf("%w: CAN filter before init", ErrNotConfigured)
	}
	if int(f.Bank) >= len(b.can.filters) || f.FIFO > 1 {
		return fmt.Errorf("%w: filter bank %d fifo %d", ErrHardware, f.Bank, f.FIFO)
	}
	b.can.filters[f.Bank] = f
	return nil
}

func (c simCAN) ActivateNotification(n Notification, cb CANCallbacks) error {
	b := c.b
	b.mu.Lock()
	if err := b.fail(OpCANNotify); err != nil {
		b.unlock()
		return err
	}
	if !b.can.initialized {
		b.unlock()
		return fmt.Errorf("%w: CAN notification before init", ErrNotConfigured)
	}
	enablingRx := n&NotifyRxFIFO0Pending != 0 && b.can.notify&NotifyRxFIFO0Pending == 0
	b.can.notify |= n
	b.can.callbacks = cb
	// A non-empty FIFO raises its interrupt as soon as it is enabled.
	pending := enablingRx && len(b.can.fifo[0]) > 0
	b.unlock()
	if pending {
		b.pend(b.serviceRxFIFO0)
	}
	return nil
}

// serviceRxFIFO0 runs in interrupt context. FMP0 is a level condition, so
// the receive callback is raised again for as long as FIFO0 holds messages
// and the notification stays enabled. It stops early if the callback leaves
// the FIFO untouched.
func (b *SimBoard) serviceRxFIFO0() {
	for {
		b.mu.Lock()
		n := len(b.can.fifo[0])
		var rx func()
		if n > 0 && b.irqEnabled && b.can.notify&NotifyRxFIFO0Pending != 0 {
			rx = b.can.callbacks.RxFIFO0Pending
		}
		b.mu.Unlock()
		if rx == nil {
			return
		}
		rx()
		b.mu.Lock()
		left := len(b.can.fifo[0])
		b.mu.Unlock()
		if left >= n {
			return
		}
	}
}

func (c simCAN) Start() error {
	b := c.b
	b.mu.Lock()
	defer b.unlock()
	if err := b.fail(OpCANStart); err != nil {
		return err
	}
	if !b.can.initialized {
		return fmt.Errorf("%w: CAN start before init", ErrNotConfigured)
	}
	b.can.started = true
	b.dirty = true
	return nil
}

func (c simCAN) AddTxMessage(h TxHeader, data []byte) (int, error) {
	b := c.b
	b.mu.Lock()
	mailbox, frame, err := b.queueTx(h, data)
	b.unlock()
	if err != nil {
		return 0, err
	}
	b.pend(func() { b.completeTx(mailbox, frame) })
	return mailbox, nil
}

// queueTx claims the lowest free mailbox for a frame. Callers hold b.mu.
func (b *SimBoard) queueTx(h TxHeader, data []byte) (int, CANFrame, error) {
	if err := b.fail(OpCANTransmit); err != nil {
		return 0, CANFrame{}, err
	}
	if !b.can.started {
		return 0, CANFrame{}, fmt.Errorf("%w: CAN not started", ErrNotConfigured)
	}
	if h.DLC > CANMaxDLC || len(data) < int(h.DLC) {
		return 0, CANFrame{}, fmt.Errorf("%w: DLC %d with %d data bytes", ErrHardware, h.DLC, len(data))
	}
	id := h.StdID
	if h.IDE == IDExtended {
		id = h.ExtID
		if id > CANMaxExtID {
			return 0, CANFrame{}, fmt.Errorf("%w: extended id %#x", ErrHardware, id)
		}
	} else if id > CANMaxStdID {
		return 0, CANFrame{}, fmt.Errorf("%w: standard id %#x", ErrHardware, id)
	}
	mailbox := -1
	for i, busy := range b.can.mailboxes {
		if !busy {
			mailbox = i
			break
		}
	}
	if mailbox < 0 {
		return 0, CANFrame{}, ErrMailboxFull
	}
	b.can.mailboxes[mailbox] = true
	frame := CANFrame{
		ID:       id,
		Extended: h.IDE == IDExtended,
		Remote:   h.RTR == FrameRemote,
		Data:     append([]byte(nil), data[:h.DLC]...),
	}
	b.canTx = appendBounded(b.canTx, frame)
	b.record(trace.Event{Source: trace.SourceCAN, Kind: trace.KindCANTx, Value: uint64(id), Data: frame.Data})
	return mailbox, frame, nil
}

// completeTx runs in interrupt context once a frame has left its mailbox.
func (b *SimBoard) completeTx(mailbox int, frame CANFrame) {
	b.mu.Lock()
	b.can.mailboxes[mailbox] = false
	b.record(trace.Event{Source: trace.SourceCAN, Kind: trace.KindCANTxComplete, Value: uint64(mailbox)})
	var txDone func(int)
	if b.irqEnabled && b.can.notify&NotifyTxMailboxEmpty != 0 {
		txDone = b.can.callbacks.TxMailboxComplete
	}
	var rx func()
	if b.can.cfg.Mode == CANModeLoopback {
		_, rx = b.deliver(frame)
	}
	b.unlock()
	if txDone != nil {
		txDone(mailbox)
	}
	if rx != nil {
		b.serviceRxFIFO0()
	}
}

// deliver places an inbound frame in the FIFO selected by the filters. It
// reports whether the frame was stored and returns the receive callback to
// run, if any. Callers hold b.mu.
func (b *SimBoard) deliver(f CANFrame) (bool, func()) {
	if !b.can.started {
		return false, nil
	}
	bank := -1
	for i, flt := range b.can.filters {
		if f.Extended {
			if flt.Active && flt.Mode == FilterIDMask && flt.Mask == 0 {
				bank = i
				break
			}
			continue
		}
		if flt.Accepts(f.ID) {
			bank = i
			break
		}
	}
	if bank < 0 {
		return false, nil
	}
	fifo := b.can.filters[bank].FIFO
	if len(b.can.fifo[fifo]) >= CANFIFODepth {
		b.can.overruns++
		b.record(trace.Event{Source: trace.SourceCAN, Kind: trace.KindCANError, Value: uint64(f.ID), Detail: "fifo overrun"})
		return false, nil
	}
	entry := rxEntry{header: RxHeader{DLC: uint8(len(f.Data)), FilterMatch: uint8(bank)}}
	if f.Extended {
		entry.header.IDE = IDExtended
		entry.header.ExtID = f.ID
	} else {
		entry.header.StdID = f.ID
	}
	if f.Remote {
		entry.header.RTR = FrameRemote
	}
	copy(entry.data[:], f.Data)
	b.can.fifo[fifo] = append(b.can.fifo[fifo], entry)
	b.record(trace.Event{Source: trace.SourceCAN, Kind: trace.KindCANRx, Value: uint64(f.ID), Data: append([]byte(nil), f.Data...)})
	if fifo == 0 && b.can.notify&NotifyRxFIFO0Pending != 0 {
		return true, b.can.callbacks.RxFIFO0Pending
	}
	return true, nil
}

func (c simCAN) GetRxMessage(fifo uint8) (RxHeader, [CANMaxDLC]byte, error) {
	b := c.b
	b.mu.Lock()
	defer b.unlock()
	var data [CANMaxDLC]byte
	if err := b.fail(OpCANReceive); err != nil {
		return RxHeader{}, data, err
	}
	if fifo > 1 {
		return RxHeader{}, data, fmt.Errorf("%w: fifo %d", ErrHardware, fifo)
	}
	if len(b.can.fifo[fifo]) == 0 {
		return RxHeader{}, data, ErrFIFOEmpty
	}
	entry := b.can.fifo[fifo][0]
	b.can.fifo[fifo] = b.can.fifo[fifo][1:]
	b.dirty = true
	return entry.header, entry.data, nil
}

// InjectCAN delivers a frame from another bus node. It reports whether the
// frame was accepted into a receive FIFO; frames arriving before Start, not
// matching any filter or overflowing a full FIFO are lost. The receive
// callback has run when InjectCAN returns.
func (b *SimBoard) InjectCAN(f CANFrame) bool {
	if len(f.Data) > CANMaxDLC {
		return false
	}
	b.mu.Lock()
	accepted, rx := b.deliver(f)
	b.unlock()
	if rx != nil {
		b.interrupt(nil, b.serviceRxFIFO0)
	}
	return accepted
}

// BusError signals a bus error condition. The error callback runs if
// error notifications are active.
func (b *SimBoard) BusError(code uint32) {
	b.mu.Lock()
	b.record(trace.Event{Source: trace.SourceCAN, Kind: trace.KindCANError, Value: uint64(code)})
	var cb func(uint32)
	if b.can.started && b.can.notify&(NotifyBusOff|NotifyErrorWarning|NotifyErrorPassive) != 0 {
		cb = b.can.callbacks.Error
	}
	b.unlock()
	if cb != nil {
		b.interrupt(func() { cb(code) }, nil)
	}
}

// CANTransmitted returns every frame the firmware put on the bus.
func (b *SimBoard) CANTransmitted() []CANFrame {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]CANFrame(nil), b.canTx...)
}

// CANStarted reports whether the CAN peripheral is active on the bus.
func (b *SimBoard) CANStarted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.can.started
}

// CANPending returns the number of frames waiting in a receive FIFO.
func (b *SimBoard) CANPending(fifo uint8) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if fifo > 1 {
		return 0
	}
	return len(b.can.fifo[fifo])
}
