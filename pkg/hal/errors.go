package hal

import "errors"

var (
	// ErrHardware reports that a peripheral configuration call did not
	// succeed. It is the only failure kind the firmware distinguishes.
	ErrHardware = errors.New("hal: hardware configuration failed")

	// ErrNotConfigured is returned when a peripheral is used before its
	// initialisation call, or while its clock is gated.
	ErrNotConfigured = errors.New("hal: peripheral not configured")

	// ErrNotImplemented lets backends signal a missing capability.
	ErrNotImplemented = errors.New("hal: not implemented")

	// ErrStandbyReset is returned by PWR.EnterStandby once the core has been
	// woken from STANDBY. Execution must restart from the reset vector.
	ErrStandbyReset = errors.New("hal: woke from standby, reset required")

	// ErrMailboxFull is returned when no CAN transmit mailbox is free.
	ErrMailboxFull = errors.New("hal: no free CAN transmit mailbox")

	// ErrFIFOEmpty is returned when reading an empty CAN receive FIFO.
	ErrFIFOEmpty = errors.New("hal: CAN receive FIFO empty")
)
