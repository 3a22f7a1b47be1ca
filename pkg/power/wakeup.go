package power

import (
	"context"
	"sync/atomic"
)

// WakeupFlag is the one-bit handshake between the button interrupt and the
// foreground. Interrupt context only sets it; the waiting foreground only
// clears it after observing it set.
type WakeupFlag struct {
	set    atomic.Bool
	notify chan struct{}
}

// NewWakeupFlag returns a cleared flag.
func NewWakeupFlag() *WakeupFlag {
	return &WakeupFlag{notify: make(chan struct{}, 1)}
}

// Set raises the flag. It never blocks and is safe from interrupt context.
func (f *WakeupFlag) Set() {
	if f.set.CompareAndSwap(false, true) {
		select {
		case f.notify <- struct{}{}:
		default:
		}
	}
}

// IsSet reports the flag without changing it.
func (f *WakeupFlag) IsSet() bool {
	return f.set.Load()
}

// Wait blocks until the flag is set, then clears it.
func (f *WakeupFlag) Wait(ctx context.Context) error {
	for {
		if f.set.CompareAndSwap(true, false) {
			return nil
		}
		select {
		case <-f.notify:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// TryClear clears the flag if it is set and reports whether it was.
func (f *WakeupFlag) TryClear() bool {
	return f.set.CompareAndSwap(true, false)
}
