package breathe

import "fmt"

// Ramp is a triangular duty cycle sweep over [0, Period] in fixed steps.
type Ramp struct {
	Period uint32
	Step   uint32
}

// NewRamp validates the sweep parameters.
func NewRamp(period, step uint32) (Ramp, error) {
	if period == 0 {
		return Ramp{}, fmt.Errorf("breathe: zero timer period")
	}
	if step == 0 || step > period {
		return Ramp{}, fmt.Errorf("breathe: step %d must be in 1..%d", step, period)
	}
	return Ramp{Period: period, Step: step}, nil
}

// Top is the largest multiple of Step that does not exceed Period.
func (r Ramp) Top() uint32 {
	if r.Step == 0 {
		return 0
	}
	return r.Period / r.Step * r.Step
}

// Len is the number of compare writes in one cycle.
func (r Ramp) Len() int {
	if r.Step == 0 {
		return 0
	}
	return 2 * int(r.Period/r.Step)
}

// Cycle returns the compare values of one breath: Step up to Top, then back
// down to zero. The starting zero is the channel's initial pulse and is not
// repeated.
func (r Ramp) Cycle() []uint32 {
	out := make([]uint32, 0, r.Len())
	top := r.Top()
	for v := r.Step; r.Step > 0 && v <= top; v += r.Step {
		out = append(out, v)
	}
	for v := top; r.Step > 0 && v > 0; {
		v -= r.Step
		out = append(out, v)
	}
	return out
}
