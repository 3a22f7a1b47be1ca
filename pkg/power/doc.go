// Package power sequences the low-power demos: it gates entry into STOP or
// STANDBY on a user button press delivered by interrupt, selects one of the
// six STOP variants, and restores the running configuration after wake.
//
// The interrupt handler and the foreground share exactly one value, the
// WakeupFlag. Progress through a measurement cycle is tracked by a
// StateMachine that rejects out-of-order steps.
package power
