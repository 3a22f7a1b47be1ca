package hal

import "time"

// Board aggregates the peripherals of one microcontroller.
type Board interface {
	GPIO() GPIO
	RCC() RCC
	PWR() PWR
	UART() UART
	CAN() CAN
	PWM() PWMTimer
	RTC() RTC
	// Delay blocks for d, as driven by SysTick.
	Delay(d time.Duration)
	// DisableInterrupts masks every interrupt (cpsid i).
	DisableInterrupts()
}
