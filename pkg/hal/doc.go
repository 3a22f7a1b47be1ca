// Package hal is the hardware abstraction layer the demo firmwares are
// written against.
//
// The interfaces mirror the peripheral blocks of an STM32F4 (GPIO/EXTI, RCC,
// PWR, USART, bxCAN, general purpose timers, RTC) at the level the vendor HAL
// exposes them: configure, start, transfer, read status. Register layouts are
// deliberately absent.
//
// SimBoard implements every interface in memory. It is deterministic,
// records what the firmware did (pin levels, UART transcript, CAN frames,
// compare values, clock source, power flags) and accepts stimuli (button
// presses, inbound CAN frames, bus errors). Its low-power entry points block
// like the real core does until a wake event is delivered.
//
// DiscoverProbes enumerates debug probes attached over USB, so tooling can
// tell a connected NUCLEO board from the simulator.
package hal
