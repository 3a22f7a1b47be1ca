package hal

import "fmt"

// Oscillator and bus limits of the STM32F446 at VDD 3.3 V.
const (
	HSIFrequency = 16_000_000
	// HSEFrequency is the 8 MHz MCO supplied by the on-board ST-LINK.
	HSEFrequency = 8_000_000

	MaxSysClk = 180_000_000
	MaxAPB1   = 45_000_000
	MaxAPB2   = 90_000_000

	// FlashWaitStateStep is the HCLK span covered by one flash wait state.
	FlashWaitStateStep = 30_000_000
)

// ClockSource selects SYSCLK or the PLL input.
type ClockSource uint8

const (
	ClockHSI ClockSource = iota
	ClockHSE
	ClockPLL
)

func (c ClockSource) String() string {
	switch c {
	case ClockHSI:
		return "HSI"
	case ClockHSE:
		return "HSE"
	case ClockPLL:
		return "PLL"
	default:
		return fmt.Sprintf("ClockSource(%d)", c)
	}
}

// PLLConfig configures the main PLL. SYSCLK = source / M * N / P.
type PLLConfig struct {
	On     bool
	Source ClockSource
	M      uint32
	N      uint32
	P      uint32
	Q      uint32
	R      uint32
}

// OscConfig configures the oscillators.
type OscConfig struct {
	HSE bool
	PLL PLLConfig
}

// ClockConfig selects SYSCLK and the bus prescalers.
type ClockConfig struct {
	SysClkSource ClockSource
	AHBDiv       uint32
	APB1Div      uint32
	APB2Div      uint32
}

// Peripheral names a clock-gated peripheral.
type Peripheral uint8

const (
	PeriphGPIOA Peripheral = iota
	PeriphGPIOB
	PeriphGPIOC
	PeriphGPIOD
	PeriphGPIOE
	PeriphGPIOF
	PeriphGPIOG
	PeriphGPIOH
	PeriphPWR
	PeriphSYSCFG
	PeriphTIM2
	PeriphUSART2
	PeriphCAN1
)

var peripheralNames = map[Peripheral]string{
	PeriphPWR:    "PWR",
	PeriphSYSCFG: "SYSCFG",
	PeriphTIM2:   "TIM2",
	PeriphUSART2: "USART2",
	PeriphCAN1:   "CAN1",
}

func (p Peripheral) String() string {
	if p <= PeriphGPIOH {
		return fmt.Sprintf("GPIO%c", 'A'+byte(p))
	}
	if name, ok := peripheralNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Peripheral(%d)", p)
}

// PortClock returns the clock gate of a GPIO port.
func PortClock(port Port) Peripheral {
	return PeriphGPIOA + Peripheral(port-'A')
}

// RCC is the reset and clock control block.
type RCC interface {
	ConfigureOscillator(cfg OscConfig) error
	// ConfigureClock switches SYSCLK and prescalers. flashLatency is the
	// number of flash wait states to program first.
	ConfigureClock(cfg ClockConfig, flashLatency uint32) error
	// SwitchSysClk selects a SYSCLK source directly; the source must be
	// running.
	SwitchSysClk(src ClockSource) error
	SysClkSource() ClockSource
	HCLK() uint32
	PCLK1() uint32
	// ConfigureSysTick programs the SysTick reload value.
	ConfigureSysTick(reload uint32) error
	SetPeripheralClock(p Peripheral, on bool)
	PeripheralClock(p Peripheral) bool
}
