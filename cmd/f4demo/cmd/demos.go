package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/f4demos/pkg/firmware"
)

var demoSummaries = map[string]string{
	"breathe":    "TIM2 CH1 PWM ramp on LD2 (PA5), HSE PLL at the configured SYSCLK",
	"canecho":    "CAN1 loopback echo with RX interrupt, UART log of every frame",
	"rtcstandby": "RTC calendar kept across STANDBY, WKUP1 or button wake",
	"stopmode":   "STOP mode current measurement, button wakes the core",
}

var demosCmd = &cobra.Command{
	Use:   "demos",
	Short: "List the demo firmwares",
	RunE:  runDemos,
}

func init() {
	rootCmd.AddCommand(demosCmd)
}

func runDemos(cmd *cobra.Command, args []string) error {
	fmt.Println("Available demos:")
	for _, name := range firmware.Names() {
		fmt.Printf("  - %-11s %s\n", name, demoSummaries[name])
	}
	return nil
}
