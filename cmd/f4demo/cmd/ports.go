package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/f4demos/pkg/serial"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports",
	Long: `List the host's serial ports. Ports that belong to a known debug probe
(the ST-LINK virtual COM port on a NUCLEO) are marked.`,
	RunE: runPorts,
}

func init() {
	rootCmd.AddCommand(portsCmd)
}

func runPorts(cmd *cobra.Command, args []string) error {
	ports, err := serial.ListPorts()
	if err != nil {
		return fmt.Errorf("list ports: %w", err)
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found.")
		return nil
	}

	fmt.Println("Serial ports:")
	for _, p := range ports {
		switch {
		case p.Probe != nil:
			fmt.Printf("  - %s [%s] %s\n", p.Name, p.Probe.Kind, p.Probe.Description)
		case p.USB:
			fmt.Printf("  - %s (VID:PID %s:%s) %s\n", p.Name, p.VendorID, p.ProductID, p.Product)
		default:
			fmt.Printf("  - %s\n", p.Name)
		}
	}
	return nil
}
