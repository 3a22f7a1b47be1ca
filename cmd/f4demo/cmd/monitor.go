package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/f4demos/pkg/serial"
)

var baud int

var monitorCmd = &cobra.Command{
	Use:   "monitor [port]",
	Short: "Print a real board's UART output",
	Long: `Open the board's serial port at 8N1 and print every line it sends until
Ctrl+C. Without a port the first ST-LINK or CMSIS-DAP virtual COM port is
used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().IntVarP(&baud, "baud", "b", serial.DefaultBaud, "baud rate")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	name := ""
	if len(args) == 1 {
		name = args[0]
	} else {
		var err error
		if name, err = probePort(); err != nil {
			return err
		}
	}

	port, err := serial.Open(name, baud)
	if err != nil {
		return err
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "Monitoring %s at %d baud\n", name, baud)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := serial.Monitor(ctx, port, os.Stdout); err != nil && !stopped(err) {
		return err
	}
	return nil
}

func probePort() (string, error) {
	ports, err := serial.ListPorts()
	if err != nil {
		return "", fmt.Errorf("list ports: %w", err)
	}
	for _, p := range ports {
		if p.Probe != nil {
			return p.Name, nil
		}
	}
	return "", fmt.Errorf("no debug probe serial port found; name one explicitly")
}
