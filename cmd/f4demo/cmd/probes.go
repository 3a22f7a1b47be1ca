package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/f4demos/pkg/hal"
)

var probesCmd = &cobra.Command{
	Use:   "probes",
	Short: "List debug probes that can reach a board",
	Long: `Scan USB for ST-LINK and CMSIS-DAP debug probes. The simulator is
always listed so the other commands work without hardware.`,
	RunE: runProbes,
}

func init() {
	rootCmd.AddCommand(probesCmd)
}

func runProbes(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	infos, err := hal.DiscoverProbes(ctx)
	if err != nil {
		return fmt.Errorf("discover probes: %w", err)
	}

	fmt.Println("Detected probes:")
	for _, p := range infos {
		if p.Kind == hal.ProbeKindSim {
			fmt.Printf("  - %s [%s]\n", p.Label(), p.Kind)
			continue
		}
		fmt.Printf("  - %s [%s] (VID:PID %04X:%04X)\n", p.Label(), p.Kind, p.VendorID, p.ProductID)
	}
	return nil
}
