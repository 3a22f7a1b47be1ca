package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/f4demos/pkg/power"
)

var modesCmd = &cobra.Command{
	Use:   "modes",
	Short: "List the STOP mode variants",
	Long: `List the STOP mode variants the stopmode demo can measure. Either name
is accepted by --mode and by the power.mode configuration key.`,
	RunE: runModes,
}

func init() {
	rootCmd.AddCommand(modesCmd)
}

func runModes(cmd *cobra.Command, args []string) error {
	def, err := power.DefaultMode()
	if err != nil {
		return err
	}
	fmt.Println("STOP mode variants:")
	for _, m := range power.Modes() {
		marker := " "
		if m == def {
			marker = "*"
		}
		fmt.Printf(" %s %-18s %-42s %s\n", marker, m, m.LongName(), m.Describe())
	}
	fmt.Println("\n* build default")
	return nil
}
