package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/f4demos/pkg/trace"
)

var traceKinds []string

var traceCmd = &cobra.Command{
	Use:   "trace <file>",
	Short: "Print a recorded board trace",
	Long: `Decode a CBOR trace written by 'run --trace' and print one line per event.

Examples:
  f4demo trace rtc.cbor
  f4demo trace rtc.cbor --kind power-enter --kind power-exit`,
	Args: cobra.ExactArgs(1),
	RunE: runTrace,
}

func init() {
	rootCmd.AddCommand(traceCmd)
	traceCmd.Flags().StringSliceVarP(&traceKinds, "kind", "k", nil, "only print events of these kinds")
}

func runTrace(cmd *cobra.Command, args []string) error {
	r, err := trace.OpenFile(args[0])
	if err != nil {
		return fmt.Errorf("open trace: %w", err)
	}
	defer r.Close()

	want := make(map[string]bool, len(traceKinds))
	for _, k := range traceKinds {
		want[strings.ToLower(k)] = true
	}

	count := 0
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read trace: event %d: %w", count+1, err)
		}
		if len(want) > 0 && !want[ev.Kind.String()] {
			continue
		}
		fmt.Println(ev.String())
		count++
	}
	if verbose {
		fmt.Printf("%d events\n", count)
	}
	return nil
}
