package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/OpenTraceLab/f4demos/pkg/firmware"
)

var runCmd = &cobra.Command{
	Use:   "run <demo>",
	Short: "Run a demo firmware on the simulated board",
	Long: `Run a demo firmware on a simulated NUCLEO-F446RE. Everything the
firmware prints on USART2 is copied to stdout as it happens.

A stimulus script (--script) presses the button, injects CAN frames and
wakes the board on a timeline. The run ends with the script unless --hold
is given, after --timeout, or on Ctrl+C.`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeDemos,
	RunE:              runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	addBoardFlags(runCmd)
	runCmd.Flags().BoolVar(&hold, "hold", false, "keep running after the stimulus script ends")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := boardConfig(cmd)
	if err != nil {
		return err
	}
	demo, err := firmware.New(args[0], cfg)
	if err != nil {
		return err
	}

	sess, err := newSimSession(cfg, nil, os.Stdout)
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, timeout)
		defer cancelTimeout()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if verbose {
		fmt.Fprintf(os.Stderr, "Running %s (session %s)\n", demo.Name(), sess.Board.Session())
	}

	scriptErr := sess.play(ctx, cancel, !hold)
	runErr := firmware.Run(ctx, sess.Board, demo)
	cancel()
	if err := <-scriptErr; err != nil {
		return err
	}
	if runErr != nil && !stopped(runErr) {
		return fmt.Errorf("%s: %w", demo.Name(), runErr)
	}
	log.Info("run finished",
		zap.String("demo", demo.Name()),
		zap.Int("resets", sess.Board.Resets()))
	return nil
}

func completeDemos(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return firmware.Names(), cobra.ShellCompDirectiveNoFileComp
}
