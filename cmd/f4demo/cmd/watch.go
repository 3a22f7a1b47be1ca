package cmd

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/f4demos/internal/ui"
	"github.com/OpenTraceLab/f4demos/pkg/firmware"
)

var watchCmd = &cobra.Command{
	Use:   "watch <demo>",
	Short: "Run a demo with a live terminal view of the board",
	Long: `Run a demo on the simulated board and show LD2, the PWM duty cycle, the
clock tree, the power state, CAN traffic and the UART tail as they change.
Press q to quit.`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeDemos,
	RunE:              runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	addBoardFlags(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := boardConfig(cmd)
	if err != nil {
		return err
	}
	demo, err := firmware.New(args[0], cfg)
	if err != nil {
		return err
	}

	state := ui.NewState(demo.Name())
	state.SetPeriod(cfg.PWM.Period)
	sess, err := newSimSession(cfg, state.Logger(), nil)
	if err != nil {
		return err
	}
	defer sess.Close()

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	defer cancel()

	// The view stays up after the firmware stops so the final state can be
	// read; q quits.
	prog := tea.NewProgram(ui.NewModel(state), tea.WithAltScreen())
	scriptErr := sess.play(ctx, cancel, false)
	go func() {
		err := firmware.Run(ctx, sess.Board, demo)
		if stopped(err) {
			err = nil
		}
		prog.Send(ui.DoneMsg{Err: err})
	}()

	if _, err := prog.Run(); err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	cancel()
	if err := <-scriptErr; err != nil {
		return err
	}
	if s := state.Snapshot(); s.LastError != nil {
		return fmt.Errorf("%s: %w", demo.Name(), s.LastError)
	}
	return nil
}
