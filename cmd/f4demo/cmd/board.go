package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/OpenTraceLab/f4demos/pkg/config"
	"github.com/OpenTraceLab/f4demos/pkg/hal"
	"github.com/OpenTraceLab/f4demos/pkg/stimulus"
	"github.com/OpenTraceLab/f4demos/pkg/trace"
)

// Flags shared by run and watch
var (
	modeName           string
	scriptPath         string
	realtime           bool
	timeout            time.Duration
	cycles             int
	buttonWakesStandby bool
	hold               bool
)

func addBoardFlags(c *cobra.Command) {
	c.Flags().StringVarP(&modeName, "mode", "m", "", "STOP mode variant for stopmode (see 'f4demo modes')")
	c.Flags().StringVarP(&scriptPath, "script", "s", "", "stimulus script driving the simulated board")
	c.Flags().BoolVar(&realtime, "realtime", true, "delays take host time instead of virtual time")
	c.Flags().DurationVarP(&timeout, "timeout", "t", 0, "stop after this much host time (0 waits for Ctrl+C)")
	c.Flags().IntVar(&cycles, "cycles", 0, "breathe ramps or stopmode STOP cycles to run (0 runs forever)")
	c.Flags().BoolVar(&buttonWakesStandby, "button-wakes-standby", false, "let the user button end STANDBY")
}

// boardConfig loads the configuration and applies the command line
// overrides on top of it.
func boardConfig(c *cobra.Command) (*config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	flags := c.Flags()
	if flags.Changed("mode") {
		cfg.Power.Mode = modeName
	}
	if flags.Changed("script") {
		cfg.Sim.Script = scriptPath
	}
	if flags.Changed("realtime") {
		cfg.Sim.Realtime = realtime
	}
	if flags.Changed("cycles") {
		cfg.PWM.Cycles = cycles
		cfg.Power.Cycles = cycles
	}
	if flags.Changed("button-wakes-standby") {
		cfg.Sim.ButtonWakesStandby = buttonWakesStandby
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// simSession is a simulated board with its trace sinks.
type simSession struct {
	Board  *hal.SimBoard
	Script *stimulus.Script
	file   *trace.FileLogger
}

// newSimSession builds a SimBoard for cfg. Events go to observer, to zap in
// verbose mode and to the --trace file; UART output is mirrored to sink.
func newSimSession(cfg *config.Config, observer trace.Logger, sink io.Writer) (*simSession, error) {
	s := &simSession{}
	if cfg.Sim.Script != "" {
		script, err := stimulus.ParseFile(cfg.Sim.Script)
		if err != nil {
			return nil, err
		}
		s.Script = script
	}

	loggers := trace.NewMultiLogger()
	if observer != nil {
		loggers.Add(observer)
	}
	if verbose {
		loggers.Add(trace.NewZapAdapter(log.Named("board")))
	}
	if tracePath != "" {
		f, err := trace.NewFileLogger(tracePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open trace file: %w", err)
		}
		s.file = f
		loggers.Add(f)
	}

	opts := []hal.SimOption{
		hal.WithTraceLogger(loggers),
		hal.WithRealtime(cfg.Sim.Realtime),
		hal.WithButtonWakesStandby(cfg.Sim.ButtonWakesStandby),
	}
	if sink != nil {
		opts = append(opts, hal.WithUARTSink(sink))
	}
	s.Board = hal.NewSimBoard(opts...)
	log.Debug("board ready",
		zap.String("session", s.Board.Session()),
		zap.Bool("realtime", cfg.Sim.Realtime))
	return s, nil
}

// Close stops the board and flushes the trace file.
func (s *simSession) Close() error {
	err := s.Board.Close()
	if s.file != nil {
		if n := s.file.Dropped(); n > 0 {
			log.Warn("trace events dropped", zap.Int("count", n))
		}
		if cerr := s.file.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// play runs the stimulus script, if any. With stopAtEnd the session is
// cancelled once the script has been applied.
func (s *simSession) play(ctx context.Context, cancel context.CancelFunc, stopAtEnd bool) <-chan error {
	errc := make(chan error, 1)
	if s.Script == nil {
		close(errc)
		return errc
	}
	go func() {
		defer close(errc)
		err := s.Script.Play(ctx, s.Board)
		if err != nil && ctx.Err() == nil {
			errc <- fmt.Errorf("stimulus: %w", err)
			cancel()
			return
		}
		if stopAtEnd {
			cancel()
		}
	}()
	return errc
}

// stopped reports whether err only says the session was ended from the host.
func stopped(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
