package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/OpenTraceLab/f4demos/pkg/config"
	"github.com/OpenTraceLab/f4demos/pkg/fault"
	"github.com/OpenTraceLab/f4demos/pkg/firmware"
	"github.com/OpenTraceLab/f4demos/pkg/power"
	"github.com/OpenTraceLab/f4demos/pkg/stimulus"

	// Demo firmwares register themselves with the firmware registry.
	_ "github.com/OpenTraceLab/f4demos/pkg/demos/breathe"
	_ "github.com/OpenTraceLab/f4demos/pkg/demos/canecho"
	_ "github.com/OpenTraceLab/f4demos/pkg/demos/rtcstandby"
	_ "github.com/OpenTraceLab/f4demos/pkg/demos/stopmode"
)

var (
	// Global flags
	verbose    bool
	logLevel   string
	configPath string
	tracePath  string

	log = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "f4demo",
	Short: "STM32F4 peripheral demo firmwares on a simulated NUCLEO board",
	Long: `f4demo runs the STM32F4 demo firmwares (CAN echo, STOP mode current
measurement, PWM breathing LED, RTC across STANDBY) against a simulated
NUCLEO-F446RE and provides tools for the real board's debug link.

Examples:
  f4demo run canecho --script echo.stim           # Run with scripted CAN traffic
  f4demo run stopmode --mode main-ud-flash-pd     # Measure another STOP variant
  f4demo watch breathe                            # Live terminal view of the board
  f4demo run rtcstandby --trace rtc.cbor          # Record every board event
  f4demo trace rtc.cbor                           # Print a recorded trace
  f4demo monitor /dev/ttyACM0                     # Follow a real board's UART`,
	Version:           "0.3.0",
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); debug with --verbose")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&tracePath, "trace", "", "record board events to a CBOR trace file")
}

func setupLogging(cmd *cobra.Command, args []string) error {
	l, err := newLogger(logLevel, verbose)
	if err != nil {
		return err
	}
	log = l
	firmware.SetLogger(l.Named("firmware"))
	fault.SetLogger(l.Named("fault"))
	power.SetLogger(l.Named("power"))
	stimulus.SetLogger(l.Named("stimulus"))
	return nil
}

// newLogger builds a console logger on stderr. Without an explicit level it
// logs warnings, or everything with verbose.
func newLogger(level string, verbose bool) (*zap.Logger, error) {
	if level == "" {
		level = "warn"
		if verbose {
			level = "debug"
		}
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid --log-level: %w", err)
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if verbose && configPath != "" {
		fmt.Printf("Loaded configuration from %s\n", configPath)
	}
	return cfg, nil
}
