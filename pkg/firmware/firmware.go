// Package firmware runs demo programs on a board the way the core does:
// from the reset vector, again after every STANDBY wake, and into a halt
// loop on a fatal error.
package firmware

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/OpenTraceLab/f4demos/pkg/config"
	"github.com/OpenTraceLab/f4demos/pkg/fault"
	"github.com/OpenTraceLab/f4demos/pkg/hal"
)

// Demo is one firmware image.
type Demo interface {
	Name() string
	// Main runs from reset. It returns nil only if the program finishes,
	// hal.ErrStandbyReset after a STANDBY wake, or a fatal error.
	Main(ctx context.Context, board hal.Board) error
}

// Factory builds a demo from configuration.
type Factory func(cfg *config.Config) (Demo, error)

// ErrUnknownDemo is returned by New for unregistered names.
var ErrUnknownDemo = errors.New("firmware: unknown demo")

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a demo available by name. It panics on duplicate names.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if f == nil {
		panic("firmware: Register factory is nil")
	}
	if _, dup := registry[name]; dup {
		panic("firmware: Register called twice for " + name)
	}
	registry[name] = f
}

// Lookup returns the factory registered under name.
func Lookup(name string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

// New builds the named demo.
func New(name string, cfg *config.Config) (Demo, error) {
	f, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownDemo, name, Names())
	}
	return f(cfg)
}

// Names lists registered demos alphabetically.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run executes demo on board. A STANDBY wake restarts Main from the top; a
// fatal error masks interrupts and parks in fault.Halt until ctx is done.
// Run returns nil when Main completes, or the error that ended it.
func Run(ctx context.Context, board hal.Board, demo Demo) error {
	log := Logger().With(zap.String("demo", demo.Name()))
	for boot := 1; ; boot++ {
		log.Debug("reset", zap.Int("boot", boot))
		err := demo.Main(ctx, board)
		switch {
		case err == nil:
			log.Info("demo finished", zap.Int("boots", boot))
			return nil
		case errors.Is(err, hal.ErrStandbyReset):
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Info("woke from standby, restarting", zap.Int("boot", boot+1))
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return err
		default:
			board.DisableInterrupts()
			return fault.Halt(ctx, err)
		}
	}
}
