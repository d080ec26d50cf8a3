package store

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// ErrUnknownDriver is returned when no driver is registered under the
// requested name.
var ErrUnknownDriver = errors.New("unknown store driver")

// Factory creates a driver instance from its config block.
type Factory func(config map[string]any, logger *slog.Logger) (Driver, error)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Factory)
)

// Register registers a driver factory under a name. Drivers
// self-register from their init functions; importing the loader
// package pulls in the defaults.
func Register(name string, f Factory) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[name] = f
}

// New creates a driver using the named factory. An empty name selects
// the memory driver.
func New(name string, config map[string]any, logger *slog.Logger) (Driver, error) {
	if name == "" {
		name = "memory"
	}

	driversMu.RLock()
	factory, ok := drivers[name]
	driversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %v)", ErrUnknownDriver, name, DriverNames())
	}
	return factory(config, logger)
}

// DriverNames returns the registered driver names, sorted.
func DriverNames() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()

	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
