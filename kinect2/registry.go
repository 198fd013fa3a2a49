package kinect2

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/k2g/logging"
)

// DriverConstructor builds a driver.
type DriverConstructor func(logger logging.Logger) (Driver, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]DriverConstructor{}
)

// RegisterDriver makes a driver available under name. It panics when name is taken, so it is
// meant to be called from init.
func RegisterDriver(name string, constructor DriverConstructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, old := registry[name]; old {
		panic(errors.Errorf("trying to register two kinect2 drivers with the same name: %s", name))
	}
	if constructor == nil {
		panic(errors.Errorf("cannot register a nil constructor for kinect2 driver: %s", name))
	}
	registry[name] = constructor
}

// DeregisterDriver removes a previously registered driver.
func DeregisterDriver(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(registry, name)
}

// RegisteredDrivers returns the sorted names of every registered driver.
func RegisteredDrivers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := lo.Keys(registry)
	sort.Strings(names)
	return names
}

// NewDriver constructs the driver registered under name.
func NewDriver(name string, logger logging.Logger) (Driver, error) {
	registryMu.RLock()
	constructor, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, NewUnknownDriverError(name)
	}
	return constructor(logger.Sublogger(name))
}
