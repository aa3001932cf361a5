package tool

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// BuiltinOptions is handed to every built-in factory.
type BuiltinOptions struct {
	DefaultLocation *time.Location
	// Disabled names built-ins the model must not see.
	Disabled []string
}

type BuiltinFactory func(options BuiltinOptions) (Tool, error)

type catalog struct {
	mu        sync.RWMutex
	factories map[string]BuiltinFactory
}

var builtins = &catalog{factories: map[string]BuiltinFactory{}}

// RegisterBuiltin is called from init() in the builtin package. A blank or
// duplicate name is a programming error and panics.
func RegisterBuiltin(name string, factory BuiltinFactory) {
	if err := builtins.add(NormalizeToolName(name), factory); err != nil {
		panic("tool: " + err.Error())
	}
}

func (c *catalog) add(name string, factory BuiltinFactory) error {
	if name == "" {
		return fmt.Errorf("built-in name cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("built-in %s has no factory", name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.factories[name]; dup {
		return fmt.Errorf("built-in %s registered twice", name)
	}
	c.factories[name] = factory
	return nil
}

// snapshot returns the factories sorted by name.
func (c *catalog) snapshot() ([]string, map[string]BuiltinFactory) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.factories))
	copied := make(map[string]BuiltinFactory, len(c.factories))
	for name, f := range c.factories {
		names = append(names, name)
		copied[name] = f
	}
	sort.Strings(names)
	return names, copied
}

func BuiltinNames() []string {
	names, _ := builtins.snapshot()
	return names
}

// NewBuiltinRegistry builds a registry holding every registered built-in
// except those listed in options.Disabled. Naming an unknown tool there is
// an error so a typo in config does not silently leave a tool enabled.
func NewBuiltinRegistry(options BuiltinOptions) (*Registry, error) {
	names, factories := builtins.snapshot()

	skip := make(map[string]bool, len(options.Disabled))
	for _, name := range options.Disabled {
		name = NormalizeToolName(name)
		if _, ok := factories[name]; !ok {
			return nil, fmt.Errorf("cannot disable unknown built-in %q", name)
		}
		skip[name] = true
	}

	registry := NewRegistry()
	for _, name := range names {
		if skip[name] {
			continue
		}
		t, err := factories[name](options)
		if err != nil {
			return nil, fmt.Errorf("instantiate built-in %q: %w", name, err)
		}
		registry.Register(t)
	}
	return registry, nil
}
