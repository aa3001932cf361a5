package daemon

import (
	"fmt"
	"strings"
)

// initOrder sorts components so each one follows everything it depends on.
// Ties keep registration order. Duplicate names, unknown dependencies and
// cycles are configuration errors.
func initOrder(comps []Component) ([]Component, error) {
	byName := make(map[string]Component, len(comps))
	for _, c := range comps {
		if _, dup := byName[c.Name()]; dup {
			return nil, fmt.Errorf("component %s registered twice", c.Name())
		}
		byName[c.Name()] = c
	}
	for _, c := range comps {
		for _, dep := range c.Dependencies() {
			if _, ok := byName[dep]; !ok {
				return nil, fmt.Errorf("component %s depends on %s which is not registered", c.Name(), dep)
			}
		}
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(comps))
	ordered := make([]Component, 0, len(comps))
	var path []string

	var visit func(c Component) error
	visit = func(c Component) error {
		switch state[c.Name()] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("circular dependency: %s -> %s", strings.Join(path, " -> "), c.Name())
		}
		state[c.Name()] = visiting
		path = append(path, c.Name())
		for _, dep := range c.Dependencies() {
			if err := visit(byName[dep]); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		state[c.Name()] = done
		ordered = append(ordered, c)
		return nil
	}

	for _, c := range comps {
		if err := visit(c); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}

func names(comps []Component) []string {
	out := make([]string, len(comps))
	for i, c := range comps {
		out[i] = c.Name()
	}
	return out
}
