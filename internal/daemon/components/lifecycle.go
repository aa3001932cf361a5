package components

import (
	"errors"
	"sync"

	"github.com/harunnryd/navi/internal/daemon"
)

type phase int

const (
	phaseNew phase = iota
	phaseReady
	phaseRunning
)

var (
	errNotInitialized = errors.New("not initialized")
	errNotStarted     = errors.New("not started")
)

// lifecycle is the New -> Ready -> Running state machine shared by
// components that wrap something with its own Start and Stop.
type lifecycle struct {
	mu    sync.RWMutex
	phase phase
}

func (l *lifecycle) set(p phase) {
	l.mu.Lock()
	l.phase = p
	l.mu.Unlock()
}

func (l *lifecycle) at(p phase) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.phase >= p
}

// transition moves from want to next and runs fn while holding the lock.
// It reports whether the component was in a state to move at all.
func (l *lifecycle) transition(want, next phase, fn func() error) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.phase != want {
		return false, nil
	}
	if err := fn(); err != nil {
		return true, err
	}
	l.phase = next
	return true, nil
}

// report turns the phase plus a live probe into a health report. probe is
// only called once the component is running.
func (l *lifecycle) report(name string, details interface{}, probe func() error) *daemon.ComponentHealth {
	switch {
	case !l.at(phaseReady):
		return daemon.Unhealthy(name, errNotInitialized, nil)
	case !l.at(phaseRunning):
		return daemon.Unhealthy(name, errNotStarted, details)
	}
	if probe != nil {
		if err := probe(); err != nil {
			return daemon.Unhealthy(name, err, details)
		}
	}
	return daemon.Healthy(name, details)
}
