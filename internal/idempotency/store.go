// Package idempotency remembers which inbound chat messages were already
// handled, so a platform retry does not land in the transcript twice.
package idempotency

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/natefinch/atomic"
)

type processedKeys struct {
	Keys map[string]int64 `json:"keys"` // key -> expiry, unix seconds
}

// Store is a small expiring key set persisted as one JSON file.
type Store struct {
	path  string
	state processedKeys
	mu    sync.Mutex
	now   func() time.Time
}

// NewStore loads path, or starts empty when it does not exist yet. An
// unreadable file is logged and replaced on the next write.
func NewStore(path string) (*Store, error) {
	s := &Store{
		path:  path,
		state: processedKeys{Keys: make(map[string]int64)},
		now:   time.Now,
	}
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return s, nil
	case err != nil:
		return nil, err
	case len(bytes.TrimSpace(data)) == 0:
		return s, nil
	}
	if err := json.Unmarshal(data, &s.state); err != nil || s.state.Keys == nil {
		slog.Warn("Discarding unreadable processed-message file", "path", path, "error", err)
		s.state.Keys = make(map[string]int64)
	}
	return s, nil
}

// Seen reports whether key was marked within its ttl. An unseen key is
// marked and the file rewritten before returning, with expired keys pruned.
func (s *Store) Seen(key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().Unix()
	if expiry, ok := s.state.Keys[key]; ok && expiry > now {
		return true, nil
	}

	for k, expiry := range s.state.Keys {
		if expiry <= now {
			delete(s.state.Keys, k)
		}
	}
	s.state.Keys[key] = now + int64(ttl.Seconds())
	return false, s.save()
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.Keys)
}

func (s *Store) save() error {
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}
	return atomic.WriteFile(s.path, bytes.NewReader(data))
}
