package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	naviErrors "github.com/harunnryd/navi/internal/errors"
	"github.com/harunnryd/navi/internal/store"

	"github.com/natefinch/atomic"
)

// Entry maps one external channel id onto a user document key.
type Entry struct {
	ExternalID string
	UserKey    string
	Channel    string // empty means the configured default channel
	Legacy     bool   // stored as a bare string
}

// Malformed is a registry value that is neither a string nor an object
// carrying a string email.
type Malformed struct {
	ExternalID string
	Reason     string
}

type record struct {
	Email           string `json:"email"`
	Channel         string `json:"channel,omitempty"`
	AuthenticatedAt string `json:"authenticated_at,omitempty"`
	AuthMethod      string `json:"auth_method,omitempty"`
}

// Registry reads and writes the external-id mapping file. Accepted value
// forms are "user@example.com" (legacy) and {"email": "user@example.com"}.
type Registry struct {
	path    string
	lockCfg *store.FileLockConfig
	now     func() time.Time
}

func New(path string, lockCfg *store.FileLockConfig) *Registry {
	return &Registry{path: path, lockCfg: lockCfg, now: time.Now}
}

func (r *Registry) Path() string {
	return r.path
}

// Entries returns every well-formed entry sorted by external id, plus the
// entries that had to be skipped. A missing file is an empty registry.
func (r *Registry) Entries() ([]Entry, []Malformed, error) {
	raw, err := r.readRaw()
	if err != nil {
		return nil, nil, err
	}

	ids := make([]string, 0, len(raw))
	for id := range raw {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var entries []Entry
	var bad []Malformed
	for _, id := range ids {
		entry, reason := decodeEntry(id, raw[id])
		if reason != "" {
			bad = append(bad, Malformed{ExternalID: id, Reason: reason})
			continue
		}
		entries = append(entries, entry)
	}
	return entries, bad, nil
}

// Lookup finds the entry for one external id.
func (r *Registry) Lookup(externalID string) (Entry, error) {
	raw, err := r.readRaw()
	if err != nil {
		return Entry{}, err
	}
	value, ok := raw[externalID]
	if !ok {
		return Entry{}, naviErrors.NotFound(fmt.Sprintf("external id %s", externalID))
	}
	entry, reason := decodeEntry(externalID, value)
	if reason != "" {
		return Entry{}, naviErrors.InvalidInput(fmt.Sprintf("registry entry %s: %s", externalID, reason))
	}
	return entry, nil
}

// ForUser returns every entry pointing at userKey.
func (r *Registry) ForUser(userKey string) ([]Entry, error) {
	entries, _, err := r.Entries()
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, e := range entries {
		if e.UserKey == userKey {
			out = append(out, e)
		}
	}
	return out, nil
}

// Link binds externalID to userKey, replacing any previous binding for that
// id. Other entries are written back byte for byte.
func (r *Registry) Link(ctx context.Context, externalID, userKey, channel, method string) error {
	if strings.TrimSpace(externalID) == "" {
		return naviErrors.InvalidInput("external id is empty")
	}
	if err := store.ValidateUserKey(userKey); err != nil {
		return err
	}

	lock, err := store.AcquireFileLock(ctx, "registry", r.path+".lock", r.lockCfg)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	raw, err := r.readRaw()
	if err != nil {
		return err
	}
	value, err := json.Marshal(record{
		Email:           userKey,
		Channel:         channel,
		AuthenticatedAt: r.now().Format(time.RFC3339),
		AuthMethod:      method,
	})
	if err != nil {
		return err
	}
	raw[externalID] = value

	slog.Info("Linked external id", "external_id", externalID, "user", userKey, "channel", channel)
	return r.writeRaw(raw)
}

// Unlink removes externalID. Removing an unknown id is not an error.
func (r *Registry) Unlink(ctx context.Context, externalID string) error {
	lock, err := store.AcquireFileLock(ctx, "registry", r.path+".lock", r.lockCfg)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	raw, err := r.readRaw()
	if err != nil {
		return err
	}
	if _, ok := raw[externalID]; !ok {
		return nil
	}
	delete(raw, externalID)
	return r.writeRaw(raw)
}

func (r *Registry) readRaw() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, naviErrors.WrapWithCategory(err, "read registry", naviErrors.ErrTransient)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]json.RawMessage{}, nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, naviErrors.WrapWithCategory(err, "registry is not a JSON object", naviErrors.ErrCorruptDocument)
	}
	if raw == nil {
		raw = map[string]json.RawMessage{}
	}
	return raw, nil
}

func (r *Registry) writeRaw(raw map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return err
	}
	return atomic.WriteFile(r.path, bytes.NewReader(data))
}

func decodeEntry(id string, value json.RawMessage) (Entry, string) {
	var legacy string
	if err := json.Unmarshal(value, &legacy); err == nil {
		if err := store.ValidateUserKey(legacy); err != nil || !strings.Contains(legacy, "@") {
			return Entry{}, "string value is not a user key"
		}
		return Entry{ExternalID: id, UserKey: legacy, Legacy: true}, ""
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(value, &obj); err != nil || obj == nil {
		return Entry{}, "value is neither a string nor an object"
	}
	var rec record
	if err := json.Unmarshal(value, &rec); err != nil {
		return Entry{}, "object fields have unexpected types"
	}
	if rec.Email == "" {
		return Entry{}, "object has no email"
	}
	if err := store.ValidateUserKey(rec.Email); err != nil {
		return Entry{}, "email is not a usable user key"
	}
	return Entry{ExternalID: id, UserKey: rec.Email, Channel: strings.ToLower(strings.TrimSpace(rec.Channel))}, ""
}
