package registry

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	naviErrors "github.com/harunnryd/navi/internal/errors"
	"github.com/harunnryd/navi/internal/store"

	"github.com/natefinch/atomic"
)

const linkCodeDigits = 6

type LinkCode struct {
	UserKey        string    `json:"user_email"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	Used           bool      `json:"used"`
	UsedAt         time.Time `json:"used_at,omitempty"`
	UsedExternalID string    `json:"telegram_user_id,omitempty"`
}

var (
	ErrCodeUnknown = fmt.Errorf("link code not recognised: %w", naviErrors.ErrNotFound)
	ErrCodeUsed    = fmt.Errorf("link code already used: %w", naviErrors.ErrConflict)
	ErrCodeExpired = fmt.Errorf("link code expired: %w", naviErrors.ErrInvalidInput)
)

// LinkCodes issues single-use numeric codes that bind a chat account to a
// user document.
type LinkCodes struct {
	path    string
	ttl     time.Duration
	lockCfg *store.FileLockConfig
	now     func() time.Time
}

func NewLinkCodes(path string, ttl time.Duration, lockCfg *store.FileLockConfig) *LinkCodes {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &LinkCodes{path: path, ttl: ttl, lockCfg: lockCfg, now: time.Now}
}

// Issue creates a fresh code for userKey, revoking any earlier one.
func (c *LinkCodes) Issue(ctx context.Context, userKey string) (string, time.Time, error) {
	if err := store.ValidateUserKey(userKey); err != nil {
		return "", time.Time{}, err
	}

	var code string
	var expires time.Time
	err := c.withLock(ctx, func(codes map[string]LinkCode) error {
		for k, v := range codes {
			if v.UserKey == userKey {
				delete(codes, k)
			}
		}
		for {
			candidate, err := randomDigits(linkCodeDigits)
			if err != nil {
				return err
			}
			if _, taken := codes[candidate]; !taken {
				code = candidate
				break
			}
		}
		now := c.now()
		expires = now.Add(c.ttl)
		codes[code] = LinkCode{UserKey: userKey, CreatedAt: now, ExpiresAt: expires}
		return nil
	})
	return code, expires, err
}

// Redeem consumes code on behalf of externalID and returns the user key it
// was issued for.
func (c *LinkCodes) Redeem(ctx context.Context, code, externalID string) (string, error) {
	var userKey string
	err := c.withLock(ctx, func(codes map[string]LinkCode) error {
		lc, ok := codes[code]
		switch {
		case !ok:
			return ErrCodeUnknown
		case lc.Used:
			return ErrCodeUsed
		case c.now().After(lc.ExpiresAt):
			return ErrCodeExpired
		}
		lc.Used = true
		lc.UsedAt = c.now()
		lc.UsedExternalID = externalID
		codes[code] = lc
		userKey = lc.UserKey
		return nil
	})
	return userKey, err
}

func (c *LinkCodes) withLock(ctx context.Context, fn func(map[string]LinkCode) error) error {
	lock, err := store.AcquireFileLock(ctx, "link-codes", c.path+".lock", c.lockCfg)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	codes := map[string]LinkCode{}
	data, err := os.ReadFile(c.path)
	switch {
	case err == nil && len(bytes.TrimSpace(data)) > 0:
		if err := json.Unmarshal(data, &codes); err != nil {
			return naviErrors.WrapWithCategory(err, "read link codes", naviErrors.ErrCorruptDocument)
		}
	case err != nil && !os.IsNotExist(err):
		return err
	}

	if err := fn(codes); err != nil {
		// Failed redemptions leave the file untouched.
		return err
	}

	out, err := json.MarshalIndent(codes, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return err
	}
	return atomic.WriteFile(c.path, bytes.NewReader(out))
}

func randomDigits(n int) (string, error) {
	limit := big.NewInt(1)
	for i := 0; i < n; i++ {
		limit.Mul(limit, big.NewInt(10))
	}
	v, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", n, v), nil
}
