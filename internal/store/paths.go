package store

import (
	"os"
	"path/filepath"
	"strings"

	naviErrors "github.com/harunnryd/navi/internal/errors"
	"github.com/harunnryd/navi/internal/pathutil"
)

const (
	usersDirName  = "users"
	stateFileName = "state.json"
	lockFileName  = "state.lock"
)

// ResolveDataRoot resolves the configured data root.
// If empty, it falls back to ~/.navi/data.
func ResolveDataRoot(root string) (string, error) {
	if trimmed := strings.TrimSpace(root); trimmed != "" {
		return pathutil.Expand(trimmed)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".navi", "data"), nil
}

// ValidateUserKey rejects keys that cannot safely name a directory.
func ValidateUserKey(key string) error {
	trimmed := strings.TrimSpace(key)
	switch {
	case trimmed == "":
		return naviErrors.InvalidInput("user key is empty")
	case trimmed != key:
		return naviErrors.InvalidInput("user key has surrounding whitespace")
	case trimmed == "." || trimmed == "..":
		return naviErrors.InvalidInput("user key is a relative path element")
	case strings.ContainsAny(trimmed, `/\`+"\x00"):
		return naviErrors.InvalidInput("user key contains a path separator")
	}
	return nil
}

// GetUsersDir returns the directory holding one subdirectory per user.
func GetUsersDir(root string) string {
	return filepath.Join(root, usersDirName)
}

// GetUserDir returns the directory for one user's files.
func GetUserDir(root, key string) (string, error) {
	if err := ValidateUserKey(key); err != nil {
		return "", err
	}
	return filepath.Join(GetUsersDir(root), key), nil
}

// GetStatePath returns users/<key>/state.json under root.
func GetStatePath(root, key string) (string, error) {
	dir, err := GetUserDir(root, key)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, stateFileName), nil
}

// GetLockPath returns the advisory lock file guarding a user's state.
func GetLockPath(root, key string) (string, error) {
	dir, err := GetUserDir(root, key)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, lockFileName), nil
}
