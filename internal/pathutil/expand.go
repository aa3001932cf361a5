package pathutil

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

// Expand resolves environment variables and a leading "~" in path.
func Expand(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}

	expanded := os.ExpandEnv(trimmed)
	if rest, ok := cutHome(expanded); ok {
		home, err := homeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		expanded = filepath.Join(home, rest)
	}

	return filepath.Clean(expanded), nil
}

// ResolveUnder expands path and anchors it at base when it is relative.
// An empty path stays empty.
func ResolveUnder(base, path string) (string, error) {
	expanded, err := Expand(path)
	if err != nil || expanded == "" {
		return expanded, err
	}
	if filepath.IsAbs(expanded) || base == "" {
		return expanded, nil
	}
	return filepath.Join(base, expanded), nil
}

func cutHome(path string) (string, bool) {
	if path == "~" {
		return "", true
	}
	return strings.CutPrefix(path, "~/")
}

// homeDir tries the platform lookup, the user database and $HOME in turn,
// skipping any answer that is itself an unexpanded "~".
func homeDir() (string, error) {
	var candidates []string
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, home)
	}
	if current, err := user.Current(); err == nil {
		candidates = append(candidates, current.HomeDir)
	}
	candidates = append(candidates, os.Getenv("HOME"))

	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if _, unresolved := cutHome(c); c != "" && !unresolved {
			return c, nil
		}
	}
	return "", fmt.Errorf("no resolvable home directory (HOME=%q)", os.Getenv("HOME"))
}
