package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/user/foliochat/internal/types"
)

const cookieFile = "cookie"

// LoadOrCreateCookie returns the visitor cookie stored in dataDir, creating
// one on first use. created reports whether this call minted it.
func LoadOrCreateCookie(dataDir string) (id types.CookieID, created bool, err error) {
	path := filepath.Join(dataDir, cookieFile)
	data, err := os.ReadFile(path)
	if err == nil {
		if s := strings.TrimSpace(string(data)); s != "" {
			return types.CookieID(s), false, nil
		}
	} else if !os.IsNotExist(err) {
		return "", false, fmt.Errorf("read cookie: %w", err)
	}

	id = types.NewCookieID()
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return "", false, fmt.Errorf("create data directory: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, []byte(string(id)+"\n"), 0600); err != nil {
		return "", false, fmt.Errorf("write cookie: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", false, fmt.Errorf("rename cookie: %w", err)
	}
	return id, true, nil
}
