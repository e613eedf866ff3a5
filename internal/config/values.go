package config

import (
	"fmt"
	"slices"
)

// secretKeys lists the dot-separated keys whose values should be masked.
var secretKeys = map[string]bool{
	"backend.api_key": true,
}

// IsSecretKey returns true if the given dot-separated key is a secret.
func IsSecretKey(key string) bool {
	return secretKeys[key]
}

// Flatten converts a nested map into a flat map with dot-separated keys.
// For example, {"backend": {"url": "x"}} becomes {"backend.url": "x"}.
func Flatten(m map[string]any) map[string]any {
	out := make(map[string]any)
	flatten("", m, out)
	return out
}

func flatten(prefix string, m map[string]any, out map[string]any) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch child := v.(type) {
		case map[string]any:
			flatten(key, child, out)
		default:
			out[key] = v
		}
	}
}

// MaskSecrets returns a copy of the flat map with secret values shown as
// "***xxxx", where xxxx is the last 4 characters. Empty values are left
// empty.
func MaskSecrets(flat map[string]any) map[string]any {
	out := make(map[string]any, len(flat))
	for k, v := range flat {
		s, ok := v.(string)
		if !secretKeys[k] || !ok || s == "" {
			out[k] = v
			continue
		}
		if len(s) <= 4 {
			out[k] = "***" + s
		} else {
			out[k] = "***" + s[len(s)-4:]
		}
	}
	return out
}

// Setting is one effective config value.
type Setting struct {
	Key   string
	Value string
}

// Settings returns every effective value sorted by key, secrets masked.
func (c *Config) Settings() []Setting {
	masked := MaskSecrets(c.settings)
	keys := make([]string, 0, len(masked))
	for k := range masked {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([]Setting, len(keys))
	for i, k := range keys {
		out[i] = Setting{Key: k, Value: fmt.Sprint(masked[k])}
	}
	return out
}
