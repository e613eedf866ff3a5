package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlattenNested(t *testing.T) {
	m := map[string]any{
		"backend": map[string]any{
			"url":     "http://backend/api",
			"api_key": "sk-test123",
		},
		"log_level": "info",
	}
	got := Flatten(m)
	assert.Equal(t, map[string]any{
		"backend.url":     "http://backend/api",
		"backend.api_key": "sk-test123",
		"log_level":       "info",
	}, got)
}

func TestFlattenDeeplyNested(t *testing.T) {
	m := map[string]any{"a": map[string]any{"b": map[string]any{"c": 1}}}
	assert.Equal(t, map[string]any{"a.b.c": 1}, Flatten(m))
}

func TestMaskSecrets(t *testing.T) {
	flat := map[string]any{
		"backend.api_key": "sk-1234567890",
		"backend.url":     "http://backend/api",
	}
	got := MaskSecrets(flat)
	assert.Equal(t, "***7890", got["backend.api_key"])
	assert.Equal(t, "http://backend/api", got["backend.url"])
	assert.Equal(t, "sk-1234567890", flat["backend.api_key"], "input must not be modified")
}

func TestMaskSecretsShortAndEmpty(t *testing.T) {
	got := MaskSecrets(map[string]any{"backend.api_key": "abc"})
	assert.Equal(t, "***abc", got["backend.api_key"])

	got = MaskSecrets(map[string]any{"backend.api_key": ""})
	assert.Equal(t, "", got["backend.api_key"])
}

func TestIsSecretKey(t *testing.T) {
	assert.True(t, IsSecretKey("backend.api_key"))
	assert.False(t, IsSecretKey("backend.url"))
}
