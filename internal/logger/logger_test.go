package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeKVsRedactsSecrets(t *testing.T) {
	out := sanitizeKVs([]interface{}{"api_key", "sk-123", "district", "pune", "dangling"})
	assert.Equal(t, []interface{}{"api_key", "[REDACTED]", "district", "pune", "dangling"}, out)
}

func TestNewModes(t *testing.T) {
	for _, mode := range []string{"dev", "prod", ""} {
		l, err := New(mode)
		assert.NoError(t, err)
		assert.NotNil(t, l)
		l.With("component", "test").Debug("hello", "n", 1)
	}
	NewNop().Info("discarded")
}
