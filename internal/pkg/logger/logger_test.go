package logger

import (
	"bytes"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestZeroLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, zerolog.WarnLevel)

	log.Debug("hidden", map[string]interface{}{"attempt": 1})
	log.Info("hidden too", nil)
	assert.Empty(t, buf.String())

	log.Warn("poll retry", map[string]interface{}{"request_id": "req-1"})
	log.Error("submit failed", errors.New("boom"), nil)

	out := buf.String()
	assert.Contains(t, out, `"request_id":"req-1"`)
	assert.Contains(t, out, `"error":"boom"`)
	assert.Contains(t, out, `"message":"submit failed"`)
}
