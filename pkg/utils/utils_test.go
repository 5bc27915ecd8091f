package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestValidateUsername(t *testing.T) {
	assert.NoError(t, ValidateUsername("officer.one"))
	assert.Error(t, ValidateUsername("ab"))
	assert.Error(t, ValidateUsername("Officer"))
	assert.Error(t, ValidateUsername("has space"))
}

func TestValidateRoleCode(t *testing.T) {
	assert.NoError(t, ValidateRoleCode("officer"))
	assert.NoError(t, ValidateRoleCode("citizen"))
	assert.Error(t, ValidateRoleCode("9lives"))
	assert.Error(t, ValidateRoleCode(""))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "line one\nline two", SanitizeString("  line one\nline two\x00\x07 "))
}

func TestKVLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := NewKVLogger(zap.New(core))

	logger.Info("Incident created", "incident_id", "inc-1", 42, "ignored", "dangling")
	logger.Error("Delivery failed", "error", errors.New("boom"))

	entries := logs.All()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, "Incident created", entries[0].Message)
		assert.Equal(t, map[string]interface{}{"incident_id": "inc-1"}, entries[0].ContextMap())
		assert.Equal(t, "boom", entries[1].ContextMap()["error"])
	}
}

func TestNewLogger_DefaultsToInfo(t *testing.T) {
	logger, err := NewLogger(LoggerConfig{Level: "nonsense", OutputPath: "stderr", Format: "json"})
	assert.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
	assert.True(t, logger.Core().Enabled(zap.InfoLevel))
}
