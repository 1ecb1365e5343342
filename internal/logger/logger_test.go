package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	testCases := []struct {
		name        string
		level       string
		expectError bool
		enabled     zapcore.Level
	}{
		{name: "info", level: "info", enabled: zapcore.InfoLevel},
		{name: "debug", level: "debug", enabled: zapcore.DebugLevel},
		{name: "development console", level: "dev", enabled: zapcore.DebugLevel},
		{name: "unknown level", level: "loud", expectError: true},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.level)

			if tt.expectError {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.True(t, l.Core().Enabled(tt.enabled))
		})
	}
}
