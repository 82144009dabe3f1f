package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		level   string
		format  string
		enabled zapcore.Level
		wantErr bool
	}{
		{level: "info", format: "console", enabled: zapcore.InfoLevel},
		{level: "debug", format: "json", enabled: zapcore.DebugLevel},
		{level: "warn", format: "", enabled: zapcore.WarnLevel},
		{level: "loud", format: "console", wantErr: true},
		{level: "info", format: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.level+"/"+tt.format, func(t *testing.T) {
			logger, err := New(tt.level, tt.format)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.True(t, logger.Core().Enabled(tt.enabled))
			require.False(t, logger.Core().Enabled(tt.enabled-1))
		})
	}
}
