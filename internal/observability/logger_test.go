package observability

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TestParseLogLevel verifies that parseLogLevel handles case-insensitivity and whitespace.
func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		env    string
		expect zapcore.Level
	}{
		{"", zap.InfoLevel},
		{"INFO", zap.InfoLevel},
		{"DEBUG", zap.DebugLevel},
		{"WARN", zap.WarnLevel},
		{"ERROR", zap.ErrorLevel},
		{"debug", zap.DebugLevel},
		{"  warn  ", zap.WarnLevel},
		{"invalid", zap.InfoLevel},
	}
	for _, tt := range tests {
		level := parseLogLevel(tt.env)
		if got := level.Level(); got != tt.expect {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.env, got, tt.expect)
		}
	}
}

func TestNewLogger(t *testing.T) {
	for _, enc := range []string{"", "json", "console"} {
		logger, err := NewLogger("debug", enc)
		if err != nil {
			t.Fatalf("NewLogger(%q) error = %v", enc, err)
		}
		if logger == nil {
			t.Fatalf("NewLogger(%q) returned nil logger", enc)
		}
		if !logger.Core().Enabled(zap.DebugLevel) {
			t.Errorf("NewLogger(%q) debug level not enabled", enc)
		}
		logger.Info("test message")
		_ = logger.Sync() // best-effort; can fail on /dev/stderr in test env
	}
}
