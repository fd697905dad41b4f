package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	testCases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		" error ": zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}

	for in, expected := range testCases {
		if got := ParseLevel(in); got != expected {
			t.Errorf("ParseLevel(%q) = %v, expected %v", in, got, expected)
		}
	}
}

func TestResolveFormat(t *testing.T) {
	testCases := []struct {
		format   string
		tty      bool
		expected string
	}{
		{"json", true, FormatJSON},
		{"console", false, FormatConsole},
		{"auto", true, FormatConsole},
		{"auto", false, FormatJSON},
		{"", false, FormatJSON},
		{"Console", false, FormatConsole},
	}

	for _, tc := range testCases {
		if got := resolveFormat(tc.format, tc.tty); got != tc.expected {
			t.Errorf("resolveFormat(%q, %v) = %s, expected %s", tc.format, tc.tty, got, tc.expected)
		}
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("debug", "json", "heatmaestro-test")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	defer logger.Sync()

	if !logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("Expected debug level to be enabled")
	}
}
