package logger

import (
	"testing"

	"go.uber.org/zap"
)

func TestNewLevels(t *testing.T) {
	l, err := New(false)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if l.Core().Enabled(zap.InfoLevel) {
		t.Fatalf("info should be disabled without debug")
	}
	if !l.Core().Enabled(zap.WarnLevel) {
		t.Fatalf("warn should be enabled")
	}
	d, err := New(true)
	if err != nil {
		t.Fatalf("new debug: %v", err)
	}
	if !d.Core().Enabled(zap.DebugLevel) {
		t.Fatalf("debug should be enabled")
	}
}
