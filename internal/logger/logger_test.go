package logger

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInitWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "turfd.log")
	if err := Init(Config{Level: "debug", File: path}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if Logger == nil {
		t.Fatal("Logger is nil after initialization")
	}
	Info("booking confirmed", "reservation_id", 7)

	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Errorf("log directory was not created: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if len(data) == 0 {
		t.Error("log file is empty after Info")
	}
}

func TestInitUnknownLevelFallsBackToInfo(t *testing.T) {
	if err := Init(Config{Level: "chatty"}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if got := Logger.GetLevel().String(); got != "info" {
		t.Errorf("level = %s, want info", got)
	}
}

func TestLogFunctionsWithoutInit(t *testing.T) {
	Logger = nil
	// must not panic
	Debug("debug")
	Info("info")
	Warn("warn")
	Error("error")
}
