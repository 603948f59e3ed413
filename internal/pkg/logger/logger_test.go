package logger_test

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/fixmate/fixmate-api/internal/pkg/logger"
)

func TestInitSetsGlobalLevel(t *testing.T) {
	logger.Init("warn", false)
	if got := zerolog.GlobalLevel(); got != zerolog.WarnLevel {
		t.Fatalf("expected warn, got %s", got)
	}
}

func TestInitFallsBackToDebug(t *testing.T) {
	logger.Init("shouting", false)
	if got := zerolog.GlobalLevel(); got != zerolog.DebugLevel {
		t.Fatalf("expected debug fallback, got %s", got)
	}
}
