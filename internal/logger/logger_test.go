package logger_test

import (
	"errors"
	"testing"
	"time"

	"github.com/jonesrussell/gopost/internal/logger"
)

func TestNewLogger(t *testing.T) {
	for _, debug := range []bool{true, false} {
		log, err := logger.NewLogger(debug)
		if err != nil {
			t.Fatalf("NewLogger(%v) returned error: %v", debug, err)
		}
		if log == nil {
			t.Fatalf("NewLogger(%v) returned nil logger", debug)
		}
	}
}

func TestNopLoggerDoesNotPanic(t *testing.T) {
	log := logger.NewNopLogger()

	log.Debug("debug", logger.String("k", "v"))
	log.Info("info", logger.Int("count", 1))
	log.Warn("warn", logger.Duration("elapsed", time.Second))
	log.Error("error", logger.Error(errors.New("boom")))

	child := log.With(logger.String("service", "gopost"))
	child.Info("child logger")

	if err := log.Sync(); err != nil {
		t.Errorf("Sync() on nop logger returned error: %v", err)
	}
}
