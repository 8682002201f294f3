package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew(t *testing.T) {
	log := New()
	if log.GetLevel() != zerolog.InfoLevel {
		t.Errorf("Expected info level, got %s", log.GetLevel())
	}
}

func TestNewWithLevel(t *testing.T) {
	if lvl := NewWithLevel("debug").GetLevel(); lvl != zerolog.DebugLevel {
		t.Errorf("Expected debug level, got %s", lvl)
	}
	if lvl := NewWithLevel("nonsense").GetLevel(); lvl != zerolog.InfoLevel {
		t.Errorf("Expected fallback to info, got %s", lvl)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{" WARN ", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"loud", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewWithWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	log.Info().Str("ledger", "transactions.csv").Msg("test message")

	output := buf.String()
	if !strings.Contains(output, "test message") {
		t.Errorf("Expected output to contain 'test message', got: %s", output)
	}
	if !strings.Contains(output, `"ledger":"transactions.csv"`) {
		t.Errorf("Expected structured field in output, got: %s", output)
	}
}

func TestFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := WithContext(context.Background(), NewWithWriter(buf))

	retrievedLog := FromContext(ctx)
	retrievedLog.Info().Msg("test")

	if buf.Len() == 0 {
		t.Error("Expected log output from retrieved logger")
	}
}

func TestFromContext_DefaultLogger(t *testing.T) {
	log := FromContext(context.Background())

	if log.GetLevel() == zerolog.Disabled {
		t.Error("Expected default logger to be enabled")
	}
}

func TestFromContextOr(t *testing.T) {
	stored, fallback := &bytes.Buffer{}, &bytes.Buffer{}

	log := FromContextOr(context.Background(), NewWithWriter(fallback))
	log.Info().Msg("no logger in context")
	if fallback.Len() == 0 {
		t.Error("Expected fallback logger to be used")
	}

	ctx := WithContext(context.Background(), NewWithWriter(stored))
	log = FromContextOr(ctx, NewWithWriter(fallback))
	log.Info().Msg("from context")
	if !strings.Contains(stored.String(), "from context") {
		t.Errorf("Expected context logger output, got: %s", stored.String())
	}
	if strings.Contains(fallback.String(), "from context") {
		t.Error("Fallback logger used despite a context logger")
	}
}
