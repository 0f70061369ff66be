package shared

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestTruncate(t *testing.T) {
	tc := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{name: "shorter than limit", in: "hello", n: 10, want: "hello"},
		{name: "exact length", in: "hello", n: 5, want: "hello"},
		{name: "cut with ellipsis", in: "hello world", n: 6, want: "hello…"},
		{name: "multibyte runes", in: "日本語テキスト", n: 4, want: "日本語…"},
		{name: "zero limit keeps input", in: "abc", n: 0, want: "abc"},
		{name: "single rune limit", in: "abc", n: 1, want: "…"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.in, tt.n); got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tc := []struct {
		in   string
		want log.Level
	}{
		{"debug", log.DebugLevel},
		{" WARN ", log.WarnLevel},
		{"error", log.ErrorLevel},
		{"", log.InfoLevel},
		{"nonsense", log.InfoLevel},
	}

	for _, tt := range tc {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLogLevel(tt.in); got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLoggers(t *testing.T) {
	t.Run("WithLogger adds fields", func(t *testing.T) {
		var buf bytes.Buffer
		logger := WithLogger(NewLogger(&buf), "component", "test")
		logger.Info("hello")

		if !strings.Contains(buf.String(), "component=test") {
			t.Errorf("expected component field in output, got %q", buf.String())
		}
	})

	t.Run("WithLogger tolerates nil", func(t *testing.T) {
		logger := WithLogger(nil, "k", "v")
		if logger == nil {
			t.Fatal("expected a logger")
		}
		logger.Info("dropped")
	})

	t.Run("GenerateID is unique", func(t *testing.T) {
		a, b := GenerateID(), GenerateID()
		if a == b {
			t.Errorf("expected distinct ids, got %s twice", a)
		}
	})
}
