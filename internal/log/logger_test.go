package log

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{" WARN ", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLoggerComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, Component: ComponentCycle, Output: &buf})

	logger.Info("Cycle started", FieldAmount, 50000)
	if !strings.Contains(buf.String(), "component=cycle") {
		t.Errorf("missing component in %q", buf.String())
	}

	buf.Reset()
	http := logger.WithComponent(ComponentHTTP)
	http.Info("Request")
	out := buf.String()
	if !strings.Contains(out, "component=http") || strings.Contains(out, "component=cycle") {
		t.Errorf("WithComponent output = %q", out)
	}
	if http.Component() != ComponentHTTP {
		t.Errorf("Component() = %q", http.Component())
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelWarn, Output: &buf})
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestFromContext(t *testing.T) {
	if got := FromContext(context.Background()); got == nil || got.Component() != ComponentApp {
		t.Fatalf("FromContext(empty) = %+v", got)
	}
	logger := New(Config{Component: ComponentWorker, Output: &bytes.Buffer{}})
	ctx := WithContext(context.Background(), logger)
	if got := FromContext(ctx); got != logger {
		t.Errorf("FromContext() did not return the stored logger")
	}
}

func TestDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() {
		slog.SetDefault(prev)
		defaultLogger.Store(nil)
	})

	var buf bytes.Buffer
	SetDefault(New(Config{Component: ComponentApp, Output: &buf}))

	logger := Default(ComponentScheduler)
	logger.Info("Scheduler started", FieldToken, "abc")
	out := buf.String()
	if !strings.Contains(out, "component=scheduler") || strings.Contains(out, "component=app") {
		t.Errorf("Default() output = %q", out)
	}
	if !strings.Contains(out, "token=abc") {
		t.Errorf("missing token field in %q", out)
	}
}
