package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"
)

func jsonLogger(buf *bytes.Buffer) *Logger {
	cfg := &Config{Level: "debug", Format: "json", Output: "stdout"}
	return NewWithWriter(cfg, "primepos-supervisor", buf)
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	line := strings.TrimSpace(buf.String())
	if i := strings.LastIndex(line, "\n"); i >= 0 {
		line = line[i+1:]
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("failed to decode log line %q: %v", line, err)
	}
	return m
}

func TestNewDefault(t *testing.T) {
	l := NewDefault("test-svc")
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
	if l.service != "test-svc" {
		t.Errorf("expected service 'test-svc', got %q", l.service)
	}
}

func TestNewInvalidLevel(t *testing.T) {
	cfg := &Config{Level: "invalid-level", Format: "json", Output: "stdout"}
	if l := New(cfg, "test"); l == nil {
		t.Fatal("expected logger to be created even with invalid level")
	}
}

func TestNewFromEnv(t *testing.T) {
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("LOG_FORMAT", "json")
	defer os.Unsetenv("LOG_LEVEL")
	defer os.Unsetenv("LOG_FORMAT")

	if l := NewFromEnv("env-svc"); l == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestJSONOutputCarriesService(t *testing.T) {
	var buf bytes.Buffer
	jsonLogger(&buf).Info("instance online", Fields(FieldApp, "primepos", FieldPID, 42))

	m := decodeLine(t, &buf)
	if m["service"] != "primepos-supervisor" {
		t.Errorf("expected service field, got %v", m["service"])
	}
	if m[FieldApp] != "primepos" {
		t.Errorf("expected app=primepos, got %v", m[FieldApp])
	}
	if m["message"] != "instance online" {
		t.Errorf("expected message, got %v", m["message"])
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	jsonLogger(&buf).WithComponent("launcher").Warn("env file missing")

	m := decodeLine(t, &buf)
	if m[FieldComponent] != "launcher" {
		t.Errorf("expected component=launcher, got %v", m[FieldComponent])
	}
	if m["level"] != "warn" {
		t.Errorf("expected level warn, got %v", m["level"])
	}
}

func TestWithContextAppAndRun(t *testing.T) {
	var buf bytes.Buffer
	ctx := ContextWithApp(context.Background(), "primepos", 1)
	ctx = ContextWithRunID(ctx, "run-1")
	jsonLogger(&buf).WithContext(ctx).Info("started")

	m := decodeLine(t, &buf)
	if m[FieldApp] != "primepos" {
		t.Errorf("expected app field, got %v", m[FieldApp])
	}
	if m[FieldInstance] != float64(1) {
		t.Errorf("expected instance=1, got %v", m[FieldInstance])
	}
	if m[FieldRunID] != "run-1" {
		t.Errorf("expected run_id field, got %v", m[FieldRunID])
	}
}

func TestWithContextEmpty(t *testing.T) {
	var buf bytes.Buffer
	jsonLogger(&buf).WithContext(context.Background()).Info("plain")

	m := decodeLine(t, &buf)
	if _, ok := m[FieldApp]; ok {
		t.Error("expected no app field without context values")
	}
}

func TestWithFieldsAndError(t *testing.T) {
	var buf bytes.Buffer
	jsonLogger(&buf).
		WithFields(map[string]interface{}{"stream": "stderr"}).
		WithError(errors.New("boom")).
		Error("child failed")

	m := decodeLine(t, &buf)
	if m["stream"] != "stderr" {
		t.Errorf("expected stream field, got %v", m["stream"])
	}
	if m["error"] != "boom" {
		t.Errorf("expected error field, got %v", m["error"])
	}
}

func TestConsoleOutput(t *testing.T) {
	var buf bytes.Buffer
	cfg := &Config{Level: "info", Format: "console", NoColor: true}
	NewWithWriter(cfg, "primepos", &buf).Info("hello")

	out := buf.String()
	if !strings.Contains(out, "[PRI][INF]") {
		t.Errorf("expected service tag and level in console output, got %q", out)
	}
	if !strings.Contains(out, "hello") {
		t.Errorf("expected message in console output, got %q", out)
	}
}

func TestInit(t *testing.T) {
	defer SetGlobalLogger(nil)
	Init(Config{ServiceName: "init-svc", Format: "json"})
	if GetGlobalLogger().service != "init-svc" {
		t.Errorf("expected global logger service 'init-svc', got %q", GetGlobalLogger().service)
	}
}

func TestGetGlobalLoggerDefault(t *testing.T) {
	SetGlobalLogger(nil)
	if GetGlobalLogger() == nil {
		t.Fatal("expected default global logger")
	}
}

func TestConfigApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	if cfg.Level != "info" {
		t.Errorf("expected level 'info', got %q", cfg.Level)
	}
	if cfg.Format != "console" {
		t.Errorf("expected format 'console', got %q", cfg.Format)
	}
	if cfg.Output != "stdout" {
		t.Errorf("expected output 'stdout', got %q", cfg.Output)
	}
	if !cfg.Timestamp {
		t.Error("expected timestamp enabled")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Level: "info", Format: "json", Output: "stdout"}, false},
		{"valid pretty", Config{Level: "debug", Format: "pretty", Output: "stderr"}, false},
		{"bad level", Config{Level: "loud", Format: "json", Output: "stdout"}, true},
		{"bad format", Config{Level: "info", Format: "xml", Output: "stdout"}, true},
		{"bad output", Config{Level: "info", Format: "json", Output: "file"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestRegisterAndGet(t *testing.T) {
	l := NewDefault("reg")
	Register("api", l)
	if Get("api") != l {
		t.Error("expected registered logger back")
	}
	if Get("unregistered") == nil {
		t.Error("expected fallback logger for unknown name")
	}
	found := false
	for _, name := range Registered() {
		if name == "api" {
			found = true
		}
	}
	if !found {
		t.Error("expected 'api' in Registered()")
	}
}

func TestFields(t *testing.T) {
	m := Fields("a", 1, "b", "two", 3, "ignored", "dangling")
	if m["a"] != 1 || m["b"] != "two" {
		t.Errorf("unexpected fields: %v", m)
	}
	if len(m) != 2 {
		t.Errorf("expected 2 fields, got %d", len(m))
	}
}

func TestErrorAndDurationFields(t *testing.T) {
	ef := ErrorFields("chdir", errors.New("denied"))
	if ef[FieldOperation] != "chdir" || ef[FieldError] != "denied" {
		t.Errorf("unexpected error fields: %v", ef)
	}
	df := DurationFields("launch", 1500*time.Millisecond)
	if df[FieldDuration] != int64(1500) {
		t.Errorf("expected 1500ms, got %v", df[FieldDuration])
	}
	merged := MergeWithError(nil, errors.New("x"))
	if merged[FieldError] != "x" {
		t.Errorf("expected error merged, got %v", merged)
	}
}
