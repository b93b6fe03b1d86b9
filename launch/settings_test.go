package launch

import (
	"strings"
	"testing"
)

func TestDecodeSettings(t *testing.T) {
	env := NewEnvironment("/srv", map[string]string{
		"NODE_ENV":     "production",
		"PORT":         "5010",
		"DATABASE_URL": "postgres://pos:secret@db/pos",
	})
	s, err := DecodeSettings(env)
	if err != nil {
		t.Fatalf("DecodeSettings failed: %v", err)
	}
	if !s.IsProduction() || s.Port != "5010" {
		t.Errorf("unexpected settings %+v", s)
	}
	if len(s.Missing()) != 0 {
		t.Errorf("expected nothing missing, got %v", s.Missing())
	}
	fields := s.LogFields()
	if url, _ := fields["database_url"].(string); strings.Contains(url, "secret") {
		t.Errorf("expected masked database url, got %q", url)
	}
}

func TestDecodeSettingsDefaults(t *testing.T) {
	s, err := DecodeSettings(NewEnvironment("/srv", nil))
	if err != nil {
		t.Fatalf("DecodeSettings failed: %v", err)
	}
	if s.Mode != DefaultMode || s.IsProduction() {
		t.Errorf("expected development mode, got %q", s.Mode)
	}
	if got := strings.Join(s.Missing(), ","); got != "PORT,DATABASE_URL" {
		t.Errorf("expected PORT,DATABASE_URL missing, got %q", got)
	}
	if _, ok := s.LogFields()["database_url"]; ok {
		t.Error("expected no database_url field when unset")
	}
}

func TestEnvironmentAccessors(t *testing.T) {
	env := NewEnvironment("/srv", map[string]string{"B": "2", "A": "1"})
	if v, ok := env.Lookup("A"); !ok || v != "1" {
		t.Errorf("Lookup(A) = %q, %v", v, ok)
	}
	if _, ok := env.Lookup("C"); ok {
		t.Error("expected C unset")
	}
	if got := strings.Join(env.Environ(), ","); got != "A=1,B=2" {
		t.Errorf("Environ = %q", got)
	}
	vars := env.Vars()
	vars["A"] = "changed"
	if env.Get("A") != "1" {
		t.Error("Vars must return a copy")
	}
}
