package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoad_Defaults(t *testing.T) {
	// Only the channel section; server section absent.
	p := writeConfig(t, `channel:
  instrumentation_key: "abc"
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.HTTPPort != DefaultHTTPPort {
		t.Errorf("http_port: got %d, want %d", cfg.Server.HTTPPort, DefaultHTTPPort)
	}
	if cfg.Server.Retention.TTL != DefaultRetentionTTL {
		t.Errorf("retention.ttl: got %v, want %v", cfg.Server.Retention.TTL, DefaultRetentionTTL)
	}
	if cfg.Server.Retention.MaxPerKey != DefaultMaxPerKey {
		t.Errorf("retention.max_per_key: got %d, want %d", cfg.Server.Retention.MaxPerKey, DefaultMaxPerKey)
	}
	if cfg.Server.MaxBodyBytes != DefaultMaxBodyBytes {
		t.Errorf("max_body_bytes: got %d, want %d", cfg.Server.MaxBodyBytes, DefaultMaxBodyBytes)
	}
	if len(cfg.Server.Faults) != 0 {
		t.Errorf("faults: got %v, want none", cfg.Server.Faults)
	}
}

func TestLoad_FullServer(t *testing.T) {
	p := writeConfig(t, `server:
  http_port: 9091
  app_id: "app-123"
  auth:
    mode: apikey
    key_env: MY_KEY
    header: x-collector-key
  retention:
    ttl: 10m
    max_per_key: 50
  faults:
    - status: 503
      count: 2
    - status: 429
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s := cfg.Server
	if s.HTTPPort != 9091 {
		t.Errorf("http_port: got %d, want 9091", s.HTTPPort)
	}
	if s.AppID != "app-123" {
		t.Errorf("app_id: got %q, want app-123", s.AppID)
	}
	if s.Auth.Mode != "apikey" || s.Auth.EffectiveHeader() != "x-collector-key" {
		t.Errorf("auth: got %+v", s.Auth)
	}
	if s.Retention.TTL != 10*time.Minute || s.Retention.MaxPerKey != 50 {
		t.Errorf("retention: got %+v", s.Retention)
	}
	want := []FaultStep{{Status: 503, Count: 2}, {Status: 429, Count: 1}}
	if len(s.Faults) != len(want) {
		t.Fatalf("faults: got %v, want %v", s.Faults, want)
	}
	for i := range want {
		if s.Faults[i] != want[i] {
			t.Errorf("faults[%d]: got %+v, want %+v", i, s.Faults[i], want[i])
		}
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := []struct {
		name, yaml, wantErr string
	}{
		{"port", "server:\n  http_port: 70000\n", "http_port"},
		{"auth mode", "server:\n  auth:\n    mode: mtls\n", "auth.mode"},
		{"ttl", "server:\n  retention:\n    ttl: 0s\n", "retention.ttl"},
		{"fault status", "server:\n  faults:\n    - status: 200\n", "faults[0].status"},
		{"yaml", "server: [\n", "parse yaml"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.yaml))
			if err == nil {
				t.Fatal("Load: expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Load error = %v, want it to mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load: expected error for missing file")
	}
}

func TestAuthConfig_Key(t *testing.T) {
	t.Setenv("COLLECTOR_KEY", "s3cret")
	a := AuthConfig{Mode: "apikey", KeyEnv: "COLLECTOR_KEY"}
	if got := a.Key(); got != "s3cret" {
		t.Errorf("Key: got %q, want s3cret", got)
	}
	if got := (AuthConfig{}).Key(); got != "" {
		t.Errorf("Key without env: got %q, want empty", got)
	}
	if got := (AuthConfig{}).EffectiveHeader(); got != "x-api-key" {
		t.Errorf("EffectiveHeader: got %q, want x-api-key", got)
	}
}
