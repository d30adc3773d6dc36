package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Errorf("expected default addr :8080, got %s", cfg.Server.Addr)
	}
	if cfg.Server.BasePath != "/admin" {
		t.Errorf("expected default base path /admin, got %s", cfg.Server.BasePath)
	}
	if cfg.Backend.URL != "http://localhost:11111" {
		t.Errorf("unexpected backend url: %s", cfg.Backend.URL)
	}
	if cfg.QR.PollInterval != 2*time.Second {
		t.Errorf("unexpected poll interval: %s", cfg.QR.PollInterval)
	}
	if cfg.QR.AutoRefresh != 180*time.Second {
		t.Errorf("unexpected auto refresh: %s", cfg.QR.AutoRefresh)
	}
	if !cfg.ImageProxy.Enabled {
		t.Errorf("expected image proxy enabled by default")
	}
	if !cfg.Session.GeneratedKeys || len(cfg.Session.HashKey) != 32 || len(cfg.Session.BlockKey) != 32 {
		t.Errorf("expected generated session keys, got %+v", cfg.Session)
	}
}

func TestLoadOverrides(t *testing.T) {
	env := map[string]string{
		"ADMIN_BACKEND_URL":         "https://api.example.com/",
		"ADMIN_QR_AUTO_REFRESH":     "300",
		"ADMIN_QR_POLL_INTERVAL":    "1500ms",
		"ADMIN_SESSION_HASH_KEY":    "hash-key",
		"ADMIN_IMAGE_PROXY_ENABLED": "off",
		"LOG_LEVEL":                 "debug",
	}
	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Backend.URL != "https://api.example.com" {
		t.Errorf("expected trailing slash trimmed, got %s", cfg.Backend.URL)
	}
	if cfg.QR.AutoRefresh != 300*time.Second {
		t.Errorf("expected 300s auto refresh, got %s", cfg.QR.AutoRefresh)
	}
	if cfg.QR.PollInterval != 1500*time.Millisecond {
		t.Errorf("unexpected poll interval: %s", cfg.QR.PollInterval)
	}
	if cfg.Session.GeneratedKeys || string(cfg.Session.HashKey) != "hash-key" {
		t.Errorf("expected configured hash key, got %+v", cfg.Session)
	}
	if cfg.ImageProxy.Enabled {
		t.Errorf("expected image proxy disabled")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("unexpected log level: %s", cfg.Log.Level)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	env := map[string]string{
		"ADMIN_QR_AUTO_REFRESH":  "90s",
		"ADMIN_BACKEND_URL":      "not a url",
		"ADMIN_QR_POLL_INTERVAL": "soon",
	}
	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	want := map[string]bool{"QR.AutoRefresh": true, "Backend.URL": true, "ADMIN_QR_POLL_INTERVAL": true}
	for _, field := range vErr.Fields() {
		delete(want, field)
	}
	if len(want) != 0 {
		t.Fatalf("missing fields %v in %v", want, vErr.Fields())
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "console.yaml")
	envPath := filepath.Join(dir, ".env")

	yamlBody := "server:\n  addr: \":9000\"\n  basePath: /console\nbackend:\n  url: http://yaml.local\nqr:\n  autoRefresh: 120s\n"
	if err := os.WriteFile(yamlPath, []byte(yamlBody), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(envPath, []byte("export ADMIN_BACKEND_URL=\"http://dotenv.local\"\n# comment\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(context.Background(),
		WithEnvFile(envPath),
		WithoutSystemEnv(),
		WithEnvMap(map[string]string{"ADMIN_CONFIG_FILE": yamlPath, "ADMIN_HTTP_ADDR": ":7000"}),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Addr != ":7000" {
		t.Errorf("explicit map should win, got %s", cfg.Server.Addr)
	}
	if cfg.Backend.URL != "http://dotenv.local" {
		t.Errorf(".env should override yaml, got %s", cfg.Backend.URL)
	}
	if cfg.Server.BasePath != "/console" {
		t.Errorf("yaml should override defaults, got %s", cfg.Server.BasePath)
	}
	if cfg.QR.AutoRefresh != 120*time.Second {
		t.Errorf("unexpected auto refresh %s", cfg.QR.AutoRefresh)
	}
}

func TestValidAutoRefresh(t *testing.T) {
	for _, d := range []time.Duration{0, 120 * time.Second, 180 * time.Second, 300 * time.Second} {
		if !ValidAutoRefresh(d) {
			t.Errorf("expected %s valid", d)
		}
	}
	if ValidAutoRefresh(time.Minute) {
		t.Errorf("expected 1m invalid")
	}
}
