package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultMatchesMediumProfile(t *testing.T) {
	cfg := Default()
	medium := Profiles["medium"]

	if cfg.Profile != "medium" {
		t.Errorf("profile = %q", cfg.Profile)
	}
	if cfg.Concurrency != medium.Concurrency {
		t.Errorf("concurrency = %d, want %d", cfg.Concurrency, medium.Concurrency)
	}
	if cfg.Timeout != medium.Timeout {
		t.Errorf("timeout = %v, want %v", cfg.Timeout, medium.Timeout)
	}
	if cfg.Rate != medium.Rate {
		t.Errorf("rate = %d, want %d", cfg.Rate, medium.Rate)
	}
	if !cfg.Identify {
		t.Error("identification should default on")
	}
}

func TestApplyProfile(t *testing.T) {
	cfg, err := Default().ApplyProfile("fast")
	if err != nil {
		t.Fatalf("ApplyProfile failed: %v", err)
	}
	if cfg.Concurrency != 500 || cfg.Rate != 1000 || cfg.Timeout != time.Second {
		t.Errorf("fast profile not applied: %+v", cfg)
	}

	if _, err := Default().ApplyProfile("warp"); err == nil {
		t.Error("expected error for unknown profile")
	}
}

func TestProfileOrderCoversAllProfiles(t *testing.T) {
	if len(ProfileOrder) != len(Profiles) {
		t.Fatalf("ProfileOrder has %d entries, Profiles has %d", len(ProfileOrder), len(Profiles))
	}
	for _, name := range ProfileOrder {
		if _, ok := Profiles[name]; !ok {
			t.Errorf("ProfileOrder names unknown profile %q", name)
		}
	}
}

func TestNormalizeClamps(t *testing.T) {
	cfg := Config{
		Concurrency: 5000,
		Timeout:     time.Millisecond,
		Rate:        -10,
		Retries:     -1,
	}.Normalize()

	if cfg.Concurrency != MaxConcurrency {
		t.Errorf("concurrency = %d, want %d", cfg.Concurrency, MaxConcurrency)
	}
	if cfg.Timeout != MinTimeout {
		t.Errorf("timeout = %v, want %v", cfg.Timeout, MinTimeout)
	}
	if cfg.Rate != 0 {
		t.Errorf("rate = %d, want 0", cfg.Rate)
	}
	if cfg.Retries != 0 {
		t.Errorf("retries = %d, want 0", cfg.Retries)
	}

	cfg = Config{Timeout: 5 * time.Minute}.Normalize()
	if cfg.Timeout != MaxTimeout {
		t.Errorf("timeout = %v, want %v", cfg.Timeout, MaxTimeout)
	}
	if cfg.Concurrency != Profiles["medium"].Concurrency {
		t.Errorf("zero concurrency should fall back to medium, got %d", cfg.Concurrency)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "profile: fast\nports: top100\ntimeout: 250ms\nwebtech: true\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Profile != "fast" {
		t.Errorf("profile = %q, want fast", cfg.Profile)
	}
	// Explicit timeout overrides the profile's 1s
	if cfg.Timeout != 250*time.Millisecond {
		t.Errorf("timeout = %v, want 250ms", cfg.Timeout)
	}
	// Unset keys keep the profile values
	if cfg.Concurrency != 500 {
		t.Errorf("concurrency = %d, want 500 from fast profile", cfg.Concurrency)
	}
	if cfg.Ports != "top100" {
		t.Errorf("ports = %q, want top100", cfg.Ports)
	}
	if !cfg.WebTech {
		t.Error("webtech should be enabled")
	}
	// Identify was not mentioned, so the default holds
	if !cfg.Identify {
		t.Error("identify default lost during load")
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config path")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir()) // keep a real ~/.portsage out of the search path
	t.Setenv("PORTSAGE_CONCURRENCY", "3")
	t.Setenv("PORTSAGE_IDENTIFY", "false")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Concurrency != 3 {
		t.Errorf("concurrency = %d, want 3 from environment", cfg.Concurrency)
	}
	if cfg.Identify {
		t.Error("identify should be disabled via environment")
	}
}

func TestLoadRejectsUnknownProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("profile: warp\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for unknown profile")
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portsage", "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("generated config does not load: %v", err)
	}
	if cfg.Profile != "medium" {
		t.Errorf("profile = %q, want medium", cfg.Profile)
	}

	if err := WriteDefault(path); err == nil {
		t.Error("expected error when file exists")
	}
}
