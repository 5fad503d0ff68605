package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func writeOverlay(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "signatures.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write overlay: %v", err)
	}
	return path
}

func TestLoadOverlayAndMerge(t *testing.T) {
	path := writeOverlay(t, `
ports:
  9200: elasticsearch
signatures:
  elasticsearch:
    - "You Know, for Search"
probes:
  elasticsearch: "GET / HTTP/1.0\r\n\r\n"
versions:
  - '(?i)"number"\s*:\s*"([^"]+)"'
webtech:
  Hugo:
    - hugo-generator
`)

	o, err := LoadOverlay(path)
	if err != nil {
		t.Fatalf("LoadOverlay failed: %v", err)
	}

	c, err := Default().WithOverlay(o)
	if err != nil {
		t.Fatalf("WithOverlay failed: %v", err)
	}

	if got := c.ServiceForPort(9200); got != "elasticsearch" {
		t.Errorf("ServiceForPort(9200) = %q, want elasticsearch", got)
	}

	svc, ok := c.MatchService([]byte(`{"tagline":"You Know, for Search"}`))
	if !ok || svc != "elasticsearch" {
		t.Errorf("overlay signature not matched, got %q ok=%v", svc, ok)
	}

	if string(c.PayloadFor("elasticsearch")) != "GET / HTTP/1.0\r\n\r\n" {
		t.Errorf("overlay probe payload mangled: %q", c.PayloadFor("elasticsearch"))
	}

	if got := c.ExtractVersion(`{"version":{"number":"8.11.0"}}`); got != "8.11.0" {
		t.Errorf("overlay version pattern not applied, got %q", got)
	}

	techs := c.Technologies([]byte(`<meta name="generator" content="hugo-generator">`))
	found := false
	for _, name := range techs {
		if name == "Hugo" {
			found = true
		}
	}
	if !found {
		t.Errorf("overlay webtech not matched, got %v", techs)
	}
}

func TestOverlayDoesNotMutateBase(t *testing.T) {
	base := Default()
	o := &Overlay{Ports: map[int]string{22: "not-ssh"}}

	merged, err := base.WithOverlay(o)
	if err != nil {
		t.Fatalf("WithOverlay failed: %v", err)
	}

	if got := base.ServiceForPort(22); got != "ssh" {
		t.Errorf("base catalog mutated: ServiceForPort(22) = %q", got)
	}
	if got := merged.ServiceForPort(22); got != "not-ssh" {
		t.Errorf("merge missed: ServiceForPort(22) = %q", got)
	}
}

func TestOverlayValidation(t *testing.T) {
	cases := []struct {
		name    string
		overlay Overlay
	}{
		{"port too small", Overlay{Ports: map[int]string{0: "x"}}},
		{"port too large", Overlay{Ports: map[int]string{65536: "x"}}},
		{"empty service for port", Overlay{Ports: map[int]string{9999: ""}}},
		{"no markers", Overlay{Signatures: map[string][]string{"svc": {}}}},
		{"empty marker", Overlay{Signatures: map[string][]string{"svc": {""}}}},
		{"bad regex", Overlay{Versions: []string{"("}}},
		{"no capture group", Overlay{Versions: []string{"plainmatch"}}},
		{"two capture groups", Overlay{Versions: []string{"(a)(b)"}}},
		{"webtech no markers", Overlay{WebTech: map[string][]string{"Thing": {}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.overlay.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestLoadOverlayRejectsBadFile(t *testing.T) {
	if _, err := LoadOverlay(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := writeOverlay(t, "versions:\n  - '('\n")
	if _, err := LoadOverlay(path); err == nil {
		t.Error("expected validation error for bad regex")
	}
}

func TestFindOverlayPrecedence(t *testing.T) {
	explicit := writeOverlay(t, "ports: {}\n")

	t.Setenv(EnvOverlayPath, "/env/path.yaml")
	if got := FindOverlay(explicit); got != explicit {
		t.Errorf("explicit path should win, got %q", got)
	}
	if got := FindOverlay(""); got != "/env/path.yaml" {
		t.Errorf("env path should win over default, got %q", got)
	}
}
