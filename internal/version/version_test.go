package version

import (
	"strings"
	"testing"
)

func TestCurrent(t *testing.T) {
	info := Current()
	if info.Version != Version {
		t.Errorf("Version = %q, want %q", info.Version, Version)
	}
	if info.GoVersion == "" {
		t.Error("GoVersion is empty")
	}
	if !strings.Contains(info.Platform, "/") {
		t.Errorf("Platform = %q, want os/arch", info.Platform)
	}
}

func TestShort(t *testing.T) {
	tests := []struct {
		info Info
		want string
	}{
		{Info{Version: "1.2.0"}, "portsage 1.2.0"},
		{Info{Version: "dev", Commit: "abc1234"}, "portsage dev+abc1234"},
		{Info{Version: "dev", Commit: "none"}, "portsage dev"},
	}
	for _, tt := range tests {
		if got := tt.info.Short(); got != tt.want {
			t.Errorf("Short() = %q, want %q", got, tt.want)
		}
	}
}

func TestStringCarriesBuildRecord(t *testing.T) {
	info := Info{
		Version:   "1.2.0",
		Commit:    "abc1234",
		Date:      "2026-08-23",
		BuiltBy:   "goreleaser",
		GoVersion: "go1.21.5",
		Platform:  "linux/amd64",
	}
	out := info.String()
	for _, want := range []string{"portsage 1.2.0", "abc1234", "2026-08-23", "goreleaser", "go1.21.5", "linux/amd64"} {
		if !strings.Contains(out, want) {
			t.Errorf("String() missing %q:\n%s", want, out)
		}
	}
}

func TestShortCommit(t *testing.T) {
	if got := shortCommit("0123456789abcdef"); got != "0123456" {
		t.Errorf("shortCommit = %q, want 0123456", got)
	}
	if got := shortCommit("none"); got != "none" {
		t.Errorf("shortCommit(none) = %q, want none", got)
	}
}

func TestUserAgent(t *testing.T) {
	if got := UserAgent(); got != "portsage/"+Version {
		t.Errorf("UserAgent() = %q, want portsage/%s", got, Version)
	}
}
