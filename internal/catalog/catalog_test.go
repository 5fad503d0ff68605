package catalog

import (
	"strings"
	"testing"
)

func TestServiceForPort(t *testing.T) {
	c := Default()

	cases := map[int]string{
		22:    "ssh",
		80:    "http",
		443:   "https",
		3306:  "mysql",
		6379:  "redis",
		27017: "mongodb",
		8080:  "http-proxy",
	}
	for port, want := range cases {
		if got := c.ServiceForPort(port); got != want {
			t.Errorf("ServiceForPort(%d) = %q, want %q", port, got, want)
		}
	}

	if got := c.ServiceForPort(49999); got != "" {
		t.Errorf("unmapped port should return empty, got %q", got)
	}
}

func TestMatchService(t *testing.T) {
	c := Default()

	cases := []struct {
		name   string
		banner string
		want   string
	}{
		{"openssh", "SSH-2.0-OpenSSH_8.9p1 Ubuntu-3ubuntu0.1", "ssh"},
		{"http response", "HTTP/1.1 200 OK\r\nServer: nginx/1.18.0", "http"},
		{"html only", "<!DOCTYPE html><html></html>", "http"},
		{"esmtp greeting", "220 mail.example.com ESMTP Postfix", "smtp"},
		{"plain ftp", "220 Welcome to Pure-FTPd", "ftp"},
		{"pop3", "+OK POP3 server ready", "pop3"},
		{"imap", "* OK [CAPABILITY IMAP4rev1] Dovecot ready.", "imap"},
		{"mariadb handshake", "mysql_native_password", "mysql"},
		{"redis pong", "+PONG", "redis"},
		{"case insensitive", "openssh on duty", "ssh"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := c.MatchService([]byte(tc.banner))
			if !ok {
				t.Fatalf("no match for %q", tc.banner)
			}
			if got != tc.want {
				t.Errorf("MatchService(%q) = %q, want %q", tc.banner, got, tc.want)
			}
		})
	}

	if _, ok := c.MatchService([]byte("nothing recognizable here")); ok {
		t.Error("expected no match for unrecognizable banner")
	}
}

func TestMatchesService(t *testing.T) {
	c := Default()

	if !c.MatchesService([]byte("220 ProFTPD Server"), "ftp") {
		t.Error("ftp response should validate against ftp markers")
	}
	if c.MatchesService([]byte("+PONG"), "mysql") {
		t.Error("redis response must not validate as mysql")
	}
}

func TestExtractVersion(t *testing.T) {
	c := Default()

	cases := []struct {
		name   string
		banner string
		want   string
	}{
		{"openssh", "SSH-2.0-OpenSSH_8.9p1", "8.9p1"},
		{"server header wins first", "HTTP/1.1 200 OK\r\nServer: nginx/1.18.0\r\n", "nginx/1.18.0"},
		{"apache", "Apache/2.4.41 (Ubuntu)", "2.4.41"},
		{"no version", "totally blank", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := c.ExtractVersion(tc.banner); got != tc.want {
				t.Errorf("ExtractVersion(%q) = %q, want %q", tc.banner, got, tc.want)
			}
		})
	}
}

func TestNudges(t *testing.T) {
	c := Default()

	for _, port := range []int{80, 443, 8080, 8443} {
		if nudge := c.NudgeFor(port); !strings.HasPrefix(string(nudge), "GET / HTTP/1.0") {
			t.Errorf("port %d should carry an HTTP nudge, got %q", port, nudge)
		}
	}
	if nudge := c.NudgeFor(25); !strings.HasPrefix(string(nudge), "EHLO") {
		t.Errorf("port 25 should carry an SMTP nudge, got %q", nudge)
	}
	if nudge := c.NudgeFor(110); !strings.HasPrefix(string(nudge), "USER") {
		t.Errorf("port 110 should carry a POP3 nudge, got %q", nudge)
	}
	if c.NudgeFor(22) != nil {
		t.Error("ssh greets on its own, no nudge expected")
	}
}

func TestProbeCandidates(t *testing.T) {
	c := Default()

	seq := c.ProbeServices()
	if len(seq) == 0 {
		t.Fatal("no probe candidates registered")
	}

	// Connect-only probes are registered with empty payloads, which is
	// distinct from not being registered at all.
	for _, svc := range []string{"ftp", "pop3", "telnet"} {
		found := false
		for _, s := range seq {
			if s == svc {
				found = true
			}
		}
		if !found {
			t.Errorf("connect-only candidate %q missing from probe order", svc)
		}
		if len(c.PayloadFor(svc)) != 0 {
			t.Errorf("%q should have an empty payload", svc)
		}
	}

	if string(c.PayloadFor("redis")) != "PING\r\n" {
		t.Errorf("unexpected redis payload %q", c.PayloadFor("redis"))
	}
	if len(c.PayloadFor("mongodb")) != 68 {
		t.Errorf("mongodb payload should be 68 bytes, got %d", len(c.PayloadFor("mongodb")))
	}
}

func TestTechnologies(t *testing.T) {
	c := Default()

	body := `<html><head><link href="/wp-content/themes/x/style.css">
	<script src="jquery.min.js"></script></head>
	<body class="wp-includes"></body></html>`

	techs := c.Technologies([]byte(body))

	wordpress := 0
	jquery := 0
	for _, name := range techs {
		switch name {
		case "WordPress":
			wordpress++
		case "jQuery":
			jquery++
		}
	}
	if wordpress != 1 {
		t.Errorf("WordPress should appear exactly once, got %d in %v", wordpress, techs)
	}
	if jquery != 1 {
		t.Errorf("jQuery should appear exactly once, got %d in %v", jquery, techs)
	}

	if got := c.Technologies([]byte("plain text, no markers")); len(got) != 0 {
		t.Errorf("expected no technologies, got %v", got)
	}
}

func TestPortsSorted(t *testing.T) {
	ports := Default().Ports()
	for i := 1; i < len(ports); i++ {
		if ports[i-1] >= ports[i] {
			t.Fatalf("ports not strictly ascending at %d: %v", i, ports)
		}
	}
}
