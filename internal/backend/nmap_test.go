package backend

import (
	"context"
	"testing"

	"github.com/portsage/portsage/internal/scan"
)

const sampleXML = `<?xml version="1.0" encoding="UTF-8"?>
<nmaprun scanner="nmap" args="nmap -oX - -p 22,80,443,8443 -sV scanme.example.org" start="1766478131" version="7.94">
<host starttime="1766478131" endtime="1766478140">
<status state="up" reason="syn-ack"/>
<address addr="192.0.2.10" addrtype="ipv4"/>
<hostnames>
<hostname name="scanme.example.org" type="user"/>
<hostname name="ptr.example.org" type="PTR"/>
</hostnames>
<ports>
<port protocol="tcp" portid="22"><state state="open" reason="syn-ack"/><service name="ssh" product="OpenSSH" version="8.9p1 Ubuntu 3ubuntu0.6" extrainfo="Ubuntu Linux; protocol 2.0" method="probed" conf="10"/></port>
<port protocol="tcp" portid="80"><state state="closed" reason="conn-refused"/></port>
<port protocol="tcp" portid="443"><state state="open" reason="syn-ack"/><service name="http" product="nginx" version="1.18.0" tunnel="ssl" method="probed" conf="10"/></port>
<port protocol="tcp" portid="8443"><state state="filtered" reason="no-response"/></port>
</ports>
</host>
</nmaprun>`

func TestParseXML(t *testing.T) {
	findings, err := ParseXML([]byte(sampleXML))
	if err != nil {
		t.Fatalf("ParseXML: %v", err)
	}
	if len(findings) != 4 {
		t.Fatalf("got %d findings, want 4", len(findings))
	}

	byPort := make(map[int]Finding)
	for _, f := range findings {
		if f.Result.Host != "scanme.example.org" {
			t.Errorf("host = %q, want the user-requested name", f.Result.Host)
		}
		byPort[f.Result.Port] = f
	}

	ssh := byPort[22]
	if ssh.Result.State != scan.StateOpen {
		t.Errorf("port 22 state = %q", ssh.Result.State)
	}
	if ssh.Service == nil {
		t.Fatal("port 22 has no service info")
	}
	if ssh.Service.Service != "ssh" {
		t.Errorf("port 22 service = %q", ssh.Service.Service)
	}
	if ssh.Service.Version != "OpenSSH 8.9p1 Ubuntu 3ubuntu0.6" {
		t.Errorf("port 22 version = %q", ssh.Service.Version)
	}
	if ssh.Service.Banner != "Ubuntu Linux; protocol 2.0" {
		t.Errorf("port 22 banner = %q", ssh.Service.Banner)
	}
	if ssh.Service.Protocol != "tcp" {
		t.Errorf("port 22 protocol = %q", ssh.Service.Protocol)
	}

	closed := byPort[80]
	if closed.Result.State != scan.StateClosed {
		t.Errorf("port 80 state = %q", closed.Result.State)
	}
	if closed.Service != nil {
		t.Error("closed port carries service info")
	}
	if closed.Result.Error != "" {
		t.Errorf("closed port is not an error, got %q", closed.Result.Error)
	}

	tls := byPort[443]
	if tls.Result.State != scan.StateOpen {
		t.Errorf("port 443 state = %q", tls.Result.State)
	}
	if tls.Service.Service != "https" {
		t.Errorf("ssl-tunneled http mapped to %q, want https", tls.Service.Service)
	}
	if tls.Service.Version != "nginx 1.18.0" {
		t.Errorf("port 443 version = %q", tls.Service.Version)
	}

	filtered := byPort[8443]
	if filtered.Result.State != scan.StateError {
		t.Errorf("filtered port state = %q, want error", filtered.Result.State)
	}
	if filtered.Result.Error != "filtered (no-response)" {
		t.Errorf("filtered detail = %q", filtered.Result.Error)
	}
	if filtered.Service != nil {
		t.Error("filtered port carries service info")
	}
}

func TestParseXMLAddressFallback(t *testing.T) {
	const xmlNoNames = `<nmaprun><host>
<status state="up"/>
<address addr="10.1.2.3" addrtype="ipv4"/>
<ports><port protocol="tcp" portid="8080"><state state="open"/></port></ports>
</host></nmaprun>`

	findings, err := ParseXML([]byte(xmlNoNames))
	if err != nil {
		t.Fatalf("ParseXML: %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("got %d findings, want 1", len(findings))
	}
	if findings[0].Result.Host != "10.1.2.3" {
		t.Errorf("host = %q, want the address", findings[0].Result.Host)
	}
	// Open with no service element still yields a usable record.
	if findings[0].Service == nil || findings[0].Service.Service != "unknown" {
		t.Errorf("service = %+v, want unknown", findings[0].Service)
	}
}

func TestParseXMLEmptyRun(t *testing.T) {
	findings, err := ParseXML([]byte(`<nmaprun scanner="nmap"></nmaprun>`))
	if err != nil {
		t.Fatalf("ParseXML: %v", err)
	}
	if len(findings) != 0 {
		t.Errorf("empty run produced %d findings", len(findings))
	}
}

func TestParseXMLGarbage(t *testing.T) {
	if _, err := ParseXML([]byte("not xml at all <<<")); err == nil {
		t.Error("garbage input accepted")
	}
}

func TestScanValidatesInput(t *testing.T) {
	n := NewNmap(NmapOptions{})
	if _, err := n.Scan(context.Background(), nil, []int{80}); err == nil {
		t.Error("empty target list accepted")
	}
	if _, err := n.Scan(context.Background(), []string{"127.0.0.1"}, nil); err == nil {
		t.Error("empty port list accepted")
	}
}

func TestTechniqueFlag(t *testing.T) {
	cases := map[string]string{
		"":        "-sT",
		"connect": "-sT",
		"tcp":     "-sT",
		"SYN":     "-sS",
		"udp":     "-sU",
		"fin":     "-sF",
		"xmas":    "-sX",
		"null":    "-sN",
	}
	for method, want := range cases {
		got, err := TechniqueFlag(method)
		if err != nil {
			t.Errorf("TechniqueFlag(%q) failed: %v", method, err)
			continue
		}
		if got != want {
			t.Errorf("TechniqueFlag(%q) = %q, want %q", method, got, want)
		}
	}

	if _, err := TechniqueFlag("idle"); err == nil {
		t.Error("TechniqueFlag(idle) expected error")
	}
}
