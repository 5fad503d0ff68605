// Package backend integrates external scanners as alternate result
// sources. Findings are mapped into the same result shapes the native
// pipeline produces, so callers render them identically.
package backend

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/portsage/portsage/internal/identify"
	"github.com/portsage/portsage/internal/scan"
)

// Finding pairs a port result with whatever service detail the
// external scanner reported.
type Finding struct {
	Result  scan.PortResult
	Service *identify.ServiceInfo
}

// Nmap runs the external nmap binary and parses its XML output.
type Nmap struct {
	binary    string
	technique string
	detect    bool
	timeout   time.Duration
	log       *zap.Logger
}

// NmapOptions configures the backend.
type NmapOptions struct {
	// Binary overrides the executable name, default "nmap".
	Binary string
	// Technique is an nmap scan-technique option such as "-sS".
	// Empty leaves the choice to nmap.
	Technique string
	// ServiceDetection adds -sV so nmap reports product and version.
	ServiceDetection bool
	// Timeout is passed to nmap as --host-timeout when positive.
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewNmap builds the backend. The binary is not checked for existence
// until Scan runs.
func NewNmap(opts NmapOptions) *Nmap {
	binary := opts.Binary
	if binary == "" {
		binary = "nmap"
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Nmap{
		binary:    binary,
		technique: opts.Technique,
		detect:    opts.ServiceDetection,
		timeout:   opts.Timeout,
		log:       logger.With(zap.String("component", "nmap")),
	}
}

// TechniqueFlag maps a scan method name to the nmap option selecting
// it. Raw-socket techniques are the reason this backend exists; the
// native scanner only speaks full TCP connect.
func TechniqueFlag(method string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(method)) {
	case "", "connect", "tcp":
		return "-sT", nil
	case "syn":
		return "-sS", nil
	case "udp":
		return "-sU", nil
	case "fin":
		return "-sF", nil
	case "xmas":
		return "-sX", nil
	case "null":
		return "-sN", nil
	default:
		return "", fmt.Errorf("unknown scan method: %s", method)
	}
}

// Scan invokes nmap against the targets and returns one finding per
// port the scanner reported.
func (n *Nmap) Scan(ctx context.Context, targets []string, ports []int) ([]Finding, error) {
	if len(targets) == 0 {
		return nil, fmt.Errorf("no targets specified")
	}
	if len(ports) == 0 {
		return nil, fmt.Errorf("no ports specified")
	}

	args := []string{"-oX", "-", "-p", portSpec(ports)}
	if n.technique != "" {
		args = append(args, n.technique)
	}
	if n.detect {
		args = append(args, "-sV")
	}
	if n.timeout > 0 {
		args = append(args, "--host-timeout", n.timeout.String())
	}
	args = append(args, targets...)

	n.log.Debug("running external scanner", zap.Strings("args", args))

	cmd := exec.CommandContext(ctx, n.binary, args...)
	output, err := cmd.Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%s binary not found in PATH", n.binary)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("%s failed: %s", n.binary, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("%s failed: %w", n.binary, err)
	}

	return ParseXML(output)
}

// ParseXML converts nmap -oX output into findings. Open maps to Open,
// closed to Closed, and every other nmap state becomes Error with the
// nmap state as the detail.
func ParseXML(data []byte) ([]Finding, error) {
	var run nmapRun
	if err := xml.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to parse nmap output: %w", err)
	}

	now := time.Now()
	var findings []Finding
	for _, host := range run.Hosts {
		name := hostName(host)
		if name == "" {
			continue
		}
		for _, port := range host.Ports {
			f := Finding{
				Result: scan.PortResult{
					Host:      name,
					Port:      port.PortID,
					Timestamp: now,
				},
			}
			switch port.State.State {
			case "open":
				f.Result.State = scan.StateOpen
				f.Service = serviceInfo(port)
			case "closed":
				f.Result.State = scan.StateClosed
			default:
				f.Result.State = scan.StateError
				f.Result.Error = stateDetail(port.State)
			}
			findings = append(findings, f)
		}
	}
	return findings, nil
}

// hostName prefers the name the user asked for over the resolved
// address.
func hostName(host nmapHost) string {
	for _, hn := range host.Hostnames {
		if hn.Type == "user" && hn.Name != "" {
			return hn.Name
		}
	}
	for _, addr := range host.Addresses {
		if addr.AddrType == "ipv4" || addr.AddrType == "ipv6" {
			return addr.Addr
		}
	}
	if len(host.Addresses) > 0 {
		return host.Addresses[0].Addr
	}
	return ""
}

// serviceInfo maps nmap's service element opaquely; product and
// version strings are carried as reported, not re-derived.
func serviceInfo(port nmapPort) *identify.ServiceInfo {
	info := &identify.ServiceInfo{
		Service:  "unknown",
		Protocol: port.Protocol,
	}
	if info.Protocol == "" {
		info.Protocol = "tcp"
	}
	svc := port.Service
	if svc == nil {
		return info
	}
	if svc.Name != "" {
		info.Service = svc.Name
	}
	if svc.Tunnel == "ssl" && svc.Name == "http" {
		info.Service = "https"
	}
	info.Version = strings.TrimSpace(strings.Join(nonEmpty(svc.Product, svc.Version), " "))
	if svc.ExtraInfo != "" {
		info.Banner = svc.ExtraInfo
	}
	return info
}

func stateDetail(state nmapState) string {
	if state.Reason != "" {
		return fmt.Sprintf("%s (%s)", state.State, state.Reason)
	}
	return state.State
}

func portSpec(ports []int) string {
	parts := make([]string, len(ports))
	for i, p := range ports {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ",")
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// XML document shapes for nmap -oX output. Only the attributes the
// mapping needs are declared.

type nmapRun struct {
	XMLName xml.Name   `xml:"nmaprun"`
	Hosts   []nmapHost `xml:"host"`
}

type nmapHost struct {
	Status    nmapStatus     `xml:"status"`
	Addresses []nmapAddress  `xml:"address"`
	Hostnames []nmapHostname `xml:"hostnames>hostname"`
	Ports     []nmapPort     `xml:"ports>port"`
}

type nmapStatus struct {
	State string `xml:"state,attr"`
}

type nmapAddress struct {
	Addr     string `xml:"addr,attr"`
	AddrType string `xml:"addrtype,attr"`
}

type nmapHostname struct {
	Name string `xml:"name,attr"`
	Type string `xml:"type,attr"`
}

type nmapPort struct {
	Protocol string       `xml:"protocol,attr"`
	PortID   int          `xml:"portid,attr"`
	State    nmapState    `xml:"state"`
	Service  *nmapService `xml:"service"`
}

type nmapState struct {
	State  string `xml:"state,attr"`
	Reason string `xml:"reason,attr"`
}

type nmapService struct {
	Name      string `xml:"name,attr"`
	Product   string `xml:"product,attr"`
	Version   string `xml:"version,attr"`
	ExtraInfo string `xml:"extrainfo,attr"`
	Tunnel    string `xml:"tunnel,attr"`
}
