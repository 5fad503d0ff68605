// Package catalog holds the static service-recognition data used by the
// identifier pipeline: well-known port mappings, probe payloads, response
// signatures, version-extraction expressions and web technology markers.
// A Catalog is immutable once built and safe for concurrent use without
// locking; user overlays are merged before the catalog is handed out.
package catalog

import (
	"regexp"
	"sort"
	"strings"
)

// TechSignature names a web technology and the body substrings revealing it.
type TechSignature struct {
	Name    string
	Markers []string
}

// Catalog is the frozen lookup structure. All lookups are total: a miss
// returns the zero value, never an error.
type Catalog struct {
	ports    map[int]string
	probes   map[string][]byte
	probeSeq []string
	sigs     map[string][]string
	sigSeq   []string
	nudges   map[int][]byte
	versions []*regexp.Regexp
	webTech  []TechSignature
}

// Default builds the catalog from the builtin tables.
func Default() *Catalog {
	c := &Catalog{
		ports:    make(map[int]string, len(wellKnownPorts)),
		probes:   make(map[string][]byte, len(serviceProbes)),
		probeSeq: append([]string(nil), probeOrder...),
		sigs:     make(map[string][]string, len(serviceSignatures)),
		sigSeq:   append([]string(nil), signatureOrder...),
		nudges:   make(map[int][]byte, len(bannerNudges)),
		webTech:  append([]TechSignature(nil), webTechnologies...),
	}
	for port, svc := range wellKnownPorts {
		c.ports[port] = svc
	}
	for svc, payload := range serviceProbes {
		c.probes[svc] = payload
	}
	for svc, markers := range serviceSignatures {
		c.sigs[svc] = append([]string(nil), markers...)
	}
	for port, payload := range bannerNudges {
		c.nudges[port] = payload
	}
	for _, expr := range versionExpressions {
		c.versions = append(c.versions, regexp.MustCompile(expr))
	}
	return c
}

// ServiceForPort returns the well-known service name for a port, or "".
func (c *Catalog) ServiceForPort(port int) string {
	return c.ports[port]
}

// NudgeFor returns the passive-stage payload for a port, or nil when the
// port's protocol is expected to greet on its own.
func (c *Catalog) NudgeFor(port int) []byte {
	return c.nudges[port]
}

// ProbeServices returns the active-probe candidates in catalog order.
func (c *Catalog) ProbeServices() []string {
	return append([]string(nil), c.probeSeq...)
}

// PayloadFor returns the probe payload registered for a service. An empty
// payload is meaningful (connect-only probe); a missing service returns nil
// as well, so callers iterate ProbeServices rather than guessing names.
func (c *Catalog) PayloadFor(service string) []byte {
	return c.probes[service]
}

// SignaturesFor returns the recognition markers for a service.
func (c *Catalog) SignaturesFor(service string) []string {
	return c.sigs[service]
}

// MatchService scans data against every service's markers in catalog order
// and returns the first service with a hit.
func (c *Catalog) MatchService(data []byte) (string, bool) {
	lowered := strings.ToLower(string(data))
	for _, svc := range c.sigSeq {
		if c.matchLowered(lowered, svc) {
			return svc, true
		}
	}
	return "", false
}

// MatchesService reports whether data matches the markers of one specific
// service; used to validate an active probe's response.
func (c *Catalog) MatchesService(data []byte, service string) bool {
	return c.matchLowered(strings.ToLower(string(data)), service)
}

func (c *Catalog) matchLowered(lowered, service string) bool {
	for _, marker := range c.sigs[service] {
		if strings.Contains(lowered, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}

// ExtractVersion applies the version expressions in order and returns the
// first capture, trimmed, or "".
func (c *Catalog) ExtractVersion(text string) string {
	for _, re := range c.versions {
		if m := re.FindStringSubmatch(text); len(m) > 1 {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// Technologies matches body content against the web technology table and
// returns the names that hit, in table order, each at most once.
func (c *Catalog) Technologies(content []byte) []string {
	lowered := strings.ToLower(string(content))
	var found []string
	for _, tech := range c.webTech {
		for _, marker := range tech.Markers {
			if strings.Contains(lowered, strings.ToLower(marker)) {
				found = append(found, tech.Name)
				break
			}
		}
	}
	return found
}

// Ports returns the mapped port numbers in ascending order.
func (c *Catalog) Ports() []int {
	out := make([]int, 0, len(c.ports))
	for port := range c.ports {
		out = append(out, port)
	}
	sort.Ints(out)
	return out
}

// ServiceNames returns the services with signature entries in match order.
func (c *Catalog) ServiceNames() []string {
	return append([]string(nil), c.sigSeq...)
}
