package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"gopkg.in/yaml.v2"
)

// EnvOverlayPath names the environment variable that points at a user
// signature overlay file.
const EnvOverlayPath = "PORTSAGE_SIGNATURES"

// Overlay is a user-supplied extension of the builtin tables. Entries add
// new services or replace builtin data for existing ones. Probe payloads are
// plain strings; YAML double-quoted scalars carry \r\n escapes through.
type Overlay struct {
	Ports      map[int]string      `yaml:"ports,omitempty"`
	Signatures map[string][]string `yaml:"signatures,omitempty"`
	Probes     map[string]string   `yaml:"probes,omitempty"`
	Versions   []string            `yaml:"versions,omitempty"`
	WebTech    map[string][]string `yaml:"webtech,omitempty"`
}

// ValidationError describes one rejected overlay entry.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("overlay field %q: %s", e.Field, e.Message)
}

// LoadOverlay reads and validates an overlay file.
func LoadOverlay(path string) (*Overlay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read overlay: %w", err)
	}

	var o Overlay
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("parse overlay %s: %w", path, err)
	}

	if err := o.Validate(); err != nil {
		return nil, err
	}
	return &o, nil
}

// FindOverlay resolves the overlay path: an explicit path wins, then the
// environment variable, then the per-user default location. Returns "" when
// no overlay exists anywhere.
func FindOverlay(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p := os.Getenv(EnvOverlayPath); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	p := filepath.Join(home, ".portsage", "signatures.yaml")
	if _, err := os.Stat(p); err != nil {
		return ""
	}
	return p
}

// Validate checks every overlay entry before it can reach a catalog.
func (o *Overlay) Validate() error {
	for port, svc := range o.Ports {
		if port < 1 || port > 65535 {
			return ValidationError{Field: "ports", Message: fmt.Sprintf("port %d out of range 1-65535", port)}
		}
		if svc == "" {
			return ValidationError{Field: "ports", Message: fmt.Sprintf("port %d has empty service name", port)}
		}
	}
	for svc, markers := range o.Signatures {
		if svc == "" {
			return ValidationError{Field: "signatures", Message: "empty service name"}
		}
		if len(markers) == 0 {
			return ValidationError{Field: "signatures", Message: fmt.Sprintf("service %q has no markers", svc)}
		}
		for _, m := range markers {
			if m == "" {
				return ValidationError{Field: "signatures", Message: fmt.Sprintf("service %q has an empty marker", svc)}
			}
		}
	}
	for svc := range o.Probes {
		if svc == "" {
			return ValidationError{Field: "probes", Message: "empty service name"}
		}
	}
	for i, expr := range o.Versions {
		re, err := regexp.Compile(expr)
		if err != nil {
			return ValidationError{Field: "versions", Message: fmt.Sprintf("entry %d does not compile: %v", i, err)}
		}
		if re.NumSubexp() != 1 {
			return ValidationError{Field: "versions", Message: fmt.Sprintf("entry %d must have exactly one capture group, has %d", i, re.NumSubexp())}
		}
	}
	for name, markers := range o.WebTech {
		if name == "" {
			return ValidationError{Field: "webtech", Message: "empty technology name"}
		}
		if len(markers) == 0 {
			return ValidationError{Field: "webtech", Message: fmt.Sprintf("technology %q has no markers", name)}
		}
	}
	return nil
}

// WithOverlay returns a new catalog with the overlay merged in. The receiver
// is not modified; new services are appended to the match and probe orders,
// replaced ones keep their position.
func (c *Catalog) WithOverlay(o *Overlay) (*Catalog, error) {
	if o == nil {
		return c, nil
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}

	next := &Catalog{
		ports:    make(map[int]string, len(c.ports)+len(o.Ports)),
		probes:   make(map[string][]byte, len(c.probes)+len(o.Probes)),
		probeSeq: append([]string(nil), c.probeSeq...),
		sigs:     make(map[string][]string, len(c.sigs)+len(o.Signatures)),
		sigSeq:   append([]string(nil), c.sigSeq...),
		nudges:   c.nudges,
		versions: append([]*regexp.Regexp(nil), c.versions...),
		webTech:  append([]TechSignature(nil), c.webTech...),
	}
	for port, svc := range c.ports {
		next.ports[port] = svc
	}
	for svc, payload := range c.probes {
		next.probes[svc] = payload
	}
	for svc, markers := range c.sigs {
		next.sigs[svc] = markers
	}

	for port, svc := range o.Ports {
		next.ports[port] = svc
	}
	// New services append to the fixed orders; sort the keys so the merged
	// order stays deterministic across runs.
	for _, svc := range sortedKeys(o.Signatures) {
		if _, known := next.sigs[svc]; !known {
			next.sigSeq = append(next.sigSeq, svc)
		}
		next.sigs[svc] = append([]string(nil), o.Signatures[svc]...)
	}
	for _, svc := range sortedKeys(o.Probes) {
		if _, known := next.probes[svc]; !known {
			next.probeSeq = append(next.probeSeq, svc)
		}
		next.probes[svc] = []byte(o.Probes[svc])
	}
	for _, expr := range o.Versions {
		next.versions = append(next.versions, regexp.MustCompile(expr))
	}
	for _, name := range sortedKeys(o.WebTech) {
		markers := append([]string(nil), o.WebTech[name]...)
		replaced := false
		for i := range next.webTech {
			if next.webTech[i].Name == name {
				next.webTech[i] = TechSignature{Name: name, Markers: markers}
				replaced = true
				break
			}
		}
		if !replaced {
			next.webTech = append(next.webTech, TechSignature{Name: name, Markers: markers})
		}
	}

	return next, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
