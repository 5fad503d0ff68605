// Package identify fingerprints services on open TCP ports. It layers
// heuristics from cheap to expensive: well-known port lookup, passive
// banner capture, active protocol probes, and TLS handshake inspection.
// Each stage contributes what it can; a failing stage never aborts the
// pipeline.
package identify

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/portsage/portsage/internal/catalog"
	"github.com/portsage/portsage/internal/probe"
)

// DefaultTimeout bounds each network operation inside the pipeline.
const DefaultTimeout = 5 * time.Second

// ServiceInfo describes what was learned about a single open port.
type ServiceInfo struct {
	Service      string   `json:"service"`
	Version      string   `json:"version,omitempty"`
	Banner       string   `json:"banner,omitempty"`
	Protocol     string   `json:"protocol"`
	TLS          *TLSInfo `json:"tls,omitempty"`
	ServerHeader string   `json:"server_header,omitempty"`
	PoweredBy    string   `json:"powered_by,omitempty"`
	Technologies []string `json:"technologies,omitempty"`
}

// TLSInfo holds certificate metadata observed during handshake
// inspection.
type TLSInfo struct {
	Version   string    `json:"version"`
	Subject   string    `json:"subject,omitempty"`
	Issuer    string    `json:"issuer,omitempty"`
	NotBefore time.Time `json:"not_before"`
	NotAfter  time.Time `json:"not_after"`
}

// MergeWeb folds web inspection findings into the service record
// without erasing anything already known.
func (s *ServiceInfo) MergeWeb(web *WebInfo) {
	if web == nil {
		return
	}
	if web.Server != "" {
		s.ServerHeader = web.Server
	}
	if web.PoweredBy != "" {
		s.PoweredBy = web.PoweredBy
	}
	if len(web.Technologies) > 0 {
		s.Technologies = web.Technologies
	}
}

// Config contains construction options for an Identifier.
type Config struct {
	Catalog *catalog.Catalog
	Grabber *probe.Grabber
	Timeout time.Duration
	Logger  *zap.Logger
}

// Identifier runs the fingerprinting pipeline against open ports.
type Identifier struct {
	catalog *catalog.Catalog
	grabber *probe.Grabber
	timeout time.Duration
	log     *zap.Logger
}

// New returns an Identifier with defaults applied for any unset config
// fields.
func New(cfg Config) *Identifier {
	if cfg.Catalog == nil {
		cfg.Catalog = catalog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Grabber == nil {
		cfg.Grabber = probe.NewGrabber(probe.GrabberConfig{Timeout: cfg.Timeout, Logger: cfg.Logger})
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Identifier{
		catalog: cfg.Catalog,
		grabber: cfg.Grabber,
		timeout: cfg.Timeout,
		log:     logger.With(zap.String("component", "identify")),
	}
}

// Identify fingerprints the service behind host:port. It always
// returns a usable record; the zero knowledge outcome is
// service="unknown" with everything else empty. Later stages override
// the service name when they produce a positive match but never erase
// a banner or version captured earlier.
func (id *Identifier) Identify(ctx context.Context, host string, port int) *ServiceInfo {
	info := &ServiceInfo{Service: "unknown", Protocol: "tcp"}

	// Stage 1: well-known port table
	if svc := id.catalog.ServiceForPort(port); svc != "" {
		info.Service = svc
	}

	// Stage 2: passive banner capture, with a nudge payload on ports
	// where servers stay silent until the client speaks
	raw, err := id.grabber.Grab(ctx, host, port, id.catalog.NudgeFor(port), probe.BannerCap)
	if err == nil && len(raw) > 0 {
		info.Banner = decodeBanner(raw)
		if svc, ok := id.catalog.MatchService(raw); ok {
			info.Service = svc
		}
		if v := id.catalog.ExtractVersion(info.Banner); v != "" {
			info.Version = v
		}
	}

	// Stage 3: active probes, one fresh connection per candidate
	if svc, resp := id.probeService(ctx, host, port); svc != "" {
		info.Service = svc
		if info.Banner == "" && len(resp) > 0 {
			info.Banner = decodeBanner(resp)
		}
		if info.Version == "" {
			if v := id.catalog.ExtractVersion(string(resp)); v != "" {
				info.Version = v
			}
		}
	}

	// Stage 4: TLS handshake inspection
	if port == 443 || port == 8443 || info.Service == "https" {
		if tlsInfo, err := id.InspectTLS(ctx, host, port); err == nil {
			info.Service = "https"
			info.TLS = tlsInfo
		} else {
			id.log.Debug("tls inspection failed",
				zap.String("host", host),
				zap.Int("port", port),
				zap.Error(err))
		}
	}

	return info
}

// probeService tries each catalog probe in order and returns the first
// service whose response matches its own signatures, along with the
// response bytes.
func (id *Identifier) probeService(ctx context.Context, host string, port int) (string, []byte) {
	for _, service := range id.catalog.ProbeServices() {
		if ctx.Err() != nil {
			return "", nil
		}
		resp, err := id.grabber.Grab(ctx, host, port, id.catalog.PayloadFor(service), 1024)
		if err != nil || len(resp) == 0 {
			continue
		}
		if id.catalog.MatchesService(resp, service) {
			return service, resp
		}
	}
	return "", nil
}

// decodeBanner converts raw peer bytes to trimmed, valid UTF-8 text.
func decodeBanner(raw []byte) string {
	return strings.TrimSpace(strings.ToValidUTF8(string(raw), "�"))
}
