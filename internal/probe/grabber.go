// Package probe provides the low-level TCP connect-and-read primitive shared
// by the port scanner and the service identifier, together with the
// classification of network errors into the outcomes callers act on.
package probe

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Default tuning for banner collection. Servers that greet on connect
// typically do so well inside the settle window; the read window only has to
// cover the first burst of data, not a whole session.
const (
	DefaultTimeout     = 5 * time.Second
	DefaultSettleDelay = 500 * time.Millisecond
	DefaultReadWindow  = 1 * time.Second

	// BannerCap bounds plain banner reads; ContentCap bounds full-body
	// fetches during web inspection.
	BannerCap  = 4096
	ContentCap = 100000
)

// Grabber opens TCP connections with hard deadlines and collects whatever the
// peer sends back. Expected network failures (refused, reset, timeout) are
// returned as errors for the caller to classify; they are never fatal.
type Grabber struct {
	timeout time.Duration
	settle  time.Duration
	readWin time.Duration
	logger  *zap.Logger
}

// GrabberConfig configures connection behavior. Zero values fall back to the
// package defaults.
type GrabberConfig struct {
	Timeout     time.Duration
	SettleDelay time.Duration
	ReadWindow  time.Duration
	Logger      *zap.Logger
}

// NewGrabber creates a Grabber with the given configuration.
func NewGrabber(cfg GrabberConfig) *Grabber {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = DefaultSettleDelay
	}
	if cfg.ReadWindow <= 0 {
		cfg.ReadWindow = DefaultReadWindow
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Grabber{
		timeout: cfg.Timeout,
		settle:  cfg.SettleDelay,
		readWin: cfg.ReadWindow,
		logger:  cfg.Logger.With(zap.String("component", "probe")),
	}
}

// Timeout returns the connect-phase deadline the grabber dials with.
func (g *Grabber) Timeout() time.Duration {
	return g.timeout
}

// Grab connects to host:port, optionally writes payload, waits for the peer
// to respond and returns the collected bytes, capped at max. An empty result
// with a nil error means the connection opened but the peer stayed silent.
func (g *Grabber) Grab(ctx context.Context, host string, port int, payload []byte, max int) ([]byte, error) {
	if max <= 0 {
		max = BannerCap
	}

	conn, err := g.Dial(ctx, host, port)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	return g.collect(conn, payload, max)
}

// Dial opens a TCP connection with the grabber's connect deadline.
func (g *Grabber) Dial(ctx context.Context, host string, port int) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: g.timeout}
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return conn, nil
}

// collect writes the payload (if any), lets the peer settle and then reads
// until the cap is reached, the read window expires or the peer closes.
func (g *Grabber) collect(conn net.Conn, payload []byte, max int) ([]byte, error) {
	if len(payload) > 0 {
		conn.SetWriteDeadline(time.Now().Add(g.timeout))
		if _, err := conn.Write(payload); err != nil {
			return nil, fmt.Errorf("write payload: %w", err)
		}
	}

	// Give banner-on-connect servers a moment to speak first.
	time.Sleep(g.settle)

	buf := make([]byte, 0, minInt(max, BannerCap))
	chunk := make([]byte, 1024)
	deadline := time.Now().Add(g.readWin)
	conn.SetReadDeadline(deadline)

	for len(buf) < max {
		n, err := conn.Read(chunk)
		if n > 0 {
			room := max - len(buf)
			if n > room {
				n = room
			}
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			// EOF and deadline expiry both end collection; whatever
			// arrived before is still a valid banner.
			break
		}
	}

	g.logger.Debug("banner collected",
		zap.String("remote", conn.RemoteAddr().String()),
		zap.Int("bytes", len(buf)))

	return buf, nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
