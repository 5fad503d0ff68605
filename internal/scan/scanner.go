// Package scan implements concurrent TCP connect scanning with bounded
// worker pools, cooperative cancellation, and per-port result classification.
package scan

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/portsage/portsage/internal/probe"
)

// Default scanner tuning. Callers override via Options.
const (
	DefaultConcurrency = 100
	DefaultTimeout     = 3 * time.Second
)

// retryDelay is the pause between attempts for errored ports.
const retryDelay = 100 * time.Millisecond

// PortState describes the outcome of probing a single port.
type PortState string

const (
	StateOpen   PortState = "open"   // TCP handshake completed
	StateClosed PortState = "closed" // peer actively refused
	StateError  PortState = "error"  // timeout, unreachable, unresolved
)

// Phase tracks the lifecycle of a scan run.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseRunning
	PhaseCompleted
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRunning:
		return "running"
	case PhaseCompleted:
		return "completed"
	case PhaseStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// PortResult represents the outcome for one scanned port.
type PortResult struct {
	Host        string    `json:"host"`
	Port        int       `json:"port"`
	State       PortState `json:"state"`
	ServiceHint string    `json:"service_hint,omitempty"`
	RTT         float64   `json:"rtt"` // milliseconds
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// ResultFunc receives each PortResult as it is produced. It runs on
// whichever worker goroutine completed the port, so implementations
// must be safe for concurrent invocation.
type ResultFunc func(PortResult)

// Options contains configuration for a Scanner.
type Options struct {
	// Concurrency is the maximum number of simultaneous connection
	// attempts. Clamped to the number of ports per run.
	Concurrency int

	// Timeout bounds each individual connection attempt.
	Timeout time.Duration

	// RatePerSecond limits connection attempts across all workers.
	// Zero disables rate limiting.
	RatePerSecond int

	// Retries is the number of additional attempts for ports whose
	// connect errored. Refusals are definitive and never retried.
	Retries int

	// ServiceNamer, when set, annotates open ports with a likely
	// service name. It never influences classification.
	ServiceNamer func(port int) string

	// Logger receives debug output. Nil means no logging.
	Logger *zap.Logger
}

// Scanner performs TCP connect scans against a single host.
type Scanner struct {
	opts Options
	log  *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	phase   atomic.Int32
	stopped atomic.Bool
}

// NewScanner returns a Scanner with defaults applied for any zero
// option values.
func NewScanner(opts Options) *Scanner {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{
		opts: opts,
		log:  logger.With(zap.String("component", "scan")),
	}
}

// Phase reports the scanner's current lifecycle phase.
func (s *Scanner) Phase() Phase {
	return Phase(s.phase.Load())
}

// Stop cancels an in-flight Run. Workers observe the cancellation on
// their next dequeue and exit; results already recorded are retained.
// Stop is safe to call from any goroutine and is a no-op when nothing
// is running.
func (s *Scanner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped.Store(true)
	if s.cancel != nil {
		s.cancel()
	}
}

// Run scans every port in ports on host and returns one PortResult per
// distinct requested port, sorted by port number. onResult, when
// non-nil, is invoked synchronously for each result on the worker
// goroutine that produced it; callers needing single-goroutine delivery
// must serialize externally. Run blocks until every worker has exited,
// including after Stop or context cancellation, so no connection
// attempts outlive the call. A stopped run returns the partial results
// recorded before cancellation took effect.
func (s *Scanner) Run(ctx context.Context, host string, ports []int, onResult ResultFunc) ([]PortResult, error) {
	if host == "" {
		return nil, fmt.Errorf("no target specified")
	}
	if len(ports) == 0 {
		return nil, fmt.Errorf("no ports specified")
	}

	s.mu.Lock()
	if Phase(s.phase.Load()) == PhaseRunning {
		s.mu.Unlock()
		return nil, fmt.Errorf("scan already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.stopped.Store(false)
	s.phase.Store(int32(PhaseRunning))
	s.mu.Unlock()
	defer cancel()

	ports = sortUnique(ports)

	workers := s.opts.Concurrency
	if workers > len(ports) {
		workers = len(ports)
	}

	var limiter *time.Ticker
	if s.opts.RatePerSecond > 0 {
		interval := time.Second / time.Duration(s.opts.RatePerSecond)
		if interval <= 0 {
			// rates above 1e9 pps truncate the tick to zero, which
			// NewTicker rejects
			interval = time.Nanosecond
		}
		limiter = time.NewTicker(interval)
		defer limiter.Stop()
	}

	queue := make(chan int, len(ports))
	for _, port := range ports {
		queue <- port
	}
	close(queue)

	s.log.Debug("scan starting",
		zap.String("host", host),
		zap.Int("ports", len(ports)),
		zap.Int("workers", workers))

	var (
		resMu   sync.Mutex
		results = make([]PortResult, 0, len(ports))
	)
	record := func(res PortResult) {
		resMu.Lock()
		results = append(results, res)
		resMu.Unlock()
		if onResult != nil {
			onResult(res)
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for port := range queue {
				select {
				case <-runCtx.Done():
					return
				default:
				}
				if limiter != nil {
					select {
					case <-limiter.C:
					case <-runCtx.Done():
						return
					}
				}
				res, ok := s.scanPort(runCtx, host, port)
				if !ok {
					return
				}
				record(res)
			}
		}()
	}
	wg.Wait()

	final := PhaseCompleted
	if s.stopped.Load() || runCtx.Err() != nil {
		final = PhaseStopped
	}
	s.phase.Store(int32(final))

	sort.Slice(results, func(i, j int) bool { return results[i].Port < results[j].Port })

	s.log.Debug("scan finished",
		zap.String("host", host),
		zap.Int("results", len(results)),
		zap.String("phase", final.String()))

	return results, nil
}

// scanPort probes one port, retrying errored attempts up to
// opts.Retries times. Open and closed outcomes are final on first
// sight. The bool return is false only when the first attempt was
// aborted by cancellation, in which case no result is recorded.
func (s *Scanner) scanPort(ctx context.Context, host string, port int) (PortResult, bool) {
	res, ok := s.attemptPort(ctx, host, port)
	if !ok {
		return res, false
	}
	for attempt := 0; res.State == StateError && attempt < s.opts.Retries; attempt++ {
		select {
		case <-time.After(retryDelay):
		case <-ctx.Done():
			return res, true
		}
		next, ok := s.attemptPort(ctx, host, port)
		if !ok {
			return res, true
		}
		res = next
	}
	return res, true
}

// attemptPort performs a single TCP connect.
func (s *Scanner) attemptPort(ctx context.Context, host string, port int) (PortResult, bool) {
	start := time.Now()
	res := PortResult{
		Host:      host,
		Port:      port,
		Timestamp: start,
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	dialer := &net.Dialer{Timeout: s.opts.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	res.RTT = float64(time.Since(start)) / float64(time.Millisecond)

	if err != nil {
		if ctx.Err() != nil {
			return PortResult{}, false
		}
		kind := probe.Classify(err)
		if kind == probe.KindRefused {
			res.State = StateClosed
		} else {
			res.State = StateError
			res.Error = kind.String()
		}
		return res, true
	}
	conn.Close()

	res.State = StateOpen
	if s.opts.ServiceNamer != nil {
		res.ServiceHint = s.opts.ServiceNamer(port)
	}
	return res, true
}

func sortUnique(ports []int) []int {
	seen := make(map[int]struct{}, len(ports))
	out := make([]int, 0, len(ports))
	for _, p := range ports {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}
