// Package session coordinates port scanning and service identification
// across a target set, delivering results incrementally through
// callbacks while aggregating a final report.
package session

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
	"golang.org/x/sync/semaphore"

	"github.com/portsage/portsage/internal/catalog"
	"github.com/portsage/portsage/internal/config"
	"github.com/portsage/portsage/internal/identify"
	"github.com/portsage/portsage/internal/probe"
	"github.com/portsage/portsage/internal/scan"
)

// DefaultIdentifyLimit bounds concurrent fingerprinting goroutines. A
// scan can surface open ports far faster than the identification
// pipeline drains them; the semaphore keeps the backlog from growing
// into one goroutine per open port.
const DefaultIdentifyLimit = 8

// Callbacks deliver results as they are produced. Every callback runs
// on a worker goroutine, concurrently with other callbacks; nil
// callbacks are skipped.
type Callbacks struct {
	// OnPort fires once per scanned port.
	OnPort func(scan.PortResult)
	// OnService fires once per identified open port.
	OnService func(host string, port int, info *identify.ServiceInfo)
	// OnProgress fires after each port completes, with the number of
	// finished ports and the total expected.
	OnProgress func(done, total int)
}

// Row is one port's entry in the final report.
type Row struct {
	Host    string                `json:"host"`
	Port    int                   `json:"port"`
	State   scan.PortState        `json:"state"`
	Error   string                `json:"error,omitempty"`
	RTT     float64               `json:"rtt,omitempty"` // milliseconds
	Service *identify.ServiceInfo `json:"service,omitempty"`
}

// Report aggregates everything a scan produced.
type Report struct {
	Targets   []string  `json:"targets"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Duration  float64   `json:"duration_seconds"`
	Open      int       `json:"open_ports"`
	Closed    int       `json:"closed_ports"`
	Errored   int       `json:"error_ports"`
	Rows      []Row     `json:"results"`

	idx map[string]int
}

func rowKey(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// Lookup returns the row for host:port, if present.
func (r *Report) Lookup(host string, port int) (*Row, bool) {
	i, ok := r.idx[rowKey(host, port)]
	if !ok {
		return nil, false
	}
	return &r.Rows[i], true
}

// Reindex rebuilds the host:port lookup index from Rows. Callers that
// deserialize a Report must call it before using Lookup.
func (r *Report) Reindex() {
	r.idx = make(map[string]int, len(r.Rows))
	for i, row := range r.Rows {
		r.idx[rowKey(row.Host, row.Port)] = i
	}
}

// Options configures a Session.
type Options struct {
	Config   config.Config
	Catalog  *catalog.Catalog
	Resolver Resolver
	Logger   *zap.Logger

	// Grabber overrides the identification pipeline's connection
	// tuning (settle delay, read window). Nil uses probe defaults.
	Grabber *probe.Grabber

	// Identifier overrides the builtin identification pipeline. Nil
	// builds one from Catalog, Grabber and the configured timeout.
	Identifier Identifier

	// IdentifyLimit overrides DefaultIdentifyLimit when positive.
	IdentifyLimit int
}

// Resolver matches netx.Resolver; declared here so the session depends
// on the capability, not the package.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Identifier is the identification capability the session dispatches
// open ports to; identify.Identifier satisfies it.
type Identifier interface {
	Identify(ctx context.Context, host string, port int) *identify.ServiceInfo
	InspectWeb(ctx context.Context, host string, port int) (*identify.WebInfo, error)
}

type literalResolver struct{}

func (literalResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	if net.ParseIP(host) != nil {
		return []string{host}, nil
	}
	return nil, fmt.Errorf("resolve %s: no resolver configured", host)
}

// Session runs scans. A session is reusable but only one Run may be
// active at a time.
type Session struct {
	cfg        config.Config
	cat        *catalog.Catalog
	resolver   Resolver
	log        *zap.Logger
	scanner    *scan.Scanner
	identifier Identifier
	sem        *semaphore.Weighted

	mu      sync.Mutex
	running bool
	stopped bool
	cancel  context.CancelFunc
}

// New builds a Session from options. Zero-value options get working
// defaults, except Resolver: resolution is a collaborator the caller
// supplies, and leaving it unset makes every hostname fail loudly
// rather than silently falling back to OS lookups.
func New(opts Options) *Session {
	cfg := opts.Config.Normalize()

	cat := opts.Catalog
	if cat == nil {
		cat = catalog.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	resolver := opts.Resolver
	if resolver == nil {
		resolver = literalResolver{}
	}
	limit := opts.IdentifyLimit
	if limit <= 0 {
		limit = DefaultIdentifyLimit
	}

	scanner := scan.NewScanner(scan.Options{
		Concurrency:   cfg.Concurrency,
		Timeout:       cfg.Timeout,
		RatePerSecond: cfg.Rate,
		Retries:       cfg.Retries,
		ServiceNamer:  cat.ServiceForPort,
		Logger:        logger,
	})
	identifier := opts.Identifier
	if identifier == nil {
		identifier = identify.New(identify.Config{
			Catalog: cat,
			Grabber: opts.Grabber,
			Timeout: cfg.Timeout,
			Logger:  logger,
		})
	}

	return &Session{
		cfg:        cfg,
		cat:        cat,
		resolver:   resolver,
		log:        logger.With(zap.String("component", "session")),
		scanner:    scanner,
		identifier: identifier,
		sem:        semaphore.NewWeighted(int64(limit)),
	}
}

// Stop halts the active run: port scanning winds down within one
// dequeue interval and no new identification work is dispatched.
// Identification already in flight completes and lands in the report.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.cancel != nil {
		s.cancel()
	}
	s.scanner.Stop()
}

func (s *Session) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Run scans every port on every target, identifying services on open
// ports when the configuration asks for it. It returns a complete
// report even after Stop; whatever finished before cancellation is
// retained. Run blocks until scanning workers and all dispatched
// identification goroutines have exited.
func (s *Session) Run(ctx context.Context, targets []string, ports []int, cb Callbacks) (*Report, error) {
	if len(targets) == 0 {
		return nil, fmt.Errorf("no targets specified")
	}
	if len(ports) == 0 {
		return nil, fmt.Errorf("no ports specified")
	}
	// The scanner deduplicates internally; dedupe here too so the
	// progress total matches what will actually be delivered.
	ports = uniquePorts(ports)

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, fmt.Errorf("session already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.stopped = false
	s.cancel = cancel
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	report := &Report{
		Targets:   targets,
		StartTime: time.Now(),
	}

	total := len(targets) * len(ports)
	var done atomic.Int64
	var rowMu sync.Mutex
	var identWG sync.WaitGroup

	appendRow := func(row Row) {
		rowMu.Lock()
		report.Rows = append(report.Rows, row)
		switch row.State {
		case scan.StateOpen:
			report.Open++
		case scan.StateClosed:
			report.Closed++
		default:
			report.Errored++
		}
		rowMu.Unlock()
	}
	progress := func() {
		n := int(done.Add(1))
		if cb.OnProgress != nil {
			cb.OnProgress(n, total)
		}
	}

	// Acquisition uses the run context so a stopped session rejects new
	// work, while identification itself uses the caller's context so
	// work already dispatched survives Stop.
	dispatchIdentify := func(target, addr string, port int) {
		if err := s.sem.Acquire(runCtx, 1); err != nil {
			return
		}
		identWG.Add(1)
		go func() {
			defer identWG.Done()
			defer s.sem.Release(1)

			info := s.identifier.Identify(ctx, addr, port)
			if s.cfg.WebTech && isWebService(info.Service) {
				if web, err := s.identifier.InspectWeb(ctx, addr, port); err == nil {
					info.MergeWeb(web)
				}
			}

			rowMu.Lock()
			for i := range report.Rows {
				if report.Rows[i].Host == target && report.Rows[i].Port == port {
					report.Rows[i].Service = info
					break
				}
			}
			rowMu.Unlock()

			if cb.OnService != nil {
				cb.OnService(target, port, info)
			}
		}()
	}

	for _, target := range targets {
		if s.isStopped() || runCtx.Err() != nil {
			break
		}

		addrs, err := s.resolver.LookupHost(runCtx, target)
		if err != nil || len(addrs) == 0 {
			s.log.Debug("resolution failed", zap.String("target", target), zap.Error(err))
			// The per-port contract holds even when the host never
			// resolves: one Error row per requested port.
			for _, port := range ports {
				res := scan.PortResult{
					Host:      target,
					Port:      port,
					State:     scan.StateError,
					Error:     "host unresolved",
					Timestamp: time.Now(),
				}
				appendRow(Row{Host: target, Port: port, State: res.State, Error: res.Error})
				if cb.OnPort != nil {
					cb.OnPort(res)
				}
				progress()
			}
			continue
		}
		addr := addrs[0]

		_, err = s.scanner.Run(runCtx, addr, ports, func(res scan.PortResult) {
			res.Host = target
			appendRow(Row{
				Host:  target,
				Port:  res.Port,
				State: res.State,
				Error: res.Error,
				RTT:   res.RTT,
			})
			if cb.OnPort != nil {
				cb.OnPort(res)
			}
			progress()

			if res.State == scan.StateOpen && s.cfg.Identify {
				dispatchIdentify(target, addr, res.Port)
			}
		})
		if err != nil {
			s.log.Warn("scan failed", zap.String("target", target), zap.Error(err))
		}
	}

	identWG.Wait()

	report.EndTime = time.Now()
	report.Duration = report.EndTime.Sub(report.StartTime).Seconds()

	sort.Slice(report.Rows, func(i, j int) bool {
		if report.Rows[i].Host != report.Rows[j].Host {
			return report.Rows[i].Host < report.Rows[j].Host
		}
		return report.Rows[i].Port < report.Rows[j].Port
	})
	report.Reindex()

	s.log.Info("scan complete",
		zap.Int("targets", len(targets)),
		zap.Int("ports", len(ports)),
		zap.Int("open", report.Open),
		zap.Float64("seconds", report.Duration))

	return report, nil
}

func isWebService(service string) bool {
	switch service {
	case "http", "https", "http-proxy", "https-alt":
		return true
	}
	return false
}

func uniquePorts(ports []int) []int {
	out := make([]int, len(ports))
	copy(out, ports)
	sort.Ints(out)
	n := 0
	for i, p := range out {
		if i == 0 || p != out[n-1] {
			out[n] = p
			n++
		}
	}
	return out[:n]
}

