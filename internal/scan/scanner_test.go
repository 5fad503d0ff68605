package scan

import (
	"context"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"
)

// openPort starts a listener on an ephemeral loopback port and returns
// the port number. The listener stays open for the test's duration.
func openPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	return ln.Addr().(*net.TCPAddr).Port
}

// closedPort returns a loopback port with nothing listening on it.
func closedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

func TestRunClassifiesOpenAndClosed(t *testing.T) {
	open := openPort(t)
	closed := closedPort(t)

	s := NewScanner(Options{Concurrency: 4, Timeout: 2 * time.Second})
	results, err := s.Run(context.Background(), "127.0.0.1", []int{open, closed}, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	states := make(map[int]PortState)
	for _, r := range results {
		states[r.Port] = r.State
	}
	if states[open] != StateOpen {
		t.Errorf("port %d = %s, want open", open, states[open])
	}
	if states[closed] != StateClosed {
		t.Errorf("port %d = %s, want closed", closed, states[closed])
	}
	if s.Phase() != PhaseCompleted {
		t.Errorf("phase = %s, want completed", s.Phase())
	}
}

func TestRunOneResultPerPort(t *testing.T) {
	open := openPort(t)
	ports := []int{open, closedPort(t), closedPort(t), closedPort(t), open}

	s := NewScanner(Options{Concurrency: 8, Timeout: 2 * time.Second})
	results, err := s.Run(context.Background(), "127.0.0.1", ports, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// The duplicate open port collapses to one entry
	if len(results) != 4 {
		t.Fatalf("got %d results, want 4", len(results))
	}
	seen := make(map[int]int)
	for _, r := range results {
		seen[r.Port]++
	}
	for port, n := range seen {
		if n != 1 {
			t.Errorf("port %d appeared %d times", port, n)
		}
	}
	for i := 1; i < len(results); i++ {
		if results[i-1].Port >= results[i].Port {
			t.Fatalf("results not sorted by port: %d before %d", results[i-1].Port, results[i].Port)
		}
	}
}

func TestRunConcurrencyLevelsAgree(t *testing.T) {
	ports := []int{openPort(t), openPort(t)}
	for i := 0; i < 10; i++ {
		ports = append(ports, closedPort(t))
	}

	scanStates := func(concurrency int) map[int]PortState {
		s := NewScanner(Options{Concurrency: concurrency, Timeout: 2 * time.Second})
		results, err := s.Run(context.Background(), "127.0.0.1", ports, nil)
		if err != nil {
			t.Fatalf("Run(concurrency=%d) failed: %v", concurrency, err)
		}
		states := make(map[int]PortState)
		for _, r := range results {
			states[r.Port] = r.State
		}
		return states
	}

	serial := scanStates(1)
	parallel := scanStates(50)

	if len(serial) != len(parallel) {
		t.Fatalf("result count differs: %d vs %d", len(serial), len(parallel))
	}
	for port, state := range serial {
		if parallel[port] != state {
			t.Errorf("port %d: serial=%s parallel=%s", port, state, parallel[port])
		}
	}
}

func TestRunCallbackPerResult(t *testing.T) {
	ports := []int{openPort(t), closedPort(t), closedPort(t)}

	var mu sync.Mutex
	var delivered []PortResult
	s := NewScanner(Options{Concurrency: 4, Timeout: 2 * time.Second})
	results, err := s.Run(context.Background(), "127.0.0.1", ports, func(r PortResult) {
		mu.Lock()
		delivered = append(delivered, r)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(delivered) != len(results) {
		t.Errorf("callback saw %d results, Run returned %d", len(delivered), len(results))
	}
}

func TestRunStopRetainsPartialResults(t *testing.T) {
	var ports []int
	for i := 0; i < 20; i++ {
		ports = append(ports, closedPort(t))
	}

	s := NewScanner(Options{Concurrency: 1, Timeout: 2 * time.Second})
	results, err := s.Run(context.Background(), "127.0.0.1", ports, func(PortResult) {
		s.Stop()
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(results) == 0 {
		t.Fatal("expected at least one result before stop")
	}
	if len(results) >= len(ports) {
		t.Errorf("expected partial results, got all %d", len(results))
	}
	if s.Phase() != PhaseStopped {
		t.Errorf("phase = %s, want stopped", s.Phase())
	}
}

func TestRunContextCancellation(t *testing.T) {
	var ports []int
	for i := 0; i < 20; i++ {
		ports = append(ports, closedPort(t))
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := NewScanner(Options{Concurrency: 1, Timeout: 2 * time.Second})

	first := true
	results, err := s.Run(ctx, "127.0.0.1", ports, func(PortResult) {
		if first {
			first = false
			cancel()
		}
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(results) >= len(ports) {
		t.Errorf("cancellation did not shorten the run: %d results", len(results))
	}
	if s.Phase() != PhaseStopped {
		t.Errorf("phase = %s, want stopped", s.Phase())
	}
}

func TestRunUnresolvableHostYieldsErrors(t *testing.T) {
	ports := []int{80, 443, 8080}

	s := NewScanner(Options{Concurrency: 2, Timeout: time.Second})
	results, err := s.Run(context.Background(), "portsage-does-not-exist.invalid", ports, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(results) != len(ports) {
		t.Fatalf("got %d results, want %d", len(results), len(ports))
	}
	for _, r := range results {
		if r.State != StateError {
			t.Errorf("port %d = %s, want error", r.Port, r.State)
		}
		if r.Error == "" {
			t.Errorf("port %d missing error detail", r.Port)
		}
	}
}

func TestRunRetriesErroredPorts(t *testing.T) {
	s := NewScanner(Options{Concurrency: 1, Timeout: time.Second, Retries: 2})

	start := time.Now()
	results, err := s.Run(context.Background(), "portsage-does-not-exist.invalid", []int{80}, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	elapsed := time.Since(start)

	if len(results) != 1 || results[0].State != StateError {
		t.Fatalf("got %v, want one errored result", results)
	}
	// Two retries insert two delays between the three attempts
	if elapsed < 2*retryDelay {
		t.Errorf("run took %v, want at least %v for retried attempts", elapsed, 2*retryDelay)
	}
}

func TestRunDoesNotRetryRefusedPorts(t *testing.T) {
	closed := closedPort(t)

	s := NewScanner(Options{Concurrency: 1, Timeout: time.Second, Retries: 5})
	start := time.Now()
	results, err := s.Run(context.Background(), "127.0.0.1", []int{closed}, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	elapsed := time.Since(start)

	if len(results) != 1 || results[0].State != StateClosed {
		t.Fatalf("got %v, want one closed result", results)
	}
	if elapsed >= 4*retryDelay {
		t.Errorf("refused port took %v, refusals must not wait out retries", elapsed)
	}
}

func TestRunRateLimiterPacesDials(t *testing.T) {
	var ports []int
	for i := 0; i < 4; i++ {
		ports = append(ports, openPort(t))
	}

	const rate = 20 // 50ms between dials
	s := NewScanner(Options{Concurrency: len(ports), Timeout: time.Second, RatePerSecond: rate})

	start := time.Now()
	results, err := s.Run(context.Background(), "127.0.0.1", ports, nil)
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(results) != len(ports) {
		t.Fatalf("got %d results, want %d", len(results), len(ports))
	}

	// Every dial consumes one tick, so four dials cannot finish
	// before the fourth tick
	floor := time.Duration(len(ports)) * (time.Second / rate)
	if elapsed < floor {
		t.Errorf("rate-limited run took %v, want at least %v", elapsed, floor)
	}
}

func TestRunRateBeyondTickerResolution(t *testing.T) {
	closed := closedPort(t)

	// 2e9 pps truncates a one-second tick to zero nanoseconds
	s := NewScanner(Options{Concurrency: 2, Timeout: time.Second, RatePerSecond: 2_000_000_000})
	results, err := s.Run(context.Background(), "127.0.0.1", []int{closed}, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(results) != 1 || results[0].State != StateClosed {
		t.Fatalf("got %v, want one closed result", results)
	}
}

func TestRunServiceHint(t *testing.T) {
	open := openPort(t)

	s := NewScanner(Options{
		Concurrency: 1,
		Timeout:     2 * time.Second,
		ServiceNamer: func(port int) string {
			if port == open {
				return "testsvc"
			}
			return ""
		},
	})
	results, err := s.Run(context.Background(), "127.0.0.1", []int{open}, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if results[0].ServiceHint != "testsvc" {
		t.Errorf("ServiceHint = %q, want testsvc", results[0].ServiceHint)
	}
}

func TestRunRejectsEmptyInput(t *testing.T) {
	s := NewScanner(Options{})
	if _, err := s.Run(context.Background(), "", []int{80}, nil); err == nil {
		t.Error("expected error for empty host")
	}
	if _, err := s.Run(context.Background(), "127.0.0.1", nil, nil); err == nil {
		t.Error("expected error for empty port list")
	}
}

func TestRunRejectsConcurrentRuns(t *testing.T) {
	var ports []int
	for i := 0; i < 10; i++ {
		ports = append(ports, closedPort(t))
	}

	s := NewScanner(Options{Concurrency: 1, RatePerSecond: 20, Timeout: time.Second})

	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(context.Background(), "127.0.0.1", ports, func(PortResult) {
			select {
			case <-started:
			default:
				close(started)
			}
		})
	}()

	<-started
	if _, err := s.Run(context.Background(), "127.0.0.1", ports, nil); err == nil {
		t.Error("expected error for overlapping Run")
	}
	s.Stop()
	<-done
}

func TestPortAddressFormat(t *testing.T) {
	// JoinHostPort keeps IPv6 literals bracketed
	addr := net.JoinHostPort("::1", strconv.Itoa(80))
	if addr != "[::1]:80" {
		t.Errorf("unexpected address format: %s", addr)
	}
}
