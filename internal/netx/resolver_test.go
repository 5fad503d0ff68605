package netx

import (
	"context"
	"fmt"
	"testing"
	"time"
)

type fakeResolver struct {
	calls int
	addrs []string
	err   error
}

func (f *fakeResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.addrs, nil
}

func TestSystemResolverLiteralIP(t *testing.T) {
	addrs, err := SystemResolver{}.LookupHost(context.Background(), "192.168.1.10")
	if err != nil {
		t.Fatalf("LookupHost failed: %v", err)
	}
	if len(addrs) != 1 || addrs[0] != "192.168.1.10" {
		t.Errorf("got %v, want [192.168.1.10]", addrs)
	}

	addrs, err = SystemResolver{}.LookupHost(context.Background(), "::1")
	if err != nil {
		t.Fatalf("LookupHost failed: %v", err)
	}
	if len(addrs) != 1 || addrs[0] != "::1" {
		t.Errorf("got %v, want [::1]", addrs)
	}
}

func TestCachingResolverHitsCache(t *testing.T) {
	fake := &fakeResolver{addrs: []string{"10.0.0.1"}}
	r := NewCachingResolver(fake, time.Minute)

	for i := 0; i < 3; i++ {
		addrs, err := r.LookupHost(context.Background(), "db.internal")
		if err != nil {
			t.Fatalf("LookupHost failed: %v", err)
		}
		if len(addrs) != 1 || addrs[0] != "10.0.0.1" {
			t.Errorf("got %v", addrs)
		}
	}
	if fake.calls != 1 {
		t.Errorf("inner resolver called %d times, want 1", fake.calls)
	}
}

func TestCachingResolverExpiry(t *testing.T) {
	fake := &fakeResolver{addrs: []string{"10.0.0.1"}}
	r := NewCachingResolver(fake, time.Minute)

	current := time.Unix(1700000000, 0)
	r.now = func() time.Time { return current }

	r.LookupHost(context.Background(), "db.internal")
	r.LookupHost(context.Background(), "db.internal")
	if fake.calls != 1 {
		t.Fatalf("inner called %d times before expiry, want 1", fake.calls)
	}

	current = current.Add(2 * time.Minute)
	r.LookupHost(context.Background(), "db.internal")
	if fake.calls != 2 {
		t.Errorf("inner called %d times after expiry, want 2", fake.calls)
	}
}

func TestCachingResolverDoesNotCacheFailures(t *testing.T) {
	fake := &fakeResolver{err: fmt.Errorf("no such host")}
	r := NewCachingResolver(fake, time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := r.LookupHost(context.Background(), "missing.internal"); err == nil {
			t.Fatal("expected error")
		}
	}
	if fake.calls != 2 {
		t.Errorf("inner called %d times, want 2 (failures must not cache)", fake.calls)
	}
}

func TestCachingResolverLiteralBypass(t *testing.T) {
	fake := &fakeResolver{addrs: []string{"unused"}}
	r := NewCachingResolver(fake, time.Minute)

	addrs, err := r.LookupHost(context.Background(), "127.0.0.1")
	if err != nil {
		t.Fatalf("LookupHost failed: %v", err)
	}
	if addrs[0] != "127.0.0.1" {
		t.Errorf("got %v", addrs)
	}
	if fake.calls != 0 {
		t.Errorf("literal IP reached the inner resolver %d times", fake.calls)
	}
}
