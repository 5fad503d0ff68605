package probe

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
)

// Kind is the coarse classification of a network failure. The scanner maps
// Refused to a Closed port and everything else that is not Ok to an Error
// result; the identifier treats every non-Ok kind as "no contribution".
type Kind int

const (
	KindOk Kind = iota
	KindRefused
	KindTimeout
	KindUnresolved
	KindUnreachable
	KindOther
)

// String returns the human-readable name of the failure kind.
func (k Kind) String() string {
	switch k {
	case KindOk:
		return "ok"
	case KindRefused:
		return "connection refused"
	case KindTimeout:
		return "timeout"
	case KindUnresolved:
		return "host unresolved"
	case KindUnreachable:
		return "network unreachable"
	default:
		return "network error"
	}
}

// Classify maps a dial or read error onto the failure taxonomy. Errno checks
// cover Unix platforms; the string fallbacks catch Windows and wrapped errors
// whose chains do not expose an errno.
func Classify(err error) Kind {
	if err == nil {
		return KindOk
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindUnresolved
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return KindRefused
	}
	if errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH) {
		return KindUnreachable
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "refused"), strings.Contains(msg, "reset by peer"):
		return KindRefused
	case strings.Contains(msg, "no such host"), strings.Contains(msg, "server misbehaving"):
		return KindUnresolved
	case strings.Contains(msg, "unreachable"):
		return KindUnreachable
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return KindTimeout
	}

	return KindOther
}
