package scan

import (
	"fmt"
	"strings"
)

// Method enumerates supported scan techniques. Only full TCP connect
// scanning is performed natively; raw-socket techniques are delegated
// to the nmap backend.
type Method int

const (
	MethodConnect Method = iota
)

func (m Method) String() string {
	switch m {
	case MethodConnect:
		return "connect"
	default:
		return "unknown"
	}
}

// ParseMethod maps a user-supplied scan type to a Method. Techniques
// requiring raw sockets name the backend that provides them instead of
// silently degrading to a connect scan.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "connect", "tcp":
		return MethodConnect, nil
	case "syn", "udp", "fin", "xmas", "null":
		return 0, fmt.Errorf("scan method %q requires the nmap backend (use --backend nmap)", s)
	default:
		return 0, fmt.Errorf("unknown scan method: %s", s)
	}
}
