package scan

import (
	"bytes"
	"fmt"
	"net"
	"regexp"
	"strings"
)

// MaxExpandedTargets caps CIDR and range expansion so a mistyped mask
// cannot turn into a sweep of an entire address space.
const MaxExpandedTargets = 4096

var hostnameRe = regexp.MustCompile(`^[a-zA-Z0-9.-]+$`)

// ExpandTargets normalizes a mixed list of literal IPs, hostnames,
// CIDR blocks, and dash ranges (192.168.1.1-100) into individual
// addresses. Hostnames pass through unresolved.
func ExpandTargets(targets []string) ([]string, error) {
	var result []string

	for _, target := range targets {
		target = strings.TrimSpace(target)
		switch {
		case target == "":
			continue

		case strings.Contains(target, "/"):
			expanded, err := expandCIDR(target)
			if err != nil {
				return nil, fmt.Errorf("invalid CIDR %s: %w", target, err)
			}
			result = append(result, expanded...)

		case strings.Contains(target, "-") && net.ParseIP(strings.Split(target, "-")[0]) != nil:
			expanded, err := expandRange(target)
			if err != nil {
				return nil, fmt.Errorf("invalid range %s: %w", target, err)
			}
			result = append(result, expanded...)

		default:
			if net.ParseIP(target) != nil || isValidHostname(target) {
				result = append(result, target)
			} else {
				return nil, fmt.Errorf("invalid target: %s", target)
			}
		}

		if len(result) > MaxExpandedTargets {
			return nil, fmt.Errorf("target list exceeds %d addresses", MaxExpandedTargets)
		}
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("no targets specified")
	}

	return result, nil
}

func expandCIDR(cidr string) ([]string, error) {
	_, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, err
	}

	ones, bits := ipnet.Mask.Size()
	hostOnly := ones >= bits-1

	var ips []string
	broadcast := broadcastAddress(ipnet)
	for ip := cloneIP(ipnet.IP.Mask(ipnet.Mask)); ipnet.Contains(ip); incrementIP(ip) {
		// Skip network and broadcast addresses except for /31 and /32
		if !hostOnly && (ip.Equal(ipnet.IP) || ip.Equal(broadcast)) {
			continue
		}
		ips = append(ips, ip.String())

		if len(ips) > MaxExpandedTargets {
			return nil, fmt.Errorf("expansion exceeds %d addresses", MaxExpandedTargets)
		}
	}

	return ips, nil
}

func expandRange(rangeStr string) ([]string, error) {
	parts := strings.Split(rangeStr, "-")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid range format")
	}

	startIP := net.ParseIP(parts[0])
	if startIP == nil {
		return nil, fmt.Errorf("invalid start IP")
	}

	// Accept both "192.168.1.1-100" and "192.168.1.1-192.168.1.100"
	var endIP net.IP
	if net.ParseIP(parts[1]) != nil {
		endIP = net.ParseIP(parts[1])
	} else {
		ipParts := strings.Split(parts[0], ".")
		if len(ipParts) != 4 {
			return nil, fmt.Errorf("invalid IP format")
		}
		endIP = net.ParseIP(strings.Join(ipParts[:3], ".") + "." + parts[1])
	}

	if endIP == nil {
		return nil, fmt.Errorf("invalid end IP")
	}

	if bytes.Compare(startIP.To16(), endIP.To16()) > 0 {
		return nil, fmt.Errorf("range start %s exceeds end %s", startIP, endIP)
	}

	var ips []string
	for ip := cloneIP(startIP); !ip.Equal(endIP); incrementIP(ip) {
		ips = append(ips, ip.String())
		if len(ips) > MaxExpandedTargets {
			return nil, fmt.Errorf("expansion exceeds %d addresses", MaxExpandedTargets)
		}
	}
	ips = append(ips, endIP.String())

	return ips, nil
}

func incrementIP(ip net.IP) {
	for j := len(ip) - 1; j >= 0; j-- {
		ip[j]++
		if ip[j] > 0 {
			break
		}
	}
}

func broadcastAddress(ipnet *net.IPNet) net.IP {
	broadcast := make(net.IP, len(ipnet.IP))
	for i := range ipnet.IP {
		broadcast[i] = ipnet.IP[i] | ^ipnet.Mask[i]
	}
	return broadcast
}

func cloneIP(ip net.IP) net.IP {
	out := make(net.IP, len(ip))
	copy(out, ip)
	return out
}

func isValidHostname(hostname string) bool {
	if len(hostname) == 0 || len(hostname) > 253 {
		return false
	}
	return hostnameRe.MatchString(hostname)
}
