package identify

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// InspectTLS performs a TLS handshake against host:port and reports the
// negotiated protocol version and leaf certificate metadata. The
// handshake runs with verification disabled: the certificate is being
// read as evidence of what the server claims to be, not trusted for
// anything.
func (id *Identifier) InspectTLS(ctx context.Context, host string, port int) (*TLSInfo, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: id.timeout},
		Config: &tls.Config{
			InsecureSkipVerify: true,
			ServerName:         host,
		},
	}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("tls handshake %s: %w", addr, err)
	}
	defer conn.Close()

	state := conn.(*tls.Conn).ConnectionState()
	info := &TLSInfo{Version: tlsVersionName(state.Version)}

	if len(state.PeerCertificates) > 0 {
		cert := state.PeerCertificates[0]
		info.Subject = subjectName(cert)
		info.Issuer = issuerName(cert)
		info.NotBefore = cert.NotBefore
		info.NotAfter = cert.NotAfter
	}

	return info, nil
}

func tlsVersionName(v uint16) string {
	switch v {
	case tls.VersionTLS10:
		return "TLSv1.0"
	case tls.VersionTLS11:
		return "TLSv1.1"
	case tls.VersionTLS12:
		return "TLSv1.2"
	case tls.VersionTLS13:
		return "TLSv1.3"
	default:
		return fmt.Sprintf("unknown (0x%04x)", v)
	}
}

func subjectName(cert *x509.Certificate) string {
	if cert.Subject.CommonName == "" {
		return ""
	}
	return "CN=" + cert.Subject.CommonName
}

func issuerName(cert *x509.Certificate) string {
	var parts []string
	if cert.Issuer.CommonName != "" {
		parts = append(parts, "CN="+cert.Issuer.CommonName)
	}
	for _, org := range cert.Issuer.Organization {
		parts = append(parts, "O="+org)
	}
	return strings.Join(parts, ", ")
}
