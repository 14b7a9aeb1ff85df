package signals

import (
	"context"
	"crypto/x509"
	"errors"
	"net"
	"net/url"
	"time"

	tls2 "github.com/refraction-networking/utls"
)

// probeTTL bounds how long a cached per-host probe outcome is reused.
const probeTTL = 15 * time.Minute

// probeOutcome is a cached TLS classification for one host:port.
type probeOutcome struct {
	valid   float64
	invalid float64
}

// ProbeTLS classifies a URL's TLS certificate before any navigation happens,
// handshaking with a Chrome fingerprint so probe traffic looks like the
// browser traffic that follows. Three outcomes:
//
//	(1, 0)  handshake completed and the certificate chain verified
//	(0, 1)  handshake reached certificate verification and it failed
//	(0, 0)  unknown: non-https URL, unreachable host, or transport failure
//
// The probe never fails the page; whatever it learns lands in the bundle and
// rendering proceeds regardless. Outcomes are cached per host:port, unknowns
// included: a dead host would otherwise cost the full dial timeout for every
// URL it serves.
func (e *Extractor) ProbeTLS(ctx context.Context, rawURL string) (valid, invalid float64) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme != "https" || u.Hostname() == "" {
		return 0, 0
	}
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "443"
	}
	addr := net.JoinHostPort(host, port)

	if e.probes != nil {
		if out, ok := e.probes.Get(addr); ok {
			return out.valid, out.invalid
		}
	}
	valid, invalid = e.probe(ctx, host, addr)
	if e.probes != nil {
		e.probes.Set(addr, probeOutcome{valid: valid, invalid: invalid})
	}
	return valid, invalid
}

func (e *Extractor) probe(ctx context.Context, host, addr string) (valid, invalid float64) {
	dialCtx, cancel := context.WithTimeout(ctx, e.tlsTimeout)
	defer cancel()

	dialer := &net.Dialer{}
	rawConn, err := dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return 0, 0
	}
	defer rawConn.Close()

	tlsConn := tls2.UClient(rawConn, &tls2.Config{
		ServerName:         host,
		InsecureSkipVerify: false,
	}, tls2.HelloChrome_Auto)

	if err := tlsConn.HandshakeContext(dialCtx); err != nil {
		if isCertError(err) {
			return 0, 1
		}
		return 0, 0
	}
	tlsConn.Close()
	return 1, 0
}

// isCertError separates certificate verification failures from transport or
// protocol trouble.
func isCertError(err error) bool {
	var verifyErr *tls2.CertificateVerificationError
	var unknownAuth x509.UnknownAuthorityError
	var hostname x509.HostnameError
	var invalidCert x509.CertificateInvalidError
	return errors.As(err, &verifyErr) ||
		errors.As(err, &unknownAuth) ||
		errors.As(err, &hostname) ||
		errors.As(err, &invalidCert)
}

// hostOf returns the host (with port, when present) of a URL, or "" when it
// cannot be parsed.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
