// Package netutil classifies network errors returned by net/http.
package netutil

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"syscall"
)

// Kind names a family of transport failures.
type Kind string

const (
	KindNone         Kind = ""
	KindTimeout      Kind = "timeout"
	KindCanceled     Kind = "canceled"
	KindDNS          Kind = "dns"
	KindDial         Kind = "dial"
	KindProxy        Kind = "proxy"
	KindDisconnected Kind = "disconnected"
	KindTLS          Kind = "tls"
	KindUnknown      Kind = "unknown"
)

// Classify maps err onto a Kind. Proxy failures win over the underlying cause so
// callers can tell a dead proxy from a dead upstream.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "proxyconnect" {
		return KindProxy
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return KindTimeout
		}
		return KindDNS
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return KindDisconnected
	}

	if opErr != nil && opErr.Op == "dial" {
		return KindDial
	}

	var alertErr tls.AlertError
	var recordErr tls.RecordHeaderError
	var certErr *tls.CertificateVerificationError
	var unknownAuth x509.UnknownAuthorityError
	var hostErr x509.HostnameError
	if errors.As(err, &alertErr) || errors.As(err, &recordErr) || errors.As(err, &certErr) ||
		errors.As(err, &unknownAuth) || errors.As(err, &hostErr) {
		return KindTLS
	}

	return KindUnknown
}
