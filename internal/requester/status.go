package requester

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/m3rciful/discordbot/core/netutil"
)

// Sentinel statuses reported when no HTTP status was received.
const (
	StatusUnknown          = -100
	StatusTimeout          = -99
	StatusConnection       = -98
	StatusDisconnected     = -97
	StatusTooManyRedirects = -96
	StatusContentType      = -95
	StatusMalformed        = -94
	StatusProxy            = -93
)

var kinds = map[int]string{
	StatusUnknown:          "unknown",
	StatusTimeout:          "timeout",
	StatusConnection:       "connection",
	StatusDisconnected:     "disconnected",
	StatusTooManyRedirects: "too_many_redirects",
	StatusContentType:      "content_type",
	StatusMalformed:        "malformed",
	StatusProxy:            "proxy",
}

// Kind returns the failure category of a sentinel status, or "" for real HTTP statuses.
func Kind(status int) string {
	return kinds[status]
}

// statusFor maps a client error onto a sentinel status. proxied tells whether
// the request went through a proxy.
func statusFor(err error, proxied bool) int {
	if errors.Is(err, ErrTooManyRedirects) {
		return StatusTooManyRedirects
	}
	if strings.Contains(err.Error(), "malformed HTTP") {
		return StatusMalformed
	}
	if proxied && isProxyRefusal(err) {
		return StatusProxy
	}
	switch netutil.Classify(err) {
	case netutil.KindTimeout:
		return StatusTimeout
	case netutil.KindDNS, netutil.KindDial, netutil.KindTLS:
		return StatusConnection
	case netutil.KindDisconnected:
		return StatusDisconnected
	case netutil.KindProxy:
		return StatusProxy
	}
	if strings.Contains(err.Error(), "transport connection broken") {
		return StatusMalformed
	}
	return StatusUnknown
}

// isProxyRefusal reports whether err is a non-200 answer to CONNECT. net/http
// surfaces those as a bare error carrying the proxy's status text.
func isProxyRefusal(err error) bool {
	var ue *url.Error
	if errors.As(err, &ue) {
		err = ue.Err
	}
	text := err.Error()
	for code := 400; code < 600; code++ {
		if st := http.StatusText(code); st != "" && st == text {
			return true
		}
	}
	return false
}

// outcome labels a result for metrics.
func outcome(status int) string {
	if k := Kind(status); k != "" {
		return k
	}
	switch {
	case status == http.StatusNoContent:
		return "no_content"
	case status >= 200 && status < 300:
		return "ok"
	case status >= 400 && status < 500:
		return "client_error"
	case status >= 500:
		return "server_error"
	}
	return "other"
}
