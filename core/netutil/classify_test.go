package netutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"syscall"
	"testing"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindNone},
		{"deadline", fmt.Errorf("send: %w", context.DeadlineExceeded), KindTimeout},
		{"canceled", context.Canceled, KindCanceled},
		{"client timeout", &url.Error{Op: "Post", URL: "http://x", Err: timeoutErr{}}, KindTimeout},
		{"dns", &url.Error{Op: "Get", URL: "http://x", Err: &net.DNSError{Err: "no such host", Name: "x"}}, KindDNS},
		{"dial refused", &url.Error{Op: "Get", URL: "http://x", Err: &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}}, KindDial},
		{"proxy", &url.Error{Op: "Post", URL: "http://x", Err: &net.OpError{Op: "proxyconnect", Net: "tcp", Err: syscall.ECONNREFUSED}}, KindProxy},
		{"proxy timeout", &net.OpError{Op: "proxyconnect", Net: "tcp", Err: timeoutErr{}}, KindProxy},
		{"eof", &url.Error{Op: "Get", URL: "http://x", Err: io.EOF}, KindDisconnected},
		{"reset", &net.OpError{Op: "read", Net: "tcp", Err: syscall.ECONNRESET}, KindDisconnected},
		{"other", errors.New("boom"), KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Fatalf("Classify(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestShouldRetry(t *testing.T) {
	if !ShouldRetry(context.DeadlineExceeded) {
		t.Fatal("timeouts should be retried")
	}
	if !ShouldRetry(&net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}) {
		t.Fatal("failed dials should be retried")
	}
	if ShouldRetry(&net.OpError{Op: "proxyconnect", Net: "tcp", Err: syscall.ECONNREFUSED}) {
		t.Fatal("proxy failures must not be retried")
	}
	if ShouldRetry(context.Canceled) {
		t.Fatal("cancellation must not be retried")
	}
	if ShouldRetry(nil) {
		t.Fatal("nil is not retryable")
	}
}
