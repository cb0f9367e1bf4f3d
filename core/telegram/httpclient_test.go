package telegram

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

type flakyTransport struct {
	fails  int
	calls  int
	bodies []string
	err    error
}

func (f *flakyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.calls++
	if req.Body != nil {
		b, _ := io.ReadAll(req.Body)
		f.bodies = append(f.bodies, string(b))
	}
	if f.calls <= f.fails {
		return nil, f.err
	}
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader("{}")), Request: req}, nil
}

func TestRetryTransportReplaysBody(t *testing.T) {
	base := &flakyTransport{fails: 2, err: &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}}
	rt := &retryTransport{base: base, maxRetries: 3, backoff: time.Millisecond}

	req, _ := http.NewRequest(http.MethodPost, "http://api.test/sendMessage", strings.NewReader("text=hi"))
	resp, err := rt.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	resp.Body.Close()
	if base.calls != 3 {
		t.Fatalf("calls = %d, want 3", base.calls)
	}
	for _, b := range base.bodies {
		if b != "text=hi" {
			t.Fatalf("replayed body = %q", b)
		}
	}
}

func TestRetryTransportGivesUp(t *testing.T) {
	dialErr := &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}
	base := &flakyTransport{fails: 10, err: dialErr}
	rt := &retryTransport{base: base, maxRetries: 2, backoff: time.Millisecond}

	req, _ := http.NewRequest(http.MethodGet, "http://api.test/getMe", nil)
	if _, err := rt.RoundTrip(req); !errors.Is(err, syscall.ECONNREFUSED) {
		t.Fatalf("err = %v", err)
	}
	if base.calls != 3 {
		t.Fatalf("calls = %d, want 3", base.calls)
	}

	final := &flakyTransport{fails: 10, err: errors.New("bad request")}
	rt = &retryTransport{base: final, maxRetries: 2, backoff: time.Millisecond}
	if _, err := rt.RoundTrip(req); err == nil || final.calls != 1 {
		t.Fatalf("non-retryable error retried: calls=%d err=%v", final.calls, err)
	}
}

func TestRetryTransportHonoursContext(t *testing.T) {
	base := &flakyTransport{fails: 10, err: context.DeadlineExceeded}
	rt := &retryTransport{base: base, maxRetries: 5, backoff: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "http://api.test/getMe", nil)
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	if _, err := rt.RoundTrip(req); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestBuildPoller(t *testing.T) {
	p := BuildPoller(PollerOptions{
		RunMode: "Webhook",
		Webhook: WebhookOptions{Listen: "0.0.0.0", Port: 8443, URL: "https://bot.test/hook"},
	})
	wh, ok := p.(*tele.Webhook)
	if !ok {
		t.Fatalf("poller = %T, want *tele.Webhook", p)
	}
	if wh.Listen != "0.0.0.0:8443" || wh.Endpoint.PublicURL != "https://bot.test/hook" {
		t.Fatalf("webhook = %+v", wh)
	}

	lp, ok := BuildPoller(PollerOptions{RunMode: "longpoll"}).(*tele.LongPoller)
	if !ok || lp.Timeout != defaultLongPollTimeout {
		t.Fatalf("long poller = %+v", lp)
	}
	lp = BuildPoller(PollerOptions{LongPollTimeoutSeconds: 25}).(*tele.LongPoller)
	if lp.Timeout != 25*time.Second {
		t.Fatalf("timeout = %v", lp.Timeout)
	}
}

func TestBuildHTTPClientOutlastsPoll(t *testing.T) {
	if c := BuildHTTPClient(60 * time.Second); c.Timeout != 70*time.Second {
		t.Fatalf("timeout = %v, want 70s", c.Timeout)
	}
	if c := BuildHTTPClient(defaultLongPollTimeout); c.Timeout != defaultClientTimeout {
		t.Fatalf("timeout = %v, want %v", c.Timeout, defaultClientTimeout)
	}
}
