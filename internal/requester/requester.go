// Package requester performs single Discord REST calls and folds every outcome,
// including transport failures, into an Envelope.
package requester

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/m3rciful/discordbot/core/logger"
	"github.com/m3rciful/discordbot/core/metrics"
)

// ErrTooManyRedirects stops a redirect chain longer than the configured cap.
var ErrTooManyRedirects = errors.New("requester: too many redirects")

const (
	// DefaultMaxRedirects matches the limit Discord clients usually follow.
	DefaultMaxRedirects = 10

	maxBodyBytes        = 8 << 20
	dialTimeout         = 10 * time.Second
	tlsHandshakeTimeout = 10 * time.Second
)

// Request describes one call. Body, when non-nil, is sent as JSON.
type Request struct {
	Method string
	URL    string
	Token  string
	Proxy  string
	Body   any
}

// Envelope is the uniform result of Send. Data is always a JSON document and
// Message is set whenever the call did not yield a usable 2xx payload.
type Envelope struct {
	Status  int
	Data    json.RawMessage
	Message string
}

// OK reports a 2xx status.
func (e Envelope) OK() bool {
	return e.Status >= 200 && e.Status < 300
}

// Options tunes a Sender.
type Options struct {
	// Timeout bounds a whole call; zero means no bound.
	Timeout      time.Duration
	MaxRedirects int
}

// Sender issues requests. It builds a fresh transport per call so a proxy never
// leaks into a later request.
type Sender struct {
	timeout      time.Duration
	maxRedirects int
}

// New returns a Sender.
func New(opts Options) *Sender {
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = DefaultMaxRedirects
	}
	if opts.Timeout < 0 {
		opts.Timeout = 0
	}
	return &Sender{timeout: opts.Timeout, maxRedirects: opts.MaxRedirects}
}

// Get is a shorthand for a GET without body.
func (s *Sender) Get(ctx context.Context, rawURL, token, proxy string) Envelope {
	return s.Send(ctx, Request{Method: http.MethodGet, URL: rawURL, Token: token, Proxy: proxy})
}

// Post sends body as JSON.
func (s *Sender) Post(ctx context.Context, rawURL, token, proxy string, body any) Envelope {
	return s.Send(ctx, Request{Method: http.MethodPost, URL: rawURL, Token: token, Proxy: proxy, Body: body})
}

// Send performs req and never returns an error: failures are encoded in the Envelope.
func (s *Sender) Send(ctx context.Context, req Request) Envelope {
	if ctx == nil {
		ctx = context.Background()
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	start := time.Now()
	env := s.do(ctx, req)
	observe(ctx, req, env, time.Since(start))
	return env
}

func (s *Sender) do(ctx context.Context, req Request) Envelope {
	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return failure(StatusMalformed, fmt.Errorf("encode body: %w", err))
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return failure(StatusMalformed, err)
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.Token != "" {
		httpReq.Header.Set("Authorization", req.Token)
	}

	transport := &http.Transport{
		DialContext:         (&net.Dialer{Timeout: dialTimeout}).DialContext,
		TLSHandshakeTimeout: tlsHandshakeTimeout,
		DisableKeepAlives:   true,
		ForceAttemptHTTP2:   true,
	}
	if req.Proxy != "" {
		proxyURL, err := url.Parse(req.Proxy)
		if err != nil || proxyURL.Host == "" {
			return failure(StatusProxy, fmt.Errorf("invalid proxy url %q", logger.MaskProxy(req.Proxy)))
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}
	defer transport.CloseIdleConnections()

	client := &http.Client{
		Transport:     transport,
		Timeout:       s.timeout,
		CheckRedirect: s.checkRedirect,
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return failure(statusFor(err, req.Proxy != ""), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return Envelope{Status: resp.StatusCode, Data: emptyObject(), Message: "no content"}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return Envelope{
			Status:  resp.StatusCode,
			Data:    emptyObject(),
			Message: fmt.Sprintf("token: %s\nerror %d", req.Token, resp.StatusCode),
		}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return failure(statusFor(err, req.Proxy != ""), fmt.Errorf("read body: %w", err))
	}

	env := Envelope{Status: resp.StatusCode}
	if env.OK() {
		ct := resp.Header.Get("Content-Type")
		if len(bytes.TrimSpace(raw)) > 0 && !textual(ct) {
			return failure(StatusContentType, fmt.Errorf("unexpected content type %q", ct))
		}
	} else {
		env.Message = fmt.Sprintf("error %d", resp.StatusCode)
	}
	env.Data = decode(ctx, req, raw)
	return env
}

func (s *Sender) checkRedirect(_ *http.Request, via []*http.Request) error {
	if len(via) >= s.maxRedirects {
		return ErrTooManyRedirects
	}
	return nil
}

func failure(status int, err error) Envelope {
	return Envelope{
		Status:  status,
		Data:    emptyObject(),
		Message: Kind(status) + ": " + logger.MaskProxy(err.Error()),
	}
}

func emptyObject() json.RawMessage {
	return json.RawMessage("{}")
}

// textual accepts JSON and text/* payloads; a missing header is left to the JSON check.
func textual(contentType string) bool {
	if strings.TrimSpace(contentType) == "" {
		return true
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json") || strings.HasPrefix(mt, "text/")
}

func decode(ctx context.Context, req Request, raw []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return emptyObject()
	}
	if !json.Valid(trimmed) {
		logger.LogEvent(ctx, logger.HTTP, slog.LevelWarn, "http.decode",
			slog.String("status", "fail"),
			slog.String("method", req.Method),
			slog.String("url", req.URL),
			slog.String("payload", logger.SanitizeLimit(string(trimmed), 200)),
		)
		return emptyObject()
	}
	return json.RawMessage(trimmed)
}

func observe(ctx context.Context, req Request, env Envelope, took time.Duration) {
	out := outcome(env.Status)
	metrics.DiscordRequests.WithLabelValues(req.Method, out).Inc()

	attrs := []slog.Attr{
		slog.String("method", req.Method),
		slog.String("url", req.URL),
		slog.Duration("duration", took),
	}
	if env.Status > 0 {
		attrs = append(attrs, slog.Int("http_code", env.Status))
	}
	if req.Token != "" {
		attrs = append(attrs, slog.String("token", logger.MaskToken(req.Token)))
	}
	if req.Proxy != "" {
		attrs = append(attrs, slog.String("proxy", logger.MaskProxy(req.Proxy)))
	}

	level := slog.LevelDebug
	status := "ok"
	switch {
	case env.Status < 0:
		level, status = slog.LevelError, "fail"
		attrs = append(attrs, slog.String("err_kind", Kind(env.Status)), slog.String("err", env.Message))
	case !env.OK():
		level, status = slog.LevelWarn, "fail"
		attrs = append(attrs, slog.String("err_kind", out))
	}
	attrs = append([]slog.Attr{slog.String("status", status)}, attrs...)
	logger.LogEvent(ctx, logger.HTTP, level, "http.request", attrs...)
}
