package logger

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func newTestHandler(buf *bytes.Buffer, format logFormat) (*structuredHandler, *asyncWriter) {
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	return newStructuredHandler(handlerConfig{
		level:    slog.LevelInfo,
		writer:   aw,
		format:   format,
		keyOrder: append([]string(nil), defaultKeyOrder...),
	}), aw
}

func drain(t *testing.T, aw *asyncWriter, buf *bytes.Buffer) string {
	t.Helper()
	if err := aw.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return strings.TrimSpace(buf.String())
}

func TestStructuredHandlerKVOrder(t *testing.T) {
	buf := &bytes.Buffer{}
	handler, aw := newTestHandler(buf, formatKV)
	ctx := WithRID(context.Background(), "rid-123")
	ctx = WithUpdateMeta(ctx, 42, 7, 9)

	log := slog.New(handler).With("component", "discord")
	LogEvent(ctx, log, slog.LevelInfo, "send.ok",
		slog.String("status", "ok"),
		slog.Int64("channel_id", 2),
	)

	line := drain(t, aw, buf)
	tokens := strings.Split(line, " ")
	expected := []string{"ts=", "level=INFO", "component=discord", "event=send.ok", "status=ok", "rid=rid-123"}
	if len(tokens) < len(expected) {
		t.Fatalf("unexpected token count: %d (%s)", len(tokens), line)
	}
	for i, prefix := range expected {
		if !strings.HasPrefix(tokens[i], prefix) {
			t.Fatalf("token %d = %s, expected prefix %s", i, tokens[i], prefix)
		}
	}
	if !strings.Contains(line, "chat_id=9") {
		t.Fatalf("expected chat_id from context, got %s", line)
	}
}

func TestStructuredHandlerJSONOrder(t *testing.T) {
	buf := &bytes.Buffer{}
	handler, aw := newTestHandler(buf, formatJSON)
	ctx := WithRID(context.Background(), "11:22:33")

	log := slog.New(handler).With("component", "http.out")
	LogEvent(ctx, log, slog.LevelError, "request.failed",
		slog.String("status", "fail"),
		slog.String("err", "boom"),
		slog.Int("http_code", 403),
	)

	line := drain(t, aw, buf)
	prefixes := []string{`{"ts":`, `"level":"ERROR"`, `"component":"http.out"`, `"event":"request.failed"`, `"status":"fail"`, `"rid":"` + CompactRID("11:22:33") + `"`, `"rid_full":"11:22:33"`}
	pos := -1
	for _, pref := range prefixes {
		idx := strings.Index(line, pref)
		if idx == -1 || idx < pos {
			t.Fatalf("prefix %s not found in order within %s", pref, line)
		}
		pos = idx
	}
}

func TestStructuredHandlerDropsBelowLevelAndEmpty(t *testing.T) {
	buf := &bytes.Buffer{}
	handler, aw := newTestHandler(buf, formatKV)
	log := slog.New(handler)
	log.Debug("hidden")
	log.Info("visible", slog.String("proxy", ""), slog.String("outcome", "weird"))

	line := drain(t, aw, buf)
	if strings.Contains(line, "hidden") {
		t.Fatalf("debug record should be filtered: %s", line)
	}
	if strings.Contains(line, "proxy=") || strings.Contains(line, "outcome=") {
		t.Fatalf("empty and unknown enum fields must be pruned: %s", line)
	}
	if !strings.Contains(line, "component=app") || !strings.Contains(line, "event=visible") {
		t.Fatalf("defaults missing: %s", line)
	}
}

func TestDurationAttrsUseMilliseconds(t *testing.T) {
	key, val, ok := normalizeAttr("delay", slog.DurationValue(1500_000_000))
	if !ok || key != "delay_ms" || val != int64(1500) {
		t.Fatalf("got %s=%v (%v)", key, val, ok)
	}
}

func TestMaskToken(t *testing.T) {
	if got := MaskToken("abcd1234efgh5678"); got != "abcd…5678" {
		t.Fatalf("MaskToken = %q", got)
	}
	if got := MaskToken("short"); got != "*****" {
		t.Fatalf("MaskToken short = %q", got)
	}
	if got := MaskProxy("http://u:p@1.2.3.4:8080/"); got != "http://***@1.2.3.4:8080/" {
		t.Fatalf("MaskProxy = %q", got)
	}
}

func TestRatioSampler(t *testing.T) {
	s := newRatioSampler(1, 3)
	var allowed int
	for range 9 {
		if s.Allow() {
			allowed++
		}
	}
	if allowed != 3 {
		t.Fatalf("allowed = %d, want 3", allowed)
	}
	if n, d := parseRatioSpec("2/5"); n != 2 || d != 5 {
		t.Fatalf("parseRatioSpec = %d/%d", n, d)
	}
	if n, d := parseRatioSpec("10"); n != 1 || d != 10 {
		t.Fatalf("parseRatioSpec bare = %d/%d", n, d)
	}
}
