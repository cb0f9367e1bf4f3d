package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRouterServesMetricsAndHealth(t *testing.T) {
	DiscordRequests.WithLabelValues("POST", "ok").Inc()
	PhrasesSent.Inc()

	srv := httptest.NewServer(Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Fatalf("healthz = %d %q", resp.StatusCode, body)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	for _, want := range []string{
		`discordbot_discord_requests_total{method="POST",outcome="ok"}`,
		"discordbot_phrases_sent_total",
		"discordbot_send_loops_active",
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("metrics output missing %s", want)
		}
	}
}

func TestStartDisabledAndLifecycle(t *testing.T) {
	s, err := Start("")
	if err != nil || s != nil {
		t.Fatalf("Start(\"\") = %v, %v", s, err)
	}
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("nil shutdown: %v", err)
	}

	s, err = Start("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
