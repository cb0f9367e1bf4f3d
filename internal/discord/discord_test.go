package discord

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/m3rciful/discordbot/internal/requester"
)

type fakeRequester struct {
	reqs []requester.Request
	resp func(requester.Request) requester.Envelope
}

func (f *fakeRequester) Send(_ context.Context, req requester.Request) requester.Envelope {
	f.reqs = append(f.reqs, req)
	return f.resp(req)
}

type fixedPhrases struct {
	phrase string
	err    error
	paths  []string
}

func (f *fixedPhrases) Next(path string) (string, error) {
	f.paths = append(f.paths, path)
	return f.phrase, f.err
}

func writeLines(t *testing.T, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func created(content string) func(requester.Request) requester.Envelope {
	return func(requester.Request) requester.Envelope {
		data, _ := json.Marshal(Message{ID: "9", ChannelID: "5", Content: content, Author: Author{ID: "1", Username: "bob"}})
		return requester.Envelope{Status: http.StatusOK, Data: data}
	}
}

func TestParseProxy(t *testing.T) {
	got, err := ParseProxy("u:p:1.1.1.1:80")
	if err != nil {
		t.Fatalf("ParseProxy: %v", err)
	}
	if got != "http://u:p@1.1.1.1:80/" {
		t.Fatalf("proxy = %q", got)
	}

	for _, bad := range []string{"", "1.1.1.1:80", "u:p:1.1.1.1", "u::1.1.1.1:80", "u:p:1.1.1.1:http", "u:p:h:1:2"} {
		if _, err := ParseProxy(bad); !errors.Is(err, ErrProxyFormat) {
			t.Fatalf("ParseProxy(%q) err = %v, want ErrProxyFormat", bad, err)
		}
	}
}

func TestParseChannelLink(t *testing.T) {
	tests := []struct {
		in             string
		guild, channel int64
	}{
		{"https://discord.com/channels/111/222", 111, 222},
		{"https://discord.com/channels/111/222/", 111, 222},
		{"  111/222  ", 111, 222},
		{"https://discord.com/channels/@me/222", 0, 0},
		{"https://discord.com/channels/111/abc", 0, 0},
		{"https://discord.com/channels/0/222", 0, 0},
		{"222", 0, 0},
		{"", 0, 0},
	}
	for _, tt := range tests {
		g, c := ParseChannelLink(tt.in)
		if g != tt.guild || c != tt.channel {
			t.Fatalf("ParseChannelLink(%q) = (%d, %d), want (%d, %d)", tt.in, g, c, tt.guild, tt.channel)
		}
	}
}

func TestPosterStartSendsPhrase(t *testing.T) {
	fr := &fakeRequester{resp: created("hello")}
	phrases := &fixedPhrases{phrase: "hello"}
	p := NewPoster(PosterConfig{
		BaseURL:   "https://discord.test/api/v9",
		ChannelID: 5,
		Source:    "vocabulary.txt",
		Tokens:    writeLines(t, "tokens.txt", "T1"),
		Proxies:   writeLines(t, "proxies.txt", "u:p:1.1.1.1:80"),
	}, fr, phrases)

	msg, err := p.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if msg.Content != "hello" || msg.Author.Name() != "bob" {
		t.Fatalf("message = %+v", msg)
	}

	want := []requester.Request{{
		Method: http.MethodPost,
		URL:    "https://discord.test/api/v9/channels/5/messages",
		Token:  "T1",
		Proxy:  "http://u:p@1.1.1.1:80/",
		Body:   messageBody{Content: "hello", TTS: "false"},
	}}
	if diff := cmp.Diff(want, fr.reqs); diff != "" {
		t.Fatalf("requests (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"vocabulary.txt"}, phrases.paths); diff != "" {
		t.Fatalf("phrase sources (-want +got):\n%s", diff)
	}
}

func TestPosterTokensPoppedFromEndThenExhausted(t *testing.T) {
	fr := &fakeRequester{resp: created("x")}
	p := NewPoster(PosterConfig{
		BaseURL: "http://d",
		Tokens:  writeLines(t, "tokens.txt", "first", "", "second"),
	}, fr, &fixedPhrases{phrase: "x"})

	if p.Remaining() != -1 {
		t.Fatalf("remaining before start = %d", p.Remaining())
	}
	for i := 0; i < 2; i++ {
		if _, err := p.Start(context.Background()); err != nil {
			t.Fatalf("Start #%d: %v", i, err)
		}
	}
	if _, err := p.Start(context.Background()); !errors.Is(err, ErrTokensExhausted) {
		t.Fatalf("third Start err = %v, want ErrTokensExhausted", err)
	}
	if got := []string{fr.reqs[0].Token, fr.reqs[1].Token}; !cmp.Equal(got, []string{"second", "first"}) {
		t.Fatalf("token order = %v", got)
	}
	if fr.reqs[0].Proxy != "" {
		t.Fatalf("proxy = %q, want direct connection", fr.reqs[0].Proxy)
	}
}

func TestPosterServerErrorWithBodyFails(t *testing.T) {
	fr := &fakeRequester{resp: func(requester.Request) requester.Envelope {
		return requester.Envelope{Status: http.StatusBadGateway, Data: json.RawMessage(`{"message":"upstream"}`), Message: "error 502"}
	}}
	p := NewPoster(PosterConfig{BaseURL: "http://d", Tokens: writeLines(t, "tokens.txt", "T1", "T2")}, fr, &fixedPhrases{phrase: "x"})

	msg, err := p.Start(context.Background())
	var se *SendError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *SendError", err)
	}
	if msg != nil {
		t.Fatalf("message = %+v, want nil", msg)
	}
	if se.Status != http.StatusBadGateway || se.Message != "error 502" || se.Token != "T2" {
		t.Fatalf("send error = %+v", se)
	}
	if p.Remaining() != 1 {
		t.Fatalf("remaining = %d, want 1", p.Remaining())
	}
}

func TestSendErrorRedacted(t *testing.T) {
	token := "MTIzNDU2Nzg5.abcdef"
	se := &SendError{Status: 401, Message: "token: " + token + "\nerror 401", Token: token}
	got := se.Redacted()
	if strings.Contains(got, token) {
		t.Fatalf("Redacted() = %q leaks the token", got)
	}
	if !strings.Contains(got, "MTIz") || !strings.Contains(got, "(401)") {
		t.Fatalf("Redacted() = %q", got)
	}
	if !strings.Contains(se.Error(), token) {
		t.Fatalf("Error() = %q, want the raw token", se.Error())
	}
}

func TestPosterStartErrors(t *testing.T) {
	dir := t.TempDir()
	tokens := writeLines(t, "tokens.txt", "T1")
	phraseErr := errors.New("vocabulary: file not found")

	tests := []struct {
		name    string
		cfg     PosterConfig
		phrases *fixedPhrases
		resp    requester.Envelope
		check   func(error) bool
	}{
		{
			name:  "missing tokens",
			cfg:   PosterConfig{Tokens: filepath.Join(dir, "none.txt")},
			check: func(err error) bool { return errors.Is(err, ErrNoTokens) },
		},
		{
			name:  "empty tokens",
			cfg:   PosterConfig{Tokens: writeLines(t, "empty.txt", "")},
			check: func(err error) bool { return errors.Is(err, ErrNoTokens) },
		},
		{
			name:  "missing proxies",
			cfg:   PosterConfig{Tokens: tokens, Proxies: filepath.Join(dir, "none.txt")},
			check: func(err error) bool { return errors.Is(err, ErrNoProxies) },
		},
		{
			name:  "bad proxy",
			cfg:   PosterConfig{Tokens: tokens, Proxies: writeLines(t, "proxies.txt", "1.1.1.1:80")},
			check: func(err error) bool { return errors.Is(err, ErrProxyFormat) },
		},
		{
			name:    "phrase error",
			cfg:     PosterConfig{Tokens: tokens},
			phrases: &fixedPhrases{err: phraseErr},
			check:   func(err error) bool { return errors.Is(err, phraseErr) },
		},
		{
			name: "unauthorized",
			cfg:  PosterConfig{Tokens: tokens},
			resp: requester.Envelope{Status: 401, Data: json.RawMessage("{}"), Message: "token: T1\nerror 401"},
			check: func(err error) bool {
				var se *SendError
				return errors.As(err, &se) && se.Status == 401 && strings.Contains(se.Message, "T1")
			},
		},
		{
			name: "empty data",
			cfg:  PosterConfig{Tokens: tokens},
			resp: requester.Envelope{Status: 200, Data: json.RawMessage("{}")},
			check: func(err error) bool {
				var se *SendError
				return errors.As(err, &se) && se.Message == "empty response"
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			phrases := tt.phrases
			if phrases == nil {
				phrases = &fixedPhrases{phrase: "hi"}
			}
			fr := &fakeRequester{resp: func(requester.Request) requester.Envelope { return tt.resp }}
			_, err := NewPoster(tt.cfg, fr, phrases).Start(context.Background())
			if err == nil || !tt.check(err) {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestParserAppendsContent(t *testing.T) {
	var gotURL, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURL = r.URL.String()
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[
			{"id":"3","content":"third one"},
			{"id":"2","content":""},
			{"id":"1","content":"multi\nline"}
		]`)
	}))
	defer srv.Close()

	out := writeLines(t, "parsed.txt", "existing")
	p := NewParser(ParserConfig{BaseURL: srv.URL, Token: "P", Limit: 500, Output: out}, requester.New(requester.Options{}))

	res, err := p.Parse(context.Background(), 77)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if diff := cmp.Diff(ParseResult{Fetched: 3, Saved: 2}, res); diff != "" {
		t.Fatalf("result (-want +got):\n%s", diff)
	}
	if gotURL != "/channels/77/messages?limit=100" || gotAuth != "P" {
		t.Fatalf("request = %s auth=%q", gotURL, gotAuth)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "existing\nthird one\nmulti line\n" {
		t.Fatalf("parsed file = %q", data)
	}
}

func TestParserErrors(t *testing.T) {
	if _, err := NewParser(ParserConfig{}, &fakeRequester{}).Parse(context.Background(), 1); !errors.Is(err, ErrNoParsingToken) {
		t.Fatalf("err = %v, want ErrNoParsingToken", err)
	}

	fr := &fakeRequester{resp: func(requester.Request) requester.Envelope {
		return requester.Envelope{Status: 403, Data: json.RawMessage("{}"), Message: "token: P\nerror 403"}
	}}
	out := filepath.Join(t.TempDir(), "parsed.txt")
	_, err := NewParser(ParserConfig{Token: "P", Output: out}, fr).Parse(context.Background(), 1)
	var se *SendError
	if !errors.As(err, &se) || se.Status != 403 {
		t.Fatalf("err = %v, want 403 SendError", err)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Fatalf("parsed file should not be created on failure: %v", statErr)
	}
}
