package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/m3rciful/discordbot/core/logger"
	"github.com/m3rciful/discordbot/internal/requester"
)

// PosterConfig binds a Poster to one channel and one phrase source.
type PosterConfig struct {
	BaseURL   string
	ChannelID int64
	Source    string
	Tokens    string
	// Proxies may be empty to connect directly.
	Proxies string
}

type messageBody struct {
	Content string `json:"content"`
	TTS     string `json:"tts"`
}

// Poster sends one phrase per Start call. Token and proxy files are read on
// the first call and the token pool is never refilled. A Poster belongs to a
// single send loop and is not safe for concurrent use.
type Poster struct {
	cfg     PosterConfig
	req     Requester
	phrases Phrases

	tokens  *TokenPool
	proxies *ProxyPool
}

// NewPoster returns a Poster for cfg.
func NewPoster(cfg PosterConfig, req Requester, phrases Phrases) *Poster {
	return &Poster{cfg: cfg, req: req, phrases: phrases}
}

// Remaining reports unused tokens; -1 before the first Start.
func (p *Poster) Remaining() int {
	if p.tokens == nil {
		return -1
	}
	return p.tokens.Len()
}

// Start posts the next phrase with the next token and returns the created message.
func (p *Poster) Start(ctx context.Context) (*Message, error) {
	if p.tokens == nil {
		pool, err := LoadTokens(p.cfg.Tokens)
		if err != nil {
			return nil, err
		}
		p.tokens = pool
	}
	if p.tokens.Len() == 0 {
		return nil, ErrTokensExhausted
	}

	proxy, err := p.proxy()
	if err != nil {
		return nil, err
	}

	token, _ := p.tokens.Pop()
	phrase, err := p.phrases.Next(p.cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("discord: pick phrase: %w", err)
	}

	env := p.req.Send(ctx, requester.Request{
		Method: http.MethodPost,
		URL:    messagesURL(p.cfg.BaseURL, p.cfg.ChannelID),
		Token:  token,
		Proxy:  proxy,
		Body:   messageBody{Content: phrase, TTS: "false"},
	})

	attrs := []slog.Attr{
		slog.Int64("channel_id", p.cfg.ChannelID),
		slog.String("token", logger.MaskToken(token)),
		slog.String("proxy", logger.MaskProxy(proxy)),
		slog.Int("http_code", env.Status),
	}
	if !env.OK() || isEmpty(env.Data) {
		sendErr := envelopeError(env, token)
		logger.LogEvent(ctx, logger.Discord, slog.LevelWarn, "discord.send",
			append(attrs,
				slog.String("status", "fail"),
				slog.String("err", sendErr.Redacted()),
			)...)
		return nil, sendErr
	}

	var msg Message
	if err := json.Unmarshal(env.Data, &msg); err != nil {
		return nil, &SendError{Status: env.Status, Message: "decode message: " + err.Error()}
	}
	logger.LogEvent(ctx, logger.Discord, slog.LevelInfo, "discord.send",
		append(attrs, slog.String("status", "ok"), slog.Int("tokens_left", p.tokens.Len()))...)
	return &msg, nil
}

func (p *Poster) proxy() (string, error) {
	if p.cfg.Proxies == "" {
		return "", nil
	}
	if p.proxies == nil {
		pool, err := LoadProxies(p.cfg.Proxies)
		if err != nil {
			return "", err
		}
		p.proxies = pool
	}
	return p.proxies.Pick()
}

func isEmpty(data json.RawMessage) bool {
	s := string(data)
	return s == "" || s == "{}" || s == "null"
}
