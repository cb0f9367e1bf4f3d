package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/m3rciful/discordbot/core/config"
	"github.com/m3rciful/discordbot/core/logger"
	"github.com/m3rciful/discordbot/core/metrics"
	"github.com/m3rciful/discordbot/internal/requester"
)

// ParserConfig configures channel scraping.
type ParserConfig struct {
	BaseURL string
	Token   string
	// Limit is the page size; values outside 1..100 fall back to 100.
	Limit  int
	Output string
}

// ParseResult counts fetched messages and lines written.
type ParseResult struct {
	Fetched int
	Saved   int
}

// Parser copies recent channel messages into the parsed phrase file.
type Parser struct {
	cfg ParserConfig
	req Requester
}

// NewParser returns a Parser for cfg.
func NewParser(cfg ParserConfig, req Requester) *Parser {
	if cfg.Limit < 1 || cfg.Limit > config.MaxMessagesLimit {
		cfg.Limit = config.MaxMessagesLimit
	}
	return &Parser{cfg: cfg, req: req}
}

var flatten = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// Parse fetches the latest messages of channelID and appends every non-empty
// content, one per line, to the output file.
func (p *Parser) Parse(ctx context.Context, channelID int64) (ParseResult, error) {
	if strings.TrimSpace(p.cfg.Token) == "" {
		return ParseResult{}, ErrNoParsingToken
	}

	env := p.req.Send(ctx, requester.Request{
		Method: http.MethodGet,
		URL:    fmt.Sprintf("%s?limit=%d", messagesURL(p.cfg.BaseURL, channelID), p.cfg.Limit),
		Token:  p.cfg.Token,
	})
	if !env.OK() {
		return ParseResult{}, envelopeError(env, p.cfg.Token)
	}

	var msgs []Message
	if err := json.Unmarshal(env.Data, &msgs); err != nil {
		return ParseResult{}, &SendError{Status: env.Status, Message: "decode messages: " + err.Error()}
	}

	var b strings.Builder
	res := ParseResult{Fetched: len(msgs)}
	for _, m := range msgs {
		line := strings.TrimSpace(flatten.Replace(m.Content))
		if line == "" {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
		res.Saved++
	}

	if res.Saved > 0 {
		if err := appendFile(p.cfg.Output, b.String()); err != nil {
			return res, err
		}
	}
	metrics.MessagesParsed.Add(float64(res.Saved))
	logger.LogEvent(ctx, logger.Discord, slog.LevelInfo, "discord.parse",
		slog.String("status", "ok"),
		slog.Int64("channel_id", channelID),
		slog.Int("fetched", res.Fetched),
		slog.Int("count", res.Saved),
		slog.String("source", p.cfg.Output),
	)
	return res, nil
}

func appendFile(path, data string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("discord: open %s: %w", path, err)
	}
	if _, err := f.WriteString(data); err != nil {
		f.Close()
		return fmt.Errorf("discord: write %s: %w", path, err)
	}
	return f.Close()
}
