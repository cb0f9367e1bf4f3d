// Package discord posts phrases to and scrapes messages from Discord channels
// through the REST API.
package discord

import (
	"context"
	"fmt"

	"github.com/m3rciful/discordbot/internal/requester"
)

// Requester performs a single Discord call.
type Requester interface {
	Send(ctx context.Context, req requester.Request) requester.Envelope
}

// Phrases supplies the next phrase from a source file.
type Phrases interface {
	Next(path string) (string, error)
}

// Author is the sender of a Discord message.
type Author struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name,omitempty"`
}

// Name returns the display name, falling back to the username.
func (a Author) Name() string {
	if a.GlobalName != "" {
		return a.GlobalName
	}
	return a.Username
}

// Message is the subset of a Discord message object the bot uses.
type Message struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
	Author    Author `json:"author"`
	Timestamp string `json:"timestamp,omitempty"`
}

func messagesURL(baseURL string, channelID int64) string {
	return fmt.Sprintf("%s/channels/%d/messages", baseURL, channelID)
}

func envelopeError(env requester.Envelope, token string) *SendError {
	msg := env.Message
	if msg == "" {
		msg = "empty response"
	}
	return &SendError{Status: env.Status, Message: msg, Token: token}
}
