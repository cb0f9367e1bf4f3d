package discord

import (
	"errors"
	"fmt"
	"strings"

	"github.com/m3rciful/discordbot/core/logger"
)

var (
	ErrNoTokens        = errors.New("discord: no tokens available")
	ErrTokensExhausted = errors.New("discord: all tokens have been used")
	ErrNoProxies       = errors.New("discord: no proxies available")
	ErrProxyFormat     = errors.New("discord: proxy must look like user:password:ip:port")
	ErrNoParsingToken  = errors.New("discord: parsing token is not configured")
)

// SendError reports a Discord call that did not produce a usable result.
// Error names the token that was used; Redacted masks it for logs and reports.
type SendError struct {
	Status  int
	Message string
	// Token is the credential the request was sent with, if any.
	Token string
}

func (e *SendError) Error() string {
	return fmt.Sprintf("discord: request failed (%d): %s", e.Status, e.Message)
}

// Redacted returns Error with the token masked.
func (e *SendError) Redacted() string {
	if e.Token == "" {
		return e.Error()
	}
	return strings.ReplaceAll(e.Error(), e.Token, logger.MaskToken(e.Token))
}
