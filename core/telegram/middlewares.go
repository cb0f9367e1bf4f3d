package telegram

import (
	"strings"
	"time"

	coreconfig "github.com/m3rciful/discordbot/core/config"
	"github.com/m3rciful/discordbot/core/telegram/middleware"
	"github.com/m3rciful/discordbot/core/telegram/state"

	tele "gopkg.in/telebot.v4"
)

// MiddlewareOptions adds hooks to the shared middleware chain.
type MiddlewareOptions struct {
	OnLimited tele.HandlerFunc
	// Sessions, when set, exposes the chat session snapshot to handlers.
	Sessions state.Manager
}

// DefaultMiddlewares builds the shared middleware chain for the bot.
func DefaultMiddlewares(cfg *coreconfig.Config, opts MiddlewareOptions) []Middleware {
	mws := []Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware},
	}

	if cfg != nil {
		interval := time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond
		if interval > 0 {
			ex := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
			for _, t := range cfg.RateLimit.ExcludeUpdates {
				ex[strings.ToLower(t)] = struct{}{}
			}
			mws = append(mws, Middleware{
				Name: "rate_limit",
				Use: middleware.RateLimitMiddleware(middleware.RateLimitOptions{
					Interval:  interval,
					Exclude:   ex,
					OnLimited: opts.OnLimited,
				}),
			})
		}
	}

	mws = append(mws,
		Middleware{Name: "logger", Use: middleware.LoggerMiddleware},
		Middleware{Name: "metrics", Use: middleware.MessageMetricsMiddleware},
	)
	if opts.Sessions != nil {
		mws = append(mws, Middleware{Name: "session", Use: state.WithSession(opts.Sessions)})
	}
	return mws
}
