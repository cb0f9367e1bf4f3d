package router

import (
	"context"
	"log/slog"
	"time"

	"github.com/m3rciful/discordbot/core/logger"
	tg "github.com/m3rciful/discordbot/core/telegram"
	"github.com/m3rciful/discordbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions configures how commands are wrapped and exposed.
type CommandRouteOptions struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes prepares slash command handlers wrapped with the admin
// check and a handler summary.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}

	routes := make([]tg.Route, 0, len(reg.Commands()))
	for name, def := range reg.Commands() {
		routes = append(routes, tg.Route{
			Endpoint: name,
			Handler:  commandHandler(name, def, opts),
		})
	}

	logger.LogEvent(context.Background(), logger.TWire, slog.LevelInfo, "wire.commands",
		slog.String("status", "ok"),
		slog.Int("commands", len(routes)),
	)
	return routes
}

func commandHandler(name string, def tg.Command, opts CommandRouteOptions) tele.HandlerFunc {
	h := def.Handler
	if def.AdminOnly {
		h = middleware.AdminOnlyMiddleware(middleware.AdminOptions{
			AdminID:  opts.AdminID,
			OnReject: opts.OnAdminReject,
		})(h)
	}
	handlerName := normalizeHandlerName(name)
	return func(c tele.Context) error {
		start := time.Now()
		return handleWithSummary(c, handlerName, start, func() error { return h(c) })
	}
}
