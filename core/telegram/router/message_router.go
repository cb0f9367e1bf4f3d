package router

import (
	"time"

	tg "github.com/m3rciful/discordbot/core/telegram"

	tele "gopkg.in/telebot.v4"
)

// TextOptions controls fallback behaviour for non-text updates.
type TextOptions struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
	// UnknownMedia answers documents, photos and stickers. Nil ignores them.
	UnknownMedia tele.HandlerFunc
}

// TextRoutes routes plain text. Commands the Bot API did not match as
// entities, such as non-Latin aliases, are looked up first; everything else
// goes to the registry text fallback.
func TextRoutes(reg *tg.Registry, opts TextOptions) []tg.Route {
	cmdOpts := CommandRouteOptions{AdminID: opts.AdminID, OnAdminReject: opts.OnAdminReject}

	text := func(c tele.Context) error {
		start := time.Now()
		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(c.Text()); ok {
				return commandHandler(key, cmd, cmdOpts)(c)
			}
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "text", start, func() error { return fb(c) })
			}
		}
		logHandlerSummary(c, "unknown_text", start, "skip", "ok", nil)
		return nil
	}

	media := func(c tele.Context) error {
		start := time.Now()
		if opts.UnknownMedia != nil {
			return handleWithSummary(c, "unexpected_media", start, func() error {
				return opts.UnknownMedia(c)
			})
		}
		logHandlerSummary(c, "unexpected_media", start, "skip", "ok", nil)
		return nil
	}

	return []tg.Route{
		{Endpoint: tele.OnText, Handler: text},
		{Endpoint: tele.OnDocument, Handler: media},
		{Endpoint: tele.OnPhoto, Handler: media},
		{Endpoint: tele.OnSticker, Handler: media},
	}
}
