package helpers

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/discordbot/core/logger"
	"github.com/m3rciful/discordbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the asynchronous sender used by helper functions. Nil
// makes helpers send synchronously.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

// Enqueue runs fn on the dispatcher, or inline when none is set or its queue
// cannot take the job.
func Enqueue(ctx context.Context, action, endpoint string, fn func() error) error {
	disp := globalDispatcher.Load()
	if disp == nil {
		return fn()
	}
	if err := disp.Enqueue(ctx, action, endpoint, fn); err != nil {
		if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
			logger.Warn(ctx, "tg.sender", "queue.fallback",
				slog.String("action", action),
				slog.String("err", err.Error()),
			)
			return fn()
		}
		return err
	}
	return nil
}

// SendText sends plain text to the current chat with optional reply markup.
func SendText(c tele.Context, text string, markup *tele.ReplyMarkup) error {
	opts := &tele.SendOptions{DisableWebPagePreview: true}
	if markup != nil {
		opts.ReplyMarkup = markup
	}
	return Enqueue(BuildContext(c), "send.text", "sendMessage", func() error {
		return c.Send(text, opts)
	})
}

// ChatSender is the part of *tele.Bot used to message a chat directly.
type ChatSender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// SendTo sends plain text to chatID outside of an update, e.g. from a send loop.
func SendTo(ctx context.Context, bot ChatSender, chatID int64, text string, markup *tele.ReplyMarkup) error {
	opts := &tele.SendOptions{DisableWebPagePreview: true}
	if markup != nil {
		opts.ReplyMarkup = markup
	}
	return Enqueue(ctx, "send.notify", "sendMessage", func() error {
		_, err := bot.Send(tele.ChatID(chatID), text, opts)
		return err
	})
}
