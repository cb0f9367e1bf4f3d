package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"

	"github.com/m3rciful/discordbot/core/errreport"
	"github.com/m3rciful/discordbot/core/logger"
	tghelpers "github.com/m3rciful/discordbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// RecoverMiddleware turns handler panics into errors and reports them.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) (err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			ctx := tghelpers.BuildContext(c)
			logger.LogEvent(ctx, logger.TG, slog.LevelError, "tg.panic",
				slog.String("status", "fail"),
				slog.String("err", fmt.Sprint(r)),
				slog.String("stack", string(debug.Stack())),
			)
			tags := map[string]string{"handler": logger.HandlerFrom(ctx)}
			if id := logger.ChatIDFrom(ctx); id != 0 {
				tags["chat_id"] = strconv.FormatInt(id, 10)
			}
			errreport.CapturePanic(r, tags)
			err = fmt.Errorf("telegram: handler panic: %v", r)
		}()
		return next(c)
	}
}
