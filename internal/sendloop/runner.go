// Package sendloop drives the per-chat loop that posts phrases to Discord until
// the chat leaves the in-work state.
package sendloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/m3rciful/discordbot/core/errreport"
	"github.com/m3rciful/discordbot/core/logger"
	"github.com/m3rciful/discordbot/core/metrics"
	"github.com/m3rciful/discordbot/core/telegram/state"
	"github.com/m3rciful/discordbot/internal/discord"
)

// FinishedText is sent when a loop ends for any reason.
const FinishedText = "Finished work."

// Job describes what a loop sends and how fast.
type Job struct {
	GuildID   int64
	ChannelID int64
	// Source is the phrase file.
	Source   string
	PauseMin int
	PauseMax int
}

// Starter posts one phrase.
type Starter interface {
	Start(ctx context.Context) (*discord.Message, error)
}

// Notifier delivers loop reports to a Telegram chat.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, chatID int64, text string)

func (f NotifierFunc) Notify(ctx context.Context, chatID int64, text string) { f(ctx, chatID, text) }

// Runner executes loops. Each Run builds its own Starter through NewStarter.
type Runner struct {
	Sessions   state.Manager
	NewStarter func(Job) Starter
	Notifier   Notifier
	// Delay draws the pause before the next send; defaults to a uniform draw in seconds.
	Delay func(lo, hi int) time.Duration
}

// Run posts phrases while the chat is in work and ctx is alive. A failed send
// is reported and ends the loop. When ctx was not cancelled the chat is reset to
// idle on exit; a cancelled loop leaves the session to whoever cancelled it.
func (r *Runner) Run(ctx context.Context, chatID int64, job Job) {
	ctx = logger.WithChat(ctx, chatID)
	notifyCtx := context.WithoutCancel(ctx)
	delay := r.Delay
	if delay == nil {
		delay = uniformDelay
	}
	starter := r.NewStarter(job)

	start := time.Now()
	sent := 0
	logger.LogEvent(ctx, logger.Loop, slog.LevelInfo, "loop.start",
		slog.Int64("channel_id", job.ChannelID),
		slog.Int64("guild_id", job.GuildID),
		slog.String("source", job.Source),
	)
	defer func() {
		cancelled := ctx.Err() != nil
		if !cancelled {
			r.Sessions.Reset(chatID)
		}
		status := "ok"
		if cancelled {
			status = "cancelled"
		}
		logger.LogEvent(ctx, logger.Loop, slog.LevelInfo, "loop.stop",
			slog.String("status", status),
			slog.Int("count", sent),
			slog.Duration("duration", time.Since(start)),
		)
		r.Notifier.Notify(notifyCtx, chatID, FinishedText)
	}()

	for ctx.Err() == nil && r.Sessions.GetState(chatID) == state.StateInWork {
		wait := delay(job.PauseMin, job.PauseMax)

		msg, err := starter.Start(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			reported := redact(err)
			logger.LogEvent(ctx, logger.Loop, slog.LevelError, "loop.send",
				slog.String("status", "fail"),
				slog.Int64("channel_id", job.ChannelID),
				slog.String("err", reported.Error()),
			)
			errreport.CaptureError(reported, map[string]string{
				"chat_id":    strconv.FormatInt(chatID, 10),
				"channel_id": strconv.FormatInt(job.ChannelID, 10),
			})
			r.Notifier.Notify(notifyCtx, chatID, "Error: "+err.Error())
			return
		}
		sent++
		metrics.PhrasesSent.Inc()
		r.Notifier.Notify(notifyCtx, chatID, fmt.Sprintf("User %s sent [%s] to channel %d",
			msg.Author.Name(), msg.Content, job.ChannelID))

		logger.LogEvent(ctx, logger.Loop, slog.LevelDebug, "loop.sleep", slog.Duration("delay", wait))
		if !sleep(ctx, wait) {
			return
		}
	}
}

// redact masks credentials carried by err. The chat notification keeps the
// original text so the user can tell which token failed.
func redact(err error) error {
	var r interface{ Redacted() string }
	if errors.As(err, &r) {
		return errors.New(r.Redacted())
	}
	return err
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func uniformDelay(lo, hi int) time.Duration {
	if hi < lo {
		lo, hi = hi, lo
	}
	return time.Duration(lo+rand.IntN(hi-lo+1)) * time.Second
}
