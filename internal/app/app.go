// Package app wires the Discord relay into the Telegram runtime.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/m3rciful/discordbot/core/buildinfo"
	coreconfig "github.com/m3rciful/discordbot/core/config"
	"github.com/m3rciful/discordbot/core/logger"
	tg "github.com/m3rciful/discordbot/core/telegram"
	tghelpers "github.com/m3rciful/discordbot/core/telegram/helpers"
	"github.com/m3rciful/discordbot/core/telegram/router"
	tgsender "github.com/m3rciful/discordbot/core/telegram/sender"
	"github.com/m3rciful/discordbot/core/telegram/state"
	"github.com/m3rciful/discordbot/internal/dialogue"
	"github.com/m3rciful/discordbot/internal/discord"
	"github.com/m3rciful/discordbot/internal/requester"
	"github.com/m3rciful/discordbot/internal/sendloop"
	"github.com/m3rciful/discordbot/internal/vocabulary"
)

// App owns the per-process state shared by handlers and send loops.
type App struct {
	cfg *coreconfig.Config

	sessions   state.Manager
	vocab      *vocabulary.Store
	req        *requester.Sender
	parser     *discord.Parser
	supervisor *sendloop.Supervisor
	machine    *dialogue.Machine
	registry   *tg.Registry

	mu         sync.RWMutex
	sender     tghelpers.ChatSender
	dispatcher *tgsender.Dispatcher
}

// New builds the application graph from cfg.
func New(cfg *coreconfig.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config")
	}
	a := &App{
		cfg:      cfg,
		sessions: state.NewMemoryManager(cfg.Pause.Min, cfg.Pause.Max),
		vocab: vocabulary.New(vocabulary.Options{
			Shuffle:   cfg.Vocabulary.Shuffle,
			MaxLength: cfg.Vocabulary.MaxLength,
		}),
		req:      newRequester(cfg),
		registry: tg.NewRegistry(),
	}
	a.parser = newParser(cfg, a.req)
	a.supervisor = sendloop.NewSupervisor(&sendloop.Runner{
		Sessions:   a.sessions,
		NewStarter: a.newStarter,
		Notifier:   sendloop.NotifierFunc(a.notify),
	})
	a.machine = dialogue.New(dialogue.Options{
		Sessions:   a.sessions,
		Launcher:   a.supervisor,
		Parser:     a.parser,
		Vocabulary: cfg.Files.Vocabulary,
		Parsed:     cfg.Files.Parsed,
		Version:    buildinfo.String(),
	})
	if err := a.registerCommands(); err != nil {
		return nil, err
	}
	return a, nil
}

func newRequester(cfg *coreconfig.Config) *requester.Sender {
	return requester.New(requester.Options{
		Timeout: time.Duration(cfg.Discord.RequestTimeoutSeconds) * time.Second,
	})
}

func newParser(cfg *coreconfig.Config, req discord.Requester) *discord.Parser {
	return discord.NewParser(discord.ParserConfig{
		BaseURL: cfg.Discord.BaseURL,
		Token:   cfg.Discord.ParsingToken,
		Limit:   cfg.Discord.MessagesLimit,
		Output:  cfg.Files.Parsed,
	}, req)
}

func (a *App) newStarter(job sendloop.Job) sendloop.Starter {
	return discord.NewPoster(discord.PosterConfig{
		BaseURL:   a.cfg.Discord.BaseURL,
		ChannelID: job.ChannelID,
		Source:    job.Source,
		Tokens:    a.cfg.Files.Tokens,
		Proxies:   a.cfg.Files.Proxies,
	}, a.req, a.vocab)
}

// TelegramRunOptions implements cmd.TelegramApp.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	adminID := a.cfg.Telegram.AdminID
	return tg.RunOptions{
		Config:   a.cfg,
		Registry: a.registry,
		Middlewares: tg.DefaultMiddlewares(a.cfg, tg.MiddlewareOptions{
			OnLimited: a.onLimited,
			Sessions:  a.sessions,
		}),
		Routes: func(tg.Runtime) []tg.Route {
			routes := router.CommandRoutes(a.registry, router.CommandRouteOptions{AdminID: adminID})
			return append(routes, router.TextRoutes(a.registry, router.TextOptions{
				AdminID:      adminID,
				UnknownMedia: a.onText,
			})...)
		},
		OnStart: func(ctx context.Context, rt tg.Runtime) error {
			if rt.Bot != nil {
				a.setSender(rt.Bot)
			}
			a.mu.Lock()
			a.dispatcher = rt.Dispatcher
			a.mu.Unlock()
			if adminID != 0 {
				a.notify(ctx, adminID, "Bot started, version "+buildinfo.String())
			}
			return nil
		},
		OnStop: func(ctx context.Context, _ tg.Runtime) error {
			a.Close()
			return nil
		},
	}, nil
}

// Close stops every running send loop and waits for them to finish.
func (a *App) Close() {
	a.supervisor.Close()
}

func (a *App) setSender(s tghelpers.ChatSender) {
	a.mu.Lock()
	a.sender = s
	a.mu.Unlock()
}

func (a *App) chatSender() tghelpers.ChatSender {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sender
}

// notify reports send loop progress to a chat through the reply dispatcher.
func (a *App) notify(ctx context.Context, chatID int64, text string) {
	s := a.chatSender()
	if s == nil {
		logger.Warn(ctx, "app", "notify",
			slog.String("status", "skip"),
			slog.Int64("chat_id", chatID),
		)
		return
	}
	markup := markupFor(dialogue.KeyboardNone)
	if text == sendloop.FinishedText {
		markup = markupFor(dialogue.KeyboardMain)
	}
	if err := tghelpers.SendTo(ctx, s, chatID, text, markup); err != nil {
		logger.Error(ctx, "app", "notify",
			slog.String("status", "fail"),
			slog.Int64("chat_id", chatID),
			slog.String("err", logger.RedactBotToken(err.Error())),
		)
	}
}

func (a *App) statusText() string {
	jobs := a.supervisor.Jobs()
	var b strings.Builder
	fmt.Fprintf(&b, "Version: %s\nSessions: %d\nActive loops: %d", buildinfo.String(), a.sessions.Len(), len(jobs))
	a.mu.RLock()
	if a.dispatcher != nil {
		fmt.Fprintf(&b, "\nTelegram send failures: %d", a.dispatcher.ErrorCount())
	}
	a.mu.RUnlock()
	for _, chatID := range slices.Sorted(maps.Keys(jobs)) {
		job := jobs[chatID]
		fmt.Fprintf(&b, "\n- chat %d: channel %d from %s, pause %d-%d",
			chatID, job.ChannelID, job.Source, job.PauseMin, job.PauseMax)
	}
	return b.String()
}

// ParseChannel scrapes the channel behind link once, outside the bot runtime.
func ParseChannel(ctx context.Context, cfg *coreconfig.Config, link string) (int64, discord.ParseResult, error) {
	_, channel := discord.ParseChannelLink(link)
	if channel == 0 {
		return 0, discord.ParseResult{}, fmt.Errorf("app: invalid channel link %q", link)
	}
	res, err := newParser(cfg, newRequester(cfg)).Parse(ctx, channel)
	return channel, res, err
}
