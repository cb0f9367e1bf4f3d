// Package dialogue implements the chat conversation: menu buttons, pause range
// input, channel links and cancellation.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/m3rciful/discordbot/core/logger"
	"github.com/m3rciful/discordbot/core/telegram/state"
	"github.com/m3rciful/discordbot/internal/discord"
	"github.com/m3rciful/discordbot/internal/sendloop"
)

// Menu buttons.
const (
	ButtonStartVocabulary = "Start from vocabulary"
	ButtonStartParsed     = "Start from parsed"
	ButtonParse           = "Parse chat"
	ButtonPause           = "Set pause range"
	ButtonCancel          = "Cancel"
)

// Keyboard selects the reply keyboard sent with a Reply.
type Keyboard int

const (
	KeyboardNone Keyboard = iota
	KeyboardMain
	KeyboardCancel
)

// Reply is what the bot answers to one update.
type Reply struct {
	Text     string
	Keyboard Keyboard
}

// ErrPauseFormat rejects pause input that is not "min-max" with 0 < min <= max.
var ErrPauseFormat = errors.New("dialogue: pause must look like min-max")

// Launcher runs and stops send loops.
type Launcher interface {
	Launch(chatID int64, job sendloop.Job)
	Stop(chatID int64) bool
}

// Parser scrapes a channel into the parsed file.
type Parser interface {
	Parse(ctx context.Context, channelID int64) (discord.ParseResult, error)
}

// Options wires a Machine.
type Options struct {
	Sessions   state.Manager
	Launcher   Launcher
	Parser     Parser
	Vocabulary string
	Parsed     string
	Version    string
}

// Machine routes chat input according to the chat's session state.
type Machine struct {
	sessions   state.Manager
	launcher   Launcher
	parser     Parser
	vocabulary string
	parsed     string
	version    string
}

// New returns a Machine.
func New(opts Options) *Machine {
	return &Machine{
		sessions:   opts.Sessions,
		launcher:   opts.Launcher,
		parser:     opts.Parser,
		vocabulary: opts.Vocabulary,
		parsed:     opts.Parsed,
		version:    opts.Version,
	}
}

const (
	linkPrompt = "Send the channel link like:\nhttps://discord.com/channels/932034587264167975/932034858906401842"
	badLink    = "Check the channel link and try again."
	pauseHint  = "Enter the pause range between messages as min-max, for example 120-280."
)

// Start greets the chat. Any pending input is dropped unless a loop is running.
func (m *Machine) Start(ctx context.Context, chatID int64) Reply {
	text := "Welcome.\nVersion: " + m.version
	if !m.sessions.InProgress(chatID) {
		return Reply{Text: text, Keyboard: KeyboardMain}
	}
	if m.sessions.GetState(chatID) == state.StateInWork {
		return Reply{Text: text, Keyboard: KeyboardCancel}
	}
	m.transition(ctx, chatID, state.StateIdle)
	return Reply{Text: text, Keyboard: KeyboardMain}
}

// Cancel stops the chat's loop, if any, and returns to idle.
func (m *Machine) Cancel(ctx context.Context, chatID int64) Reply {
	stopped := m.launcher.Stop(chatID)
	from := m.sessions.GetState(chatID)
	m.sessions.Reset(chatID)
	logger.Info(ctx, "dialogue", "dialogue.cancel",
		slog.String("status", "ok"),
		slog.String("state", string(from)),
		slog.Bool("loop_stopped", stopped),
	)
	return Reply{Text: "You cancelled the current command.", Keyboard: KeyboardMain}
}

// Handle processes free text, including menu buttons and cancel words.
func (m *Machine) Handle(ctx context.Context, chatID int64, text string) Reply {
	text = strings.TrimSpace(text)
	if IsCancel(text) {
		return m.Cancel(ctx, chatID)
	}

	sess := m.sessions.Get(chatID)
	switch {
	case sess.State == state.StateAwaitingPause:
		return m.handlePause(ctx, chatID, text)
	case sess.State.AwaitingLink():
		return m.handleLink(ctx, chatID, sess, text)
	case sess.State == state.StateInWork:
		return Reply{Text: "Sending is in progress. Press Cancel to stop.", Keyboard: KeyboardCancel}
	}

	switch text {
	case ButtonStartVocabulary:
		m.transition(ctx, chatID, state.StateAwaitingLinkNormal)
		return Reply{Text: linkPrompt, Keyboard: KeyboardCancel}
	case ButtonStartParsed:
		m.transition(ctx, chatID, state.StateAwaitingLinkParsed)
		return Reply{Text: linkPrompt, Keyboard: KeyboardCancel}
	case ButtonParse:
		m.transition(ctx, chatID, state.StateAwaitingLinkParsing)
		return Reply{Text: linkPrompt, Keyboard: KeyboardCancel}
	case ButtonPause:
		m.transition(ctx, chatID, state.StateAwaitingPause)
		return Reply{
			Text:     fmt.Sprintf("%s\nCurrent range: %d-%d.", pauseHint, sess.PauseMin, sess.PauseMax),
			Keyboard: KeyboardCancel,
		}
	}
	return Reply{Text: "Command not recognized.", Keyboard: KeyboardMain}
}

func (m *Machine) handlePause(ctx context.Context, chatID int64, text string) Reply {
	lo, hi, err := ParsePause(text)
	if err != nil {
		return Reply{Text: "Input error. " + pauseHint, Keyboard: KeyboardCancel}
	}
	m.sessions.Update(chatID, func(s *state.Session) {
		s.PauseMin, s.PauseMax = lo, hi
		s.State = state.StateIdle
	})
	logger.Info(ctx, "dialogue", "dialogue.pause",
		slog.String("status", "ok"),
		slog.Int("pause_min", lo),
		slog.Int("pause_max", hi),
	)
	return Reply{Text: fmt.Sprintf("Pause range set: %d-%d", lo, hi), Keyboard: KeyboardMain}
}

func (m *Machine) handleLink(ctx context.Context, chatID int64, sess state.Session, text string) Reply {
	guild, channel := discord.ParseChannelLink(text)
	if channel == 0 {
		return Reply{Text: badLink, Keyboard: KeyboardCancel}
	}

	if sess.State == state.StateAwaitingLinkParsing {
		res, err := m.parser.Parse(ctx, channel)
		m.transition(ctx, chatID, state.StateIdle)
		if err != nil {
			return Reply{Text: "Parsing failed: " + err.Error(), Keyboard: KeyboardMain}
		}
		return Reply{
			Text:     fmt.Sprintf("Parsed %d messages from channel %d.", res.Saved, channel),
			Keyboard: KeyboardMain,
		}
	}

	source := m.vocabulary
	if sess.State == state.StateAwaitingLinkParsed {
		source = m.parsed
	}
	sess = m.sessions.Update(chatID, func(s *state.Session) {
		s.State = state.StateInWork
		s.Source = source
	})
	logger.Info(ctx, "dialogue", "dialogue.transition",
		slog.String("status", "ok"),
		slog.String("state", string(state.StateInWork)),
		slog.Int64("guild_id", guild),
		slog.Int64("channel_id", channel),
		slog.String("source", source),
	)
	m.launcher.Launch(chatID, sendloop.Job{
		GuildID:   guild,
		ChannelID: channel,
		Source:    source,
		PauseMin:  sess.PauseMin,
		PauseMax:  sess.PauseMax,
	})
	return Reply{Text: "Starting work.", Keyboard: KeyboardCancel}
}

func (m *Machine) transition(ctx context.Context, chatID int64, to state.State) {
	m.sessions.SetState(chatID, to)
	logger.Debug(ctx, "dialogue", "dialogue.transition",
		slog.String("status", "ok"),
		slog.String("state", string(to)),
	)
}

var cancelWords = []string{"cancel", "отмена"}

// IsCancel reports whether text asks to cancel: /cancel, /отмена or any text
// starting with a cancel word, case-insensitive.
func IsCancel(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	t = strings.TrimPrefix(t, "/")
	for _, w := range cancelWords {
		// Prefix match on purpose: "cancellation" and "/cancel@bot" cancel too.
		if strings.HasPrefix(t, w) {
			return true
		}
	}
	return false
}

// ParsePause parses "min-max" with positive integers and min <= max.
func ParsePause(text string) (lo, hi int, err error) {
	a, b, ok := strings.Cut(strings.TrimSpace(text), "-")
	if !ok {
		return 0, 0, ErrPauseFormat
	}
	lo, errLo := strconv.Atoi(strings.TrimSpace(a))
	hi, errHi := strconv.Atoi(strings.TrimSpace(b))
	if errLo != nil || errHi != nil || lo <= 0 || hi <= 0 || lo > hi {
		return 0, 0, ErrPauseFormat
	}
	return lo, hi, nil
}
