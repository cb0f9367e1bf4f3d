package app

import (
	tg "github.com/m3rciful/discordbot/core/telegram"
	tghelpers "github.com/m3rciful/discordbot/core/telegram/helpers"
	"github.com/m3rciful/discordbot/core/telegram/keyboard"
	"github.com/m3rciful/discordbot/internal/dialogue"

	tele "gopkg.in/telebot.v4"
)

const rateLimitedText = "Too many requests. Try again in a moment."

var (
	mainKeyboard = [][]string{
		{dialogue.ButtonStartVocabulary, dialogue.ButtonStartParsed, dialogue.ButtonParse},
		{dialogue.ButtonPause},
	}
	cancelKeyboard = [][]string{{dialogue.ButtonCancel}}
)

func markupFor(k dialogue.Keyboard) *tele.ReplyMarkup {
	switch k {
	case dialogue.KeyboardMain:
		return keyboard.ReplyButtons(mainKeyboard...)
	case dialogue.KeyboardCancel:
		return keyboard.ReplyButtons(cancelKeyboard...)
	}
	return nil
}

func (a *App) registerCommands() error {
	commands := []struct {
		name string
		cmd  tg.Command
	}{
		{"/start", tg.Command{Handler: a.onStart, Description: "Show the main menu"}},
		{"/cancel", tg.Command{Handler: a.onCancel, Description: "Stop the current action", Aliases: []string{"отмена"}}},
		{"/status", tg.Command{Handler: a.onStatus, Description: "Show running loops", AdminOnly: true, Hidden: true}},
	}
	for _, c := range commands {
		if err := a.registry.RegisterCommand(c.name, c.cmd); err != nil {
			return err
		}
	}
	a.registry.SetTextFallback(a.onText)
	return nil
}

func reply(c tele.Context, r dialogue.Reply) error {
	return tghelpers.SendText(c, r.Text, markupFor(r.Keyboard))
}

func chatID(c tele.Context) (int64, bool) {
	chat := c.Chat()
	if chat == nil {
		return 0, false
	}
	return chat.ID, true
}

func (a *App) onStart(c tele.Context) error {
	id, ok := chatID(c)
	if !ok {
		return nil
	}
	return reply(c, a.machine.Start(tghelpers.BuildContext(c), id))
}

func (a *App) onCancel(c tele.Context) error {
	id, ok := chatID(c)
	if !ok {
		return nil
	}
	return reply(c, a.machine.Cancel(tghelpers.BuildContext(c), id))
}

func (a *App) onText(c tele.Context) error {
	id, ok := chatID(c)
	if !ok {
		return nil
	}
	return reply(c, a.machine.Handle(tghelpers.BuildContext(c), id, c.Text()))
}

func (a *App) onStatus(c tele.Context) error {
	return tghelpers.SendText(c, a.statusText(), nil)
}

func (a *App) onLimited(c tele.Context) error {
	return tghelpers.SendText(c, rateLimitedText, nil)
}
