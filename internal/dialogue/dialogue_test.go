package dialogue

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/m3rciful/discordbot/core/telegram/state"
	"github.com/m3rciful/discordbot/internal/discord"
	"github.com/m3rciful/discordbot/internal/sendloop"
)

type fakeLauncher struct {
	launched map[int64]sendloop.Job
	stopped  []int64
}

func (f *fakeLauncher) Launch(chatID int64, job sendloop.Job) {
	if f.launched == nil {
		f.launched = map[int64]sendloop.Job{}
	}
	f.launched[chatID] = job
}

func (f *fakeLauncher) Stop(chatID int64) bool {
	f.stopped = append(f.stopped, chatID)
	_, ok := f.launched[chatID]
	delete(f.launched, chatID)
	return ok
}

type fakeParser struct {
	res      discord.ParseResult
	err      error
	channels []int64
}

func (f *fakeParser) Parse(_ context.Context, channelID int64) (discord.ParseResult, error) {
	f.channels = append(f.channels, channelID)
	return f.res, f.err
}

func newMachine() (*Machine, state.Manager, *fakeLauncher, *fakeParser) {
	sessions := state.NewMemoryManager(120, 280)
	l := &fakeLauncher{}
	p := &fakeParser{res: discord.ParseResult{Fetched: 4, Saved: 3}}
	m := New(Options{
		Sessions:   sessions,
		Launcher:   l,
		Parser:     p,
		Vocabulary: "vocabulary.txt",
		Parsed:     "parsed.txt",
		Version:    "1.2.3",
	})
	return m, sessions, l, p
}

const link = "https://discord.com/channels/111/222"

func TestStartGreetsWithVersion(t *testing.T) {
	m, _, _, _ := newMachine()
	r := m.Start(context.Background(), 1)
	if !strings.Contains(r.Text, "1.2.3") || r.Keyboard != KeyboardMain {
		t.Fatalf("reply = %+v", r)
	}
}

func TestStartDropsPendingInput(t *testing.T) {
	ctx := context.Background()
	m, sessions, _, _ := newMachine()

	m.Handle(ctx, 1, ButtonPause)
	if r := m.Start(ctx, 1); r.Keyboard != KeyboardMain {
		t.Fatalf("reply = %+v", r)
	}
	if st := sessions.GetState(1); st != state.StateIdle {
		t.Fatalf("state = %s, want idle", st)
	}

	sessions.SetState(2, state.StateInWork)
	if r := m.Start(ctx, 2); r.Keyboard != KeyboardCancel {
		t.Fatalf("in work reply = %+v", r)
	}
	if st := sessions.GetState(2); st != state.StateInWork {
		t.Fatalf("start must not interrupt a running loop, state = %s", st)
	}
}

func TestStartFromVocabularyLaunchesLoop(t *testing.T) {
	ctx := context.Background()
	m, sessions, l, _ := newMachine()

	r := m.Handle(ctx, 1, ButtonStartVocabulary)
	if r.Keyboard != KeyboardCancel || sessions.GetState(1) != state.StateAwaitingLinkNormal {
		t.Fatalf("after button: %+v state=%s", r, sessions.GetState(1))
	}

	r = m.Handle(ctx, 1, "not a link")
	if r.Text != badLink || sessions.GetState(1) != state.StateAwaitingLinkNormal {
		t.Fatalf("invalid link must re-prompt: %+v state=%s", r, sessions.GetState(1))
	}

	r = m.Handle(ctx, 1, link)
	if r.Text != "Starting work." || r.Keyboard != KeyboardCancel {
		t.Fatalf("reply = %+v", r)
	}
	want := sendloop.Job{GuildID: 111, ChannelID: 222, Source: "vocabulary.txt", PauseMin: 120, PauseMax: 280}
	if diff := cmp.Diff(want, l.launched[1]); diff != "" {
		t.Fatalf("job (-want +got):\n%s", diff)
	}
	if got := sessions.Get(1); got.State != state.StateInWork || got.Source != "vocabulary.txt" {
		t.Fatalf("session = %+v", got)
	}

	r = m.Handle(ctx, 1, ButtonStartParsed)
	if r.Keyboard != KeyboardCancel || len(l.launched) != 1 {
		t.Fatalf("buttons must be ignored while in work: %+v", r)
	}
}

func TestStartFromParsedUsesCustomPause(t *testing.T) {
	ctx := context.Background()
	m, _, l, _ := newMachine()

	m.Handle(ctx, 5, ButtonPause)
	if r := m.Handle(ctx, 5, "10-20"); r.Text != "Pause range set: 10-20" {
		t.Fatalf("pause reply = %+v", r)
	}
	m.Handle(ctx, 5, ButtonStartParsed)
	m.Handle(ctx, 5, link+"/")

	want := sendloop.Job{GuildID: 111, ChannelID: 222, Source: "parsed.txt", PauseMin: 10, PauseMax: 20}
	if diff := cmp.Diff(want, l.launched[5]); diff != "" {
		t.Fatalf("job (-want +got):\n%s", diff)
	}
}

func TestPauseInputRePrompts(t *testing.T) {
	ctx := context.Background()
	m, sessions, _, _ := newMachine()
	m.Handle(ctx, 2, ButtonPause)

	for _, bad := range []string{"abc", "5", "0-10", "20-10", "-5-10", "1-x"} {
		r := m.Handle(ctx, 2, bad)
		if !strings.HasPrefix(r.Text, "Input error.") || r.Keyboard != KeyboardCancel {
			t.Fatalf("input %q: reply = %+v", bad, r)
		}
		if st := sessions.GetState(2); st != state.StateAwaitingPause {
			t.Fatalf("input %q changed state to %s", bad, st)
		}
	}
	got := sessions.Get(2)
	if got.PauseMin != 120 || got.PauseMax != 280 {
		t.Fatalf("pause changed by invalid input: %+v", got)
	}
}

func TestParsePause(t *testing.T) {
	lo, hi, err := ParsePause(" 120 - 280 ")
	if err != nil || lo != 120 || hi != 280 {
		t.Fatalf("ParsePause = %d, %d, %v", lo, hi, err)
	}
	if _, _, err := ParsePause("7-7"); err != nil {
		t.Fatalf("equal bounds rejected: %v", err)
	}
	if _, _, err := ParsePause("9-3"); !errors.Is(err, ErrPauseFormat) {
		t.Fatalf("err = %v", err)
	}
}

func TestParsingChannel(t *testing.T) {
	ctx := context.Background()
	m, sessions, l, p := newMachine()

	m.Handle(ctx, 3, ButtonParse)
	r := m.Handle(ctx, 3, link)
	if r.Text != "Parsed 3 messages from channel 222." || r.Keyboard != KeyboardMain {
		t.Fatalf("reply = %+v", r)
	}
	if diff := cmp.Diff([]int64{222}, p.channels); diff != "" {
		t.Fatalf("parsed channels (-want +got):\n%s", diff)
	}
	if sessions.GetState(3) != state.StateIdle || len(l.launched) != 0 {
		t.Fatalf("parsing must return to idle without launching")
	}

	p.err = discord.ErrNoParsingToken
	m.Handle(ctx, 3, ButtonParse)
	r = m.Handle(ctx, 3, link)
	if !strings.HasPrefix(r.Text, "Parsing failed: ") || sessions.GetState(3) != state.StateIdle {
		t.Fatalf("failure reply = %+v state=%s", r, sessions.GetState(3))
	}
}

func TestCancelFromEveryState(t *testing.T) {
	ctx := context.Background()
	for _, input := range []string{"/cancel", "/отмена", "Cancel", "ОТМЕНА please", "cancel"} {
		for _, st := range []state.State{
			state.StateIdle, state.StateAwaitingPause, state.StateAwaitingLinkNormal,
			state.StateAwaitingLinkParsed, state.StateAwaitingLinkParsing, state.StateInWork,
		} {
			m, sessions, l, _ := newMachine()
			sessions.SetState(9, st)
			r := m.Handle(ctx, 9, input)
			if r.Keyboard != KeyboardMain || sessions.GetState(9) != state.StateIdle {
				t.Fatalf("%q in %s: reply=%+v state=%s", input, st, r, sessions.GetState(9))
			}
			if diff := cmp.Diff([]int64{9}, l.stopped); diff != "" {
				t.Fatalf("%q in %s: stopped (-want +got):\n%s", input, st, diff)
			}
		}
	}
}

func TestUnknownTextInIdle(t *testing.T) {
	m, _, _, _ := newMachine()
	r := m.Handle(context.Background(), 1, "hello there")
	if diff := cmp.Diff(Reply{Text: "Command not recognized.", Keyboard: KeyboardMain}, r); diff != "" {
		t.Fatalf("reply (-want +got):\n%s", diff)
	}
}

func TestIsCancel(t *testing.T) {
	for text, want := range map[string]bool{
		"/cancel":      true,
		"/Отмена":      true,
		"  cancel  ":   true,
		"Cancel now":   true,
		"cancellation": true,
		"/cancel@bot":  true,
		"отменить":     false,
		"start":        false,
		"please stop":  false,
		"":             false,
	} {
		if got := IsCancel(text); got != want {
			t.Fatalf("IsCancel(%q) = %v, want %v", text, got, want)
		}
	}
}
