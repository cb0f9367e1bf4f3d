package state

// State identifies a finite-state-machine step used in conversations.
type State string

const (
	// StateIdle indicates there is no active conversation with the chat.
	StateIdle State = "idle"
	// StateAwaitingPause waits for a "min-max" pause range.
	StateAwaitingPause State = "awaiting_pause"
	// StateAwaitingLinkNormal waits for a channel link to start from the vocabulary file.
	StateAwaitingLinkNormal State = "awaiting_link_normal"
	// StateAwaitingLinkParsed waits for a channel link to start from the parsed file.
	StateAwaitingLinkParsed State = "awaiting_link_parsed"
	// StateAwaitingLinkParsing waits for a channel link to scrape.
	StateAwaitingLinkParsing State = "awaiting_link_parsing"
	// StateInWork means a send loop is running for the chat.
	StateInWork State = "in_work"
)

// AwaitingLink reports whether st expects a channel link.
func (st State) AwaitingLink() bool {
	switch st {
	case StateAwaitingLinkNormal, StateAwaitingLinkParsed, StateAwaitingLinkParsing:
		return true
	}
	return false
}

// Session stores conversation state for a chat.
type Session struct {
	State State
	// Source is the phrase file the running loop draws from.
	Source string
	// PauseMin and PauseMax bound the delay between sends, in seconds.
	PauseMin int
	PauseMax int
}

// Manager orchestrates chat sessions and FSM state transitions.
type Manager interface {
	// Get returns a copy of the chat session, or a fresh idle session.
	Get(chatID int64) Session
	// Update applies fn to the stored session under the lock and returns the result.
	Update(chatID int64, fn func(*Session)) Session

	SetState(chatID int64, st State)
	GetState(chatID int64) State
	// Reset returns the chat to idle, keeping its pause bounds.
	Reset(chatID int64)
	InProgress(chatID int64) bool
	// Len reports how many chats have a session.
	Len() int
}
