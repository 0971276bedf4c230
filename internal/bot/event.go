package bot

import "time"

// ChatKind tells direct conversations from group chats.
type ChatKind uint8

const (
	// ChatDirect is a one-to-one chat with the bot.
	ChatDirect ChatKind = iota
	// ChatGroup covers groups and supergroups.
	ChatGroup
)

// Member is a user that joined a group.
type Member struct {
	FirstName string
	IsBot     bool
}

// Event is one inbound update, independent of the transport that delivered it.
// Exactly one of Text, CallbackToken or NewMembers is set.
type Event struct {
	UserID   int64
	ChatID   int64
	ChatKind ChatKind

	// Text is the message text, including any @mention of the bot.
	Text string
	// CallbackToken is the data of a pressed inline button.
	CallbackToken string
	// NewMembers lists the users that joined a group.
	NewMembers []Member

	IsReplyToBot bool
	MentionsBot  bool

	ReceivedAt time.Time
}

// IsGroup reports whether the event comes from a group chat.
func (e Event) IsGroup() bool {
	return e.ChatKind == ChatGroup
}

// kind is the metrics label of the event.
func (e Event) kind() string {
	switch {
	case e.CallbackToken != "":
		return "callback"
	case len(e.NewMembers) > 0:
		return "join"
	case isCommand(e.Text):
		return "command"
	default:
		return "text"
	}
}

// KeyboardKind selects how a keyboard is attached to a reply.
type KeyboardKind uint8

const (
	// KeyboardInline is attached under the message; buttons carry callback data.
	KeyboardInline KeyboardKind = iota
	// KeyboardReply replaces the user's keyboard; buttons send their label as text.
	KeyboardReply
)

// Button is one keyboard button. Data is empty on reply keyboards.
type Button struct {
	Label string
	Data  string
}

// Keyboard is a structured menu attached to a reply.
type Keyboard struct {
	Kind KeyboardKind
	Rows [][]Button
}

// Reply is one outbound message.
type Reply struct {
	Text     string
	Keyboard *Keyboard
}

// Outcome classifies how an event was handled, for metrics and logs.
type Outcome string

const (
	OutcomeSuccess     Outcome = "success"
	OutcomeError       Outcome = "error"
	OutcomeIgnored     Outcome = "ignored"
	OutcomeNotFound    Outcome = "not_found"
	OutcomeRateLimited Outcome = "rate_limited"
)

// Response is the router's answer to one event.
type Response struct {
	Replies []Reply
	Outcome Outcome
}

func respond(replies ...Reply) Response {
	return Response{Replies: replies, Outcome: OutcomeSuccess}
}

func failed(replies ...Reply) Response {
	return Response{Replies: replies, Outcome: OutcomeError}
}

func plain(s string) Reply {
	return Reply{Text: s}
}
