package genai

import (
	"github.com/kiarash-bot/kiarash/internal/shard"
)

// Memory keeps the recent conversation of every user, bounded to a fixed
// number of user/assistant pairs.
type Memory struct {
	turns   int
	history *shard.Map[[]Message]
}

// NewMemory creates a Memory remembering turns pairs per user.
// turns <= 0 disables memory.
func NewMemory(turns int) *Memory {
	return &Memory{
		turns:   turns,
		history: shard.New[[]Message](shard.DefaultShards, nil),
	}
}

// History returns a copy of userID's remembered messages, oldest first.
func (m *Memory) History(userID int64) []Message {
	h, ok := m.history.Load(userID)
	if !ok {
		return nil
	}
	return append([]Message(nil), h...)
}

// Append records one completed exchange and drops the oldest pairs past the bound.
func (m *Memory) Append(userID int64, user, assistant string) {
	if m.turns <= 0 {
		return
	}
	limit := 2 * m.turns
	m.history.Update(userID, func(h *[]Message) {
		next := append(*h, Message{Role: RoleUser, Content: user}, Message{Role: RoleAssistant, Content: assistant})
		if len(next) > limit {
			next = append([]Message(nil), next[len(next)-limit:]...)
		}
		*h = next
	})
}

// Reset forgets userID's conversation.
func (m *Memory) Reset(userID int64) {
	m.history.Delete(userID)
}

// Users returns the number of users with remembered messages.
func (m *Memory) Users() int {
	return m.history.Len()
}
