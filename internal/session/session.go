// Package session keeps the per-user conversation mode for the router.
// Sessions live for the process lifetime and are never persisted.
package session

import (
	"github.com/kiarash-bot/kiarash/internal/shard"
)

// Mode is the conversation state of one user.
type Mode uint8

// Modes. None is the zero value, so an unseen user starts at the top menu.
const (
	None Mode = iota
	WeatherMenu
	WeatherCurrent
	WeatherForecast
	AI

	modeCount
)

var modeNames = [modeCount]string{
	None:            "none",
	WeatherMenu:     "weather_menu",
	WeatherCurrent:  "weather_current",
	WeatherForecast: "weather_forecast",
	AI:              "ai",
}

func (m Mode) String() string {
	if m >= modeCount {
		return "unknown"
	}
	return modeNames[m]
}

// Valid reports whether m is one of the declared modes.
func (m Mode) Valid() bool {
	return m < modeCount
}

// Session is a snapshot of one user's conversation state.
type Session struct {
	Mode Mode
	// PendingCity is the city chosen in WeatherForecast while a date is awaited.
	PendingCity string
	// Version increases with every applied change; it guards delayed updates.
	Version uint64
}

// Store holds one Session per user id.
type Store struct {
	sessions *shard.Map[Session]
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{sessions: shard.New[Session](shard.DefaultShards, nil)}
}

// Get returns userID's session; unseen users are in None.
func (s *Store) Get(userID int64) Session {
	sess, _ := s.sessions.Load(userID)
	return sess
}

// Swap replaces userID's mode and pending city and returns the snapshot it
// replaced.
func (s *Store) Swap(userID int64, mode Mode, pendingCity string) Session {
	var prev Session
	s.sessions.Update(userID, func(sess *Session) {
		prev = *sess
		sess.Mode = mode
		sess.PendingCity = pendingCity
		sess.Version++
	})
	return prev
}

// SetIfVersion applies mode and pendingCity only when userID's session is still
// at version. It reports whether the change was applied. Routers use it to
// record the outcome of a slow provider call without clobbering a transition
// that happened while the call was in flight.
func (s *Store) SetIfVersion(userID int64, version uint64, mode Mode, pendingCity string) bool {
	applied := false
	s.sessions.Update(userID, func(sess *Session) {
		if sess.Version != version {
			return
		}
		sess.Mode = mode
		sess.PendingCity = pendingCity
		sess.Version++
		applied = true
	})
	return applied
}

// Len returns the number of users with a session.
func (s *Store) Len() int {
	return s.sessions.Len()
}
