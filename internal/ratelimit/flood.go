package ratelimit

import (
	"sync/atomic"
	"time"

	"github.com/kiarash-bot/kiarash/internal/shard"
)

// Flood policy defaults.
const (
	DefaultFloodWindow   = 10 * time.Second
	DefaultFloodMax      = 5
	DefaultFloodBan      = 30 * time.Minute
	defaultSweepInterval = 256
)

// FloodConfig configures a FloodGuard. Zero fields fall back to the defaults.
type FloodConfig struct {
	Window      time.Duration // trailing window length
	MaxMessages int           // messages allowed inside one window
	BanDuration time.Duration // ban installed by the first message over the limit

	// OnBan is called (outside any lock) when a ban is installed.
	OnBan func(userID int64, until time.Time)
	// OnReject is called (outside any lock) for every rejected message.
	OnReject func(userID int64)
}

// Decision is the outcome of one FloodGuard.Check call.
type Decision struct {
	Rejected bool
	// NewBan is true when this call installed the ban.
	NewBan bool
	// Remaining is the ban time left when Rejected is true.
	Remaining time.Duration
}

// RemainingMinSec splits Remaining into whole minutes and seconds for display.
func (d Decision) RemainingMinSec() (minutes, seconds int) {
	total := int(d.Remaining.Round(time.Second) / time.Second)
	return total / 60, total % 60
}

// floodRecord is the per-user rate state. history holds accepted-message times
// inside the trailing window.
type floodRecord struct {
	history     []time.Time
	bannedUntil time.Time
}

// FloodGuard rejects users that send more than MaxMessages free-text messages in
// any Window and bans them for BanDuration. It is safe for concurrent use; calls
// for different users only contend when they share a shard lookup.
//
// Records are swept lazily: every few hundred checks the shard of the current
// user drops idle records, so no background goroutine is needed.
type FloodGuard struct {
	cfg     FloodConfig
	records *shard.Map[floodRecord]
	calls   atomic.Uint64
}

// NewFloodGuard creates a FloodGuard.
func NewFloodGuard(cfg FloodConfig) *FloodGuard {
	if cfg.Window <= 0 {
		cfg.Window = DefaultFloodWindow
	}
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = DefaultFloodMax
	}
	if cfg.BanDuration <= 0 {
		cfg.BanDuration = DefaultFloodBan
	}
	return &FloodGuard{
		cfg:     cfg,
		records: shard.New[floodRecord](shard.DefaultShards, nil),
	}
}

// Check records one inbound free-text message from userID at now and decides
// whether it must be rejected.
func (g *FloodGuard) Check(userID int64, now time.Time) Decision {
	var d Decision
	g.records.Update(userID, func(r *floodRecord) {
		if !r.bannedUntil.IsZero() {
			if now.Before(r.bannedUntil) {
				d = Decision{Rejected: true, Remaining: r.bannedUntil.Sub(now)}
				return
			}
			// Ban served: start over with an empty history.
			r.bannedUntil = time.Time{}
			r.history = r.history[:0]
		}

		r.history = append(r.history, now)
		r.history = trimBefore(r.history, now.Add(-g.cfg.Window))

		if len(r.history) > g.cfg.MaxMessages {
			r.bannedUntil = now.Add(g.cfg.BanDuration)
			r.history = r.history[:0]
			d = Decision{Rejected: true, NewBan: true, Remaining: g.cfg.BanDuration}
		}
	})

	if d.NewBan && g.cfg.OnBan != nil {
		g.cfg.OnBan(userID, now.Add(g.cfg.BanDuration))
	}
	if d.Rejected && g.cfg.OnReject != nil {
		g.cfg.OnReject(userID)
	}

	if g.calls.Add(1)%defaultSweepInterval == 0 {
		g.records.SweepShard(userID, func(r *floodRecord) bool {
			return r.idle(now, g.cfg.Window)
		})
	}
	return d
}

// ShouldReject is Check reduced to its verdict.
func (g *FloodGuard) ShouldReject(userID int64, now time.Time) bool {
	return g.Check(userID, now).Rejected
}

// HistoryLen returns how many timestamps are retained for userID.
func (g *FloodGuard) HistoryLen(userID int64) int {
	r, ok := g.records.Load(userID)
	if !ok {
		return 0
	}
	return len(r.history)
}

// BannedUntil returns the ban expiry of userID, or the zero time.
func (g *FloodGuard) BannedUntil(userID int64) time.Time {
	r, _ := g.records.Load(userID)
	return r.bannedUntil
}

// Tracked returns the number of users with a rate record.
func (g *FloodGuard) Tracked() int {
	return g.records.Len()
}

// Sweep drops every idle record as of now and returns how many were removed.
func (g *FloodGuard) Sweep(now time.Time) int {
	return g.records.Sweep(func(r *floodRecord) bool {
		return r.idle(now, g.cfg.Window)
	})
}

// idle reports whether the record carries no state that still matters at now.
func (r *floodRecord) idle(now time.Time, window time.Duration) bool {
	if now.Before(r.bannedUntil) {
		return false
	}
	cutoff := now.Add(-window)
	for _, t := range r.history {
		if !t.Before(cutoff) {
			return false
		}
	}
	return true
}

// trimBefore drops the entries strictly older than cutoff, in place.
// Callers may race on time.Now before taking the lock, so order is not assumed.
func trimBefore(ts []time.Time, cutoff time.Time) []time.Time {
	kept := ts[:0]
	for _, t := range ts {
		if !t.Before(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}
