package domain

import "time"

// NotifyKind names a throttled alert category.
type NotifyKind string

const (
	NotifyConflict     NotifyKind = "conflict"
	NotifyUnauthorized NotifyKind = "unauthorized"
	NotifyHint         NotifyKind = "hint" // configuration/authorization hints to senders
)

// CooldownGate rate-limits alerts per kind. The clock is injected so tests
// can advance time without sleeping.
type CooldownGate struct {
	window   time.Duration
	lastSent map[NotifyKind]time.Time
	now      func() time.Time
}

// NewCooldownGate creates a gate with the given minimum gap between alerts
// of one kind. now may be nil for the real clock.
func NewCooldownGate(window time.Duration, now func() time.Time) *CooldownGate {
	if now == nil {
		now = time.Now
	}
	return &CooldownGate{
		window:   window,
		lastSent: make(map[NotifyKind]time.Time),
		now:      now,
	}
}

// Allow reports whether an alert of this kind may be sent now.
func (g *CooldownGate) Allow(kind NotifyKind) bool {
	last, ok := g.lastSent[kind]
	if !ok {
		return true
	}
	return g.now().Sub(last) >= g.window
}

// MarkSent records that an alert of this kind was actually delivered. Kept
// separate from Allow so a failed send does not consume the window.
func (g *CooldownGate) MarkSent(kind NotifyKind) {
	g.lastSent[kind] = g.now()
}
