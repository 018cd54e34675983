package domain

import (
	"testing"
	"time"
)

// fakeClock steps time manually.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestCooldownGate_FirstAlertAllowed(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	g := NewCooldownGate(10*time.Minute, clock.now)

	if !g.Allow(NotifyConflict) {
		t.Error("Expected first alert to be allowed")
	}
}

func TestCooldownGate_SecondAlertThrottled(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	g := NewCooldownGate(10*time.Minute, clock.now)

	g.MarkSent(NotifyConflict)
	clock.advance(9 * time.Minute)

	if g.Allow(NotifyConflict) {
		t.Error("Expected alert inside the window to be throttled")
	}
}

func TestCooldownGate_AllowedAfterWindow(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	g := NewCooldownGate(10*time.Minute, clock.now)

	g.MarkSent(NotifyConflict)
	clock.advance(10 * time.Minute)

	if !g.Allow(NotifyConflict) {
		t.Error("Expected alert at the window boundary to be allowed")
	}
}

func TestCooldownGate_KindsAreIndependent(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	g := NewCooldownGate(10*time.Minute, clock.now)

	g.MarkSent(NotifyConflict)

	if !g.Allow(NotifyUnauthorized) {
		t.Error("Expected a different kind to have its own window")
	}
}

func TestCooldownGate_FailedSendDoesNotConsumeWindow(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	g := NewCooldownGate(10*time.Minute, clock.now)

	// Allow without MarkSent models a send that failed.
	if !g.Allow(NotifyConflict) {
		t.Fatal("Expected first check to pass")
	}
	if !g.Allow(NotifyConflict) {
		t.Error("Expected window untouched when nothing was sent")
	}
}
