package domain

import (
	"testing"
	"time"
)

func TestPendingFlow_LiveWithinTTL(t *testing.T) {
	now := time.Now()
	f := &PendingFlow{}
	f.Start(now, "trigger text")

	if !f.Live(now.Add(4 * time.Minute)) {
		t.Error("Expected flow to be live within the TTL")
	}
	if !f.Live(now.Add(FlowTTL)) {
		t.Error("Expected flow to be live exactly at the TTL boundary")
	}
}

func TestPendingFlow_ExpiredAfterTTL(t *testing.T) {
	now := time.Now()
	f := &PendingFlow{}
	f.Start(now, "trigger text")

	if f.Live(now.Add(FlowTTL + time.Second)) {
		t.Error("Expected flow to be expired past the TTL")
	}
}

func TestPendingFlow_StartOverwrites(t *testing.T) {
	now := time.Now()
	f := &PendingFlow{}
	f.Start(now.Add(-10*time.Minute), "old trigger")
	f.Start(now, "new trigger")

	if !f.Live(now) {
		t.Error("Expected restarted flow to be live")
	}
	if f.Context != "new trigger" {
		t.Errorf("Expected new context, got %q", f.Context)
	}
}

func TestPendingFlow_Clear(t *testing.T) {
	now := time.Now()
	f := &PendingFlow{}
	f.Start(now, "trigger")
	f.Clear()

	if f.Live(now) {
		t.Error("Expected cleared flow to be dead")
	}
	if f.Context != "" {
		t.Errorf("Expected cleared context, got %q", f.Context)
	}
}

func TestPendingFlow_NeverStarted(t *testing.T) {
	f := &PendingFlow{}
	if f.Live(time.Now()) {
		t.Error("Expected zero-value flow to be dead")
	}
}
