package domain

import "time"

// FlowTTL is how long a pending flow waits for its free-text payload.
const FlowTTL = 5 * time.Minute

// PendingFlow is the single in-flight multi-step conversation: the bridge
// asked a question and the next qualifying free-text input answers it. Only
// one flow may be active; starting a new one overwrites the old.
type PendingFlow struct {
	Active    bool
	StartedAt time.Time

	// Context captured when the flow started (the trigger text).
	Context string
}

// Start arms the flow, replacing any previous one.
func (f *PendingFlow) Start(now time.Time, context string) {
	f.Active = true
	f.StartedAt = now
	f.Context = context
}

// Clear consumes the flow.
func (f *PendingFlow) Clear() {
	f.Active = false
	f.StartedAt = time.Time{}
	f.Context = ""
}

// Live reports whether the flow is active and within its TTL. An expired
// flow is treated as absent; the caller clears it lazily.
func (f *PendingFlow) Live(now time.Time) bool {
	return f.Active && now.Sub(f.StartedAt) <= FlowTTL
}
