package domain

import "time"

// RunRecord is one completed recovery-script run, journaled for /history.
type RunRecord struct {
	ID         string
	Mode       string
	ExitCode   int
	Elapsed    time.Duration
	OutputTail string
	Killed     bool
	StartedAt  time.Time
}

// Preferences are the small durable user choices persisted between restarts.
// They are a convenience: losing them only resets defaults.
type Preferences struct {
	Model   string    `json:"model"`
	SavedAt time.Time `json:"saved_at"`
}
