package domain

import "time"

// FailureKind classifies one poll attempt's outcome.
type FailureKind int

const (
	FailNone FailureKind = iota // success
	FailConflict                // HTTP 409: another consumer holds the long poll
	FailUnauthorized            // HTTP 401: credential invalid or revoked
	FailOther                   // any other non-2xx or transport error
)

// PollTunables are the delay parameters for the poll loop. conf converts its
// PollConfig into this so the state machine stays dependency-free.
type PollTunables struct {
	BaseInterval      time.Duration
	BaseBackoff       time.Duration
	BackoffCap        time.Duration
	BackoffStep       time.Duration
	UnauthorizedRetry time.Duration
}

// BackoffState is the poller's failure memory. It is owned and mutated only
// by the poll loop.
type BackoffState struct {
	ConsecutiveFailures int
}

// Next records the outcome of one poll attempt and returns the delay before
// the next one. A success resets the failure count and returns the base
// interval; failures grow the delay by kind:
//
//	conflict:     baseBackoff * 2^min(failures,5), capped
//	unauthorized: fixed long retry interval
//	other:        baseInterval + failures*step, capped
func (b *BackoffState) Next(kind FailureKind, t PollTunables) time.Duration {
	if kind == FailNone {
		b.ConsecutiveFailures = 0
		return t.BaseInterval
	}

	b.ConsecutiveFailures++

	switch kind {
	case FailConflict:
		exp := b.ConsecutiveFailures
		if exp > 5 {
			exp = 5
		}
		delay := t.BaseBackoff * (1 << uint(exp))
		if delay > t.BackoffCap {
			delay = t.BackoffCap
		}
		return delay

	case FailUnauthorized:
		return t.UnauthorizedRetry

	default:
		delay := t.BaseInterval + time.Duration(b.ConsecutiveFailures)*t.BackoffStep
		if delay > t.BackoffCap {
			delay = t.BackoffCap
		}
		return delay
	}
}
