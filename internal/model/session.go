package model

// SessionStatus enumerates the states of an exam session. Exactly one
// holds at any instant.
type SessionStatus string

const (
	SessionStatusWaiting  SessionStatus = "waiting"
	SessionStatusActive   SessionStatus = "active"
	SessionStatusDetained SessionStatus = "detention"
	SessionStatusFinished SessionStatus = "finished"
	// SessionStatusTimedOut is local to the client. The gateway is told
	// "finished" when the clock runs out so teacher-side views show
	// completion rather than abandonment.
	SessionStatusTimedOut SessionStatus = "timed_out"
)

// Terminal reports whether the status admits no further transitions.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusFinished || s == SessionStatusTimedOut
}
