package domain

import "time"

// Role identifies the author of a conversation turn.
type Role string

// Conversation roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a conversation. Turns are immutable once
// appended to a session's history.
type Turn struct {
	// Role is the author of the turn.
	Role Role

	// Content is the message text.
	Content string

	// CitedChunkIDs lists the chunks the assistant cited, in order of
	// first appearance. Empty for user turns and uncited replies.
	CitedChunkIDs []string

	// Timestamp is when the turn was appended.
	Timestamp time.Time
}

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

// Session states. A session processes at most one turn at a time;
// retrieving, composing and generating are the phases of that turn.
const (
	SessionIdle       SessionStatus = "idle"
	SessionRetrieving SessionStatus = "retrieving"
	SessionComposing  SessionStatus = "composing"
	SessionGenerating SessionStatus = "generating"
	SessionErrored    SessionStatus = "errored"
	SessionClosed     SessionStatus = "closed"
)

// Terminal reports whether the status admits no further turns.
func (s SessionStatus) Terminal() bool {
	return s == SessionClosed
}

// SessionInfo is a read-only snapshot of a session's metadata.
type SessionInfo struct {
	ID         string
	ModelAlias string
	Status     SessionStatus
	TurnCount  int
	CreatedAt  time.Time
	LastActive time.Time
}
