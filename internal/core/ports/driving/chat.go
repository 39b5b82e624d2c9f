package driving

import (
	"context"

	"github.com/custodia-labs/ragchat-cli/internal/core/domain"
)

// ChatService is the session-facing surface of the orchestration core.
// Each session processes at most one turn at a time; a message sent
// while a turn is in flight fails with domain.ErrSessionBusy.
type ChatService interface {
	// Create opens a new session. An empty modelAlias selects the
	// registry default. Fails with domain.ErrUnknownModel when the
	// alias does not resolve.
	Create(ctx context.Context, modelAlias string) (*domain.SessionInfo, error)

	// Send processes one user message: retrieve, compose, generate.
	// Response fragments are delivered to onFragment as they arrive;
	// onFragment may be nil for callers that only want the final turn.
	Send(ctx context.Context, sessionID, message string, onFragment func(fragment string) error) (*TurnResult, error)

	// SelectModel changes the session's model. Allowed from idle and
	// errored; a successful selection recovers an errored session.
	SelectModel(ctx context.Context, sessionID, modelAlias string) error

	// History returns a copy of the session's turns in order.
	History(ctx context.Context, sessionID string) ([]domain.Turn, error)

	// Info returns a snapshot of the session's metadata.
	Info(ctx context.Context, sessionID string) (*domain.SessionInfo, error)

	// Close ends the session. Terminal; further actions fail with
	// domain.ErrSessionClosed.
	Close(ctx context.Context, sessionID string) error
}

// TurnResult is the outcome of one completed turn.
type TurnResult struct {
	// Assistant is the appended assistant turn.
	Assistant domain.Turn

	// Citations lists the retrieved chunks the reply cited, in order
	// of first appearance.
	Citations []Citation
}

// Citation links a citation marker in the reply to its chunk.
type Citation struct {
	// Marker is the 1-based marker used in the prompt and reply, e.g. 2 for "[2]".
	Marker int

	// ChunkID is the cited chunk.
	ChunkID string

	// SourceName is the owning document's display name.
	SourceName string
}
