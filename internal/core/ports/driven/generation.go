package driven

import (
	"context"

	"github.com/custodia-labs/ragchat-cli/internal/core/domain"
)

// GenerationService invokes a model deployment with a composed prompt
// and streams the response back. A stream is finite and not
// restartable; cancelling the context stops fragment delivery promptly
// and releases the underlying connection. Output already delivered is
// never retracted.
//
// Failure mapping is the adapter's responsibility: transient backend
// failures (network, rate limit, 5xx, deadline) surface as
// domain.ErrUnavailable, rejected prompts as domain.ErrInvalidRequest.
// Retries belong to the caller, not the adapter.
type GenerationService interface {
	// Stream sends the request to the given deployment and invokes
	// onFragment for every response fragment as it arrives. A non-nil
	// error from onFragment aborts the stream and is returned.
	Stream(ctx context.Context, deployment domain.ModelDeployment, req GenerationRequest, onFragment FragmentFunc) (*GenerationResult, error)

	// Ping validates the service is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// FragmentFunc receives one streamed response fragment.
type FragmentFunc func(fragment string) error

// GenerationRequest carries the composed prompt and generation knobs.
type GenerationRequest struct {
	// Messages is the ordered prompt: system, context, history, user.
	Messages []ChatMessage

	// MaxTokens caps the completion length. Zero means backend default.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic).
	Temperature float64
}

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the message text.
	Content string
}

// GenerationResult summarises a completed stream.
type GenerationResult struct {
	// FinishReason is the backend's stop reason, if reported.
	FinishReason string

	// PromptTokens and CompletionTokens are usage counts when the
	// backend reports them, zero otherwise.
	PromptTokens     int
	CompletionTokens int
}
