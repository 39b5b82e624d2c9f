package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownModel indicates a model alias absent from the current
	// registry snapshot.
	ErrUnknownModel = errors.New("unknown model")

	// ErrSessionBusy indicates a turn arrived while another turn is
	// still in flight on the same session. The message is rejected,
	// never queued.
	ErrSessionBusy = errors.New("session busy")

	// ErrSessionClosed indicates an action on a closed session.
	ErrSessionClosed = errors.New("session closed")

	// ErrSessionErrored indicates a message arrived while the session
	// is in the errored state. Only model selection and close are
	// accepted until the session recovers.
	ErrSessionErrored = errors.New("session errored")

	// ErrUnavailable indicates a transient backend failure (network,
	// rate limit, timeout). Callers retry with bounded backoff.
	ErrUnavailable = errors.New("backend unavailable")

	// ErrInvalidRequest indicates the backend rejected the request
	// outright. Fatal, never retried.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrIngestionFailed indicates an ingest failed as a whole. The
	// corpus is unchanged: no partial chunk set is ever persisted.
	ErrIngestionFailed = errors.New("ingestion failed")
)

// UserMessage maps an error to a sanitized user-facing string. Raw
// backend error text never reaches the caller.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnknownModel):
		return "The selected model is not available. Pick another model and try again."
	case errors.Is(err, ErrSessionBusy):
		return "A reply is still being generated. Wait for it to finish before sending another message."
	case errors.Is(err, ErrSessionClosed):
		return "This conversation has ended. Start a new one to continue."
	case errors.Is(err, ErrSessionErrored):
		return "This conversation hit an error. Select a model to recover, or start a new one."
	case errors.Is(err, ErrInvalidRequest):
		return "The request was rejected. Try rephrasing your message."
	case errors.Is(err, ErrUnavailable):
		return "The model backend is temporarily unavailable. Please try again."
	case errors.Is(err, ErrIngestionFailed):
		return "The document could not be ingested. No changes were made."
	case errors.Is(err, ErrNotFound):
		return "The requested item was not found."
	default:
		return "I encountered an error processing your request. Please try again."
	}
}
