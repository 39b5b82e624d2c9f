package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/ragchat-cli/internal/core/domain"
	"github.com/custodia-labs/ragchat-cli/internal/core/ports/driven"
	"github.com/custodia-labs/ragchat-cli/internal/core/ports/driving"
	"github.com/custodia-labs/ragchat-cli/internal/logger"
)

// Ensure SessionManager implements the interface.
var _ driving.ChatService = (*SessionManager)(nil)

// Session manager defaults.
const (
	DefaultTopK              = 4
	DefaultGenerationRetries = 3
	DefaultGenerationTimeout = 120 * time.Second
	DefaultIdleTimeout       = 30 * time.Minute
)

// SessionConfig tunes the turn pipeline.
type SessionConfig struct {
	// TopK is the number of chunks retrieved per turn (default 4).
	TopK int

	// MaxRetries bounds generation retries on transient failure (default 3).
	MaxRetries int

	// RetryBaseDelay is the initial backoff delay (default 250ms).
	RetryBaseDelay time.Duration

	// GenerationTimeout bounds one generation attempt (default 120s).
	GenerationTimeout time.Duration

	// IdleTimeout is the age at which CloseIdle discards a session
	// (default 30m).
	IdleTimeout time.Duration

	// MaxTokens and Temperature are passed through to generation.
	MaxTokens   int
	Temperature float64
}

func (c *SessionConfig) applyDefaults() {
	if c.TopK <= 0 {
		c.TopK = DefaultTopK
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultGenerationRetries
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 250 * time.Millisecond
	}
	if c.GenerationTimeout <= 0 {
		c.GenerationTimeout = DefaultGenerationTimeout
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
}

// session is the manager-owned per-conversation state. All fields are
// guarded by mu; the turn pipeline runs outside the lock but holds the
// session's exclusive execution right via the status field.
type session struct {
	mu         sync.Mutex
	id         string
	modelAlias string
	status     domain.SessionStatus
	turns      []domain.Turn
	createdAt  time.Time
	lastActive time.Time
	cancelTurn context.CancelFunc
}

// SessionManager owns all sessions and coordinates the per-turn
// pipeline: retrieve, compose, resolve, generate, append. Sessions are
// independent units of concurrency; within one session turns are
// strictly serialized, and a message arriving while a turn is in
// flight is rejected with domain.ErrSessionBusy rather than queued.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*session

	retrieval *RetrievalService
	composer  *PromptComposer
	registry  *ModelRegistry
	generator driven.GenerationService
	telemetry driven.TelemetrySink
	cfg       SessionConfig
}

// NewSessionManager creates a session manager.
func NewSessionManager(
	retrieval *RetrievalService,
	composer *PromptComposer,
	registry *ModelRegistry,
	generator driven.GenerationService,
	telemetry driven.TelemetrySink,
	cfg SessionConfig,
) *SessionManager {
	cfg.applyDefaults()
	if telemetry == nil {
		telemetry = driven.NoopTelemetry{}
	}
	return &SessionManager{
		sessions:  make(map[string]*session),
		retrieval: retrieval,
		composer:  composer,
		registry:  registry,
		generator: generator,
		telemetry: telemetry,
		cfg:       cfg,
	}
}

// Create opens a new session bound to the given model alias.
func (m *SessionManager) Create(ctx context.Context, modelAlias string) (*domain.SessionInfo, error) {
	deployment, err := m.registry.Resolve(ctx, modelAlias)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sess := &session{
		id:         uuid.New().String(),
		modelAlias: deployment.Alias,
		status:     domain.SessionIdle,
		createdAt:  now,
		lastActive: now,
	}

	m.mu.Lock()
	m.sessions[sess.id] = sess
	m.mu.Unlock()

	logger.Info("Session %s created with model %q", sess.id, deployment.Alias)
	return sess.info(), nil
}

// Send processes one user message through the full turn pipeline.
func (m *SessionManager) Send(ctx context.Context, sessionID, message string, onFragment func(string) error) (*driving.TurnResult, error) {
	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("send: empty message: %w", domain.ErrInvalidInput)
	}

	sess, err := m.get(sessionID)
	if err != nil {
		return nil, err
	}

	// Acquire the session's exclusive execution right for this turn.
	turnCtx, cancel := context.WithCancel(ctx)
	sess.mu.Lock()
	switch sess.status {
	case domain.SessionClosed:
		sess.mu.Unlock()
		cancel()
		return nil, domain.ErrSessionClosed
	case domain.SessionErrored:
		sess.mu.Unlock()
		cancel()
		return nil, domain.ErrSessionErrored
	case domain.SessionIdle:
		// Accepted: the user turn enters history now so it survives a
		// later failure of this turn.
		sess.status = domain.SessionRetrieving
		sess.turns = append(sess.turns, domain.Turn{
			Role:      domain.RoleUser,
			Content:   message,
			Timestamp: time.Now().UTC(),
		})
		sess.lastActive = time.Now().UTC()
		sess.cancelTurn = cancel
		sess.mu.Unlock()
	default:
		sess.mu.Unlock()
		cancel()
		return nil, domain.ErrSessionBusy
	}
	defer func() {
		cancel()
		sess.mu.Lock()
		sess.cancelTurn = nil
		sess.mu.Unlock()
	}()

	result, err := m.processTurn(turnCtx, sess, message, onFragment)
	if err != nil {
		if isCancellation(err) {
			// Cancellation is not an error: the session returns to
			// idle and no assistant turn is appended.
			sess.setStatus(domain.SessionIdle)
			logger.Info("Session %s: turn cancelled", sess.id)
			return nil, err
		}
		sess.setStatus(domain.SessionErrored)
		m.telemetry.ErrorRecorded(ctx, errorKind(err))
		logger.Warn("Session %s errored: %v", sess.id, err)
		return nil, err
	}

	sess.mu.Lock()
	sess.turns = append(sess.turns, result.Assistant)
	sess.status = domain.SessionIdle
	sess.lastActive = time.Now().UTC()
	sess.mu.Unlock()

	return result, nil
}

// processTurn runs retrieve → compose → resolve → generate. The caller
// holds the session's execution right; status updates here only move
// between the in-flight phases.
func (m *SessionManager) processTurn(ctx context.Context, sess *session, message string, onFragment func(string) error) (*driving.TurnResult, error) {
	logger.Section("Turn Pipeline")

	// Retrieving.
	retrieved, err := m.retrieval.Retrieve(ctx, message, m.cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}

	// Composing.
	sess.setStatus(domain.SessionComposing)
	history := sess.historyBeforeCurrent()
	composed := m.composer.Compose(history, retrieved, message)

	// Resolve the selected model against the current snapshot.
	deployment, err := m.registry.Resolve(ctx, sess.alias())
	if err != nil {
		return nil, err
	}

	// Generating.
	sess.setStatus(domain.SessionGenerating)
	text, fragments, err := m.generate(ctx, deployment, composed, onFragment)
	if err != nil {
		return nil, err
	}

	citations := citedIn(text, composed.Citations)
	assistant := domain.Turn{
		Role:      domain.RoleAssistant,
		Content:   text,
		Timestamp: time.Now().UTC(),
	}
	for _, c := range citations {
		assistant.CitedChunkIDs = append(assistant.CitedChunkIDs, c.ChunkID)
	}

	logger.Debug("Turn complete: %d fragments, %d citations", fragments, len(citations))
	return &driving.TurnResult{Assistant: assistant, Citations: citations}, nil
}

// generate invokes the generation client with bounded retry. Only
// transient failures are retried, and only while no fragment has been
// delivered yet; retrying after partial delivery would duplicate
// output the caller already saw.
func (m *SessionManager) generate(ctx context.Context, deployment domain.ModelDeployment, composed ComposedPrompt, onFragment func(string) error) (string, int, error) {
	req := driven.GenerationRequest{
		Messages:    composed.Messages,
		MaxTokens:   m.cfg.MaxTokens,
		Temperature: m.cfg.Temperature,
	}

	var lastErr error
	delay := m.cfg.RetryBaseDelay

	for attempt := 0; attempt <= m.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			logger.Debug("Generation retry %d/%d after %s", attempt, m.cfg.MaxRetries, delay)
			select {
			case <-ctx.Done():
				return "", 0, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		var builder strings.Builder
		fragments := 0
		started := time.Now()

		attemptCtx, cancel := context.WithTimeout(ctx, m.cfg.GenerationTimeout)
		_, err := m.generator.Stream(attemptCtx, deployment, req, func(fragment string) error {
			builder.WriteString(fragment)
			fragments++
			if onFragment != nil {
				return onFragment(fragment)
			}
			return nil
		})
		cancel()

		m.telemetry.GenerationCompleted(ctx, deployment.Alias, fragments, time.Since(started), err)

		if err == nil {
			return builder.String(), fragments, nil
		}
		if isCancellation(err) && ctx.Err() != nil {
			// Caller-initiated cancellation, not an attempt timeout.
			return "", fragments, err
		}

		lastErr = classifyTransient(err)
		if !errors.Is(lastErr, domain.ErrUnavailable) || fragments > 0 {
			return "", fragments, lastErr
		}
	}

	return "", 0, fmt.Errorf("generation retries exhausted: %w", lastErr)
}

// SelectModel changes the session's model alias. A successful
// selection recovers an errored session back to idle.
func (m *SessionManager) SelectModel(ctx context.Context, sessionID, modelAlias string) error {
	sess, err := m.get(sessionID)
	if err != nil {
		return err
	}

	deployment, err := m.registry.Resolve(ctx, modelAlias)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	switch sess.status {
	case domain.SessionClosed:
		return domain.ErrSessionClosed
	case domain.SessionIdle, domain.SessionErrored:
		sess.modelAlias = deployment.Alias
		sess.status = domain.SessionIdle
		sess.lastActive = time.Now().UTC()
		logger.Info("Session %s: model set to %q", sessionID, deployment.Alias)
		return nil
	default:
		return domain.ErrSessionBusy
	}
}

// History returns a copy of the session's turns in order.
func (m *SessionManager) History(_ context.Context, sessionID string) ([]domain.Turn, error) {
	sess, err := m.get(sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	out := make([]domain.Turn, len(sess.turns))
	copy(out, sess.turns)
	return out, nil
}

// Info returns a snapshot of the session's metadata.
func (m *SessionManager) Info(_ context.Context, sessionID string) (*domain.SessionInfo, error) {
	sess, err := m.get(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.info(), nil
}

// Close ends the session, cancelling any in-flight generation.
func (m *SessionManager) Close(_ context.Context, sessionID string) error {
	sess, err := m.get(sessionID)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	if sess.status == domain.SessionClosed {
		sess.mu.Unlock()
		return domain.ErrSessionClosed
	}
	sess.status = domain.SessionClosed
	cancel := sess.cancelTurn
	sess.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	logger.Info("Session %s closed", sessionID)
	return nil
}

// CloseIdle discards sessions idle for longer than the configured
// timeout. Returns the number of sessions closed.
func (m *SessionManager) CloseIdle() int {
	cutoff := time.Now().UTC().Add(-m.cfg.IdleTimeout)

	m.mu.Lock()
	var stale []*session
	for _, sess := range m.sessions {
		sess.mu.Lock()
		if sess.status == domain.SessionIdle && sess.lastActive.Before(cutoff) {
			stale = append(stale, sess)
		}
		sess.mu.Unlock()
	}
	m.mu.Unlock()

	for _, sess := range stale {
		_ = m.Close(context.Background(), sess.id)
	}
	if len(stale) > 0 {
		logger.Debug("Reaped %d idle sessions", len(stale))
	}
	return len(stale)
}

// get looks up a live session.
func (m *SessionManager) get(sessionID string) (*session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, domain.ErrSessionClosed)
	}
	return sess, nil
}

// setStatus updates the session status under its lock.
func (s *session) setStatus(status domain.SessionStatus) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

// alias returns the currently selected model alias.
func (s *session) alias() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modelAlias
}

// historyBeforeCurrent returns the turns preceding the in-flight user
// message, which was already appended on acceptance.
func (s *session) historyBeforeCurrent() []domain.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.turns) == 0 {
		return nil
	}
	out := make([]domain.Turn, len(s.turns)-1)
	copy(out, s.turns[:len(s.turns)-1])
	return out
}

// info builds a read-only snapshot.
func (s *session) info() *domain.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &domain.SessionInfo{
		ID:         s.id,
		ModelAlias: s.modelAlias,
		Status:     s.status,
		TurnCount:  len(s.turns),
		CreatedAt:  s.createdAt,
		LastActive: s.lastActive,
	}
}

// markerRe matches bracketed citation markers like [2] in reply text.
var markerRe = regexp.MustCompile(`\[(\d+)\]`)

// citedIn returns the citations whose markers appear in the reply, in
// order of first appearance.
func citedIn(text string, available []driving.Citation) []driving.Citation {
	byMarker := make(map[int]driving.Citation, len(available))
	for _, c := range available {
		byMarker[c.Marker] = c
	}

	var cited []driving.Citation
	seen := make(map[int]bool)
	for _, match := range markerRe.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(match[1])
		if err != nil || seen[n] {
			continue
		}
		if c, ok := byMarker[n]; ok {
			cited = append(cited, c)
			seen[n] = true
		}
	}
	return cited
}

// isCancellation reports whether err stems from caller cancellation.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}

// errorKind maps an error to its taxonomy name for telemetry.
func errorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnknownModel):
		return "unknown_model"
	case errors.Is(err, domain.ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, domain.ErrUnavailable):
		return "unavailable"
	case errors.Is(err, domain.ErrIngestionFailed):
		return "ingestion_failure"
	case errors.Is(err, domain.ErrSessionBusy):
		return "session_busy"
	case errors.Is(err, domain.ErrSessionClosed):
		return "session_closed"
	default:
		return "internal"
	}
}
