package generation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragchat-cli/internal/core/domain"
	"github.com/custodia-labs/ragchat-cli/internal/core/ports/driven"
)

type stubBackend struct {
	result    *driven.GenerationResult
	streamErr error
	pingErr   error
	closeErr  error
	streamed  bool
	closed    bool
}

func (s *stubBackend) Stream(_ context.Context, _ domain.ModelDeployment, _ driven.GenerationRequest, onFragment driven.FragmentFunc) (*driven.GenerationResult, error) {
	s.streamed = true
	if s.streamErr != nil {
		return nil, s.streamErr
	}
	if onFragment != nil {
		if err := onFragment("hi"); err != nil {
			return nil, err
		}
	}
	return s.result, nil
}

func (s *stubBackend) Ping(context.Context) error { return s.pingErr }

func (s *stubBackend) Close() error {
	s.closed = true
	return s.closeErr
}

func TestRouter_DispatchesByProvider(t *testing.T) {
	openai := &stubBackend{result: &driven.GenerationResult{FinishReason: "openai-stop"}}
	ollama := &stubBackend{result: &driven.GenerationResult{FinishReason: "ollama-stop"}}

	r := NewRouter()
	r.Register("openai", openai)
	r.Register("ollama", ollama)

	got, err := r.Stream(context.Background(), domain.ModelDeployment{Provider: "ollama"}, driven.GenerationRequest{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ollama-stop", got.FinishReason)
	assert.True(t, ollama.streamed)
	assert.False(t, openai.streamed)
}

func TestRouter_UnknownProvider(t *testing.T) {
	r := NewRouter()
	r.Register("openai", &stubBackend{})

	_, err := r.Stream(context.Background(), domain.ModelDeployment{Provider: "anthropic"}, driven.GenerationRequest{}, nil)
	assert.ErrorIs(t, err, domain.ErrUnknownModel)
}

func TestRouter_PingReportsFailingProvider(t *testing.T) {
	r := NewRouter()
	r.Register("openai", &stubBackend{})
	r.Register("ollama", &stubBackend{pingErr: errors.New("connection refused")})

	err := r.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ollama")
}

func TestRouter_CloseClosesAllBackends(t *testing.T) {
	a := &stubBackend{}
	b := &stubBackend{closeErr: errors.New("close failed")}

	r := NewRouter()
	r.Register("openai", a)
	r.Register("ollama", b)

	err := r.Close()
	assert.Error(t, err)
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}
