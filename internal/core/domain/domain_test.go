package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserMessage_MapsSentinels(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "unknown model", err: ErrUnknownModel, want: "The selected model is not available. Pick another model and try again."},
		{name: "busy", err: ErrSessionBusy, want: "A reply is still being generated. Wait for it to finish before sending another message."},
		{name: "closed", err: ErrSessionClosed, want: "This conversation has ended. Start a new one to continue."},
		{name: "unavailable", err: ErrUnavailable, want: "The model backend is temporarily unavailable. Please try again."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserMessage(tt.err))
		})
	}
}

func TestUserMessage_WrappedErrorsResolve(t *testing.T) {
	wrapped := fmt.Errorf("openai error (status 429): rate limited: %w", ErrUnavailable)
	assert.Equal(t, UserMessage(ErrUnavailable), UserMessage(wrapped))
}

func TestUserMessage_NeverLeaksBackendText(t *testing.T) {
	raw := errors.New("dial tcp 10.0.0.1:443: connection refused (api key sk-secret)")
	msg := UserMessage(raw)
	assert.NotContains(t, msg, "sk-secret")
	assert.NotContains(t, msg, "10.0.0.1")
}

func TestModelDeployment_HasCapability(t *testing.T) {
	d := ModelDeployment{
		Alias:        "fast",
		Capabilities: []string{CapabilityChat, CapabilityStreaming},
	}
	assert.True(t, d.HasCapability(CapabilityChat))
	assert.True(t, d.HasCapability(CapabilityStreaming))
	assert.False(t, d.HasCapability("vision"))
	assert.False(t, ModelDeployment{}.HasCapability(CapabilityChat))
}

func TestSessionStatus_Terminal(t *testing.T) {
	assert.True(t, SessionClosed.Terminal())
	for _, s := range []SessionStatus{SessionIdle, SessionRetrieving, SessionComposing, SessionGenerating, SessionErrored} {
		assert.False(t, s.Terminal(), string(s))
	}
}
