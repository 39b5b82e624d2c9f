package services

import (
	"context"
	"sync"

	"github.com/custodia-labs/ragchat-cli/internal/core/domain"
	"github.com/custodia-labs/ragchat-cli/internal/core/ports/driven"
)

// fakeEmbedder returns canned vectors keyed by exact text, falling
// back to a fixed vector. Errors can be injected per call.
type fakeEmbedder struct {
	mu       sync.Mutex
	vectors  map[string][]float32
	fallback []float32
	errs     []error
	calls    int
}

var _ driven.EmbeddingService = (*fakeEmbedder)(nil)

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{
		vectors:  make(map[string][]float32),
		fallback: []float32{0.1, 0.1, 0.1},
	}
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return f.fallback, nil
}

func (f *fakeEmbedder) Dimensions() int            { return 3 }
func (f *fakeEmbedder) ModelName() string          { return "fake-embed" }
func (f *fakeEmbedder) Ping(context.Context) error { return nil }
func (f *fakeEmbedder) Close() error               { return nil }

func (f *fakeEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeGenerator streams canned fragments. Errors are consumed one per
// Stream call before any fragment is delivered; errAfterFragments
// injects a failure mid-stream instead.
type fakeGenerator struct {
	mu                sync.Mutex
	fragments         []string
	errs              []error
	errAfterFragments error
	requests          []driven.GenerationRequest
	blockUntilCancel  bool
}

var _ driven.GenerationService = (*fakeGenerator)(nil)

func (f *fakeGenerator) Stream(ctx context.Context, _ domain.ModelDeployment, req driven.GenerationRequest, onFragment driven.FragmentFunc) (*driven.GenerationResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	var err error
	if len(f.errs) > 0 {
		err = f.errs[0]
		f.errs = f.errs[1:]
	}
	fragments := f.fragments
	after := f.errAfterFragments
	block := f.blockUntilCancel
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}

	for i, frag := range fragments {
		if cbErr := onFragment(frag); cbErr != nil {
			return nil, cbErr
		}
		if block && i == 0 {
			<-ctx.Done()
			return nil, ctx.Err()
		}
	}
	if after != nil {
		return nil, after
	}
	return &driven.GenerationResult{FinishReason: "stop"}, nil
}

func (f *fakeGenerator) Ping(context.Context) error { return nil }
func (f *fakeGenerator) Close() error               { return nil }

func (f *fakeGenerator) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// testDeployments is the registry fixture used across session tests.
func testDeployments() []domain.ModelDeployment {
	return []domain.ModelDeployment{
		{
			Alias:        "fast",
			Handle:       "gpt-4o-mini",
			Provider:     "openai",
			Capabilities: []string{domain.CapabilityChat, domain.CapabilityStreaming},
			Capacity:     8,
		},
		{
			Alias:        "smart",
			Handle:       "gpt-4o",
			Provider:     "openai",
			Capabilities: []string{domain.CapabilityChat, domain.CapabilityStreaming},
			Capacity:     4,
		},
	}
}
