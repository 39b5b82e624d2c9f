// Package generation routes generation requests to provider-specific
// backends.
package generation

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/ragchat-cli/internal/core/domain"
	"github.com/custodia-labs/ragchat-cli/internal/core/ports/driven"
)

// Ensure Router implements the interface.
var _ driven.GenerationService = (*Router)(nil)

// Router dispatches each request to the backend registered for the
// deployment's provider.
type Router struct {
	backends map[string]driven.GenerationService
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{backends: make(map[string]driven.GenerationService)}
}

// Register binds a provider name to a backend.
func (r *Router) Register(provider string, backend driven.GenerationService) {
	r.backends[provider] = backend
}

// Stream dispatches to the deployment's provider.
func (r *Router) Stream(ctx context.Context, deployment domain.ModelDeployment, req driven.GenerationRequest, onFragment driven.FragmentFunc) (*driven.GenerationResult, error) {
	backend, ok := r.backends[deployment.Provider]
	if !ok {
		return nil, fmt.Errorf("no backend for provider %q: %w", deployment.Provider, domain.ErrUnknownModel)
	}
	return backend.Stream(ctx, deployment, req, onFragment)
}

// Ping checks every registered backend and reports the first failure.
func (r *Router) Ping(ctx context.Context) error {
	for provider, backend := range r.backends {
		if err := backend.Ping(ctx); err != nil {
			return fmt.Errorf("provider %q: %w", provider, err)
		}
	}
	return nil
}

// Close closes every registered backend.
func (r *Router) Close() error {
	var errs []error
	for _, backend := range r.backends {
		if err := backend.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
