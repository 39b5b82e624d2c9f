package services

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/custodia-labs/ragchat-cli/internal/core/domain"
	"github.com/custodia-labs/ragchat-cli/internal/core/ports/driving"
	"github.com/custodia-labs/ragchat-cli/internal/logger"
)

// Ensure ModelRegistry implements the interface.
var _ driving.ModelCatalog = (*ModelRegistry)(nil)

// registrySnapshot is one immutable generation of the deployment set.
// Readers hold at most one snapshot for the duration of a resolution,
// so a concurrent refresh can never produce a half-updated view.
type registrySnapshot struct {
	deployments  map[string]domain.ModelDeployment
	defaultAlias string
}

// ModelRegistry holds the set of available model deployments and
// resolves aliases against the current snapshot. Refresh swaps the
// whole set atomically; deployments are never mutated in place.
type ModelRegistry struct {
	snap atomic.Pointer[registrySnapshot]
}

// NewModelRegistry creates a registry from the initial deployment set.
func NewModelRegistry(deployments []domain.ModelDeployment, defaultAlias string) *ModelRegistry {
	r := &ModelRegistry{}
	r.Refresh(deployments, defaultAlias)
	return r
}

// Refresh replaces the active snapshot with the given deployment set.
func (r *ModelRegistry) Refresh(deployments []domain.ModelDeployment, defaultAlias string) {
	m := make(map[string]domain.ModelDeployment, len(deployments))
	for _, d := range deployments {
		m[d.Alias] = d
	}
	if defaultAlias == "" && len(deployments) > 0 {
		defaultAlias = deployments[0].Alias
	}
	r.snap.Store(&registrySnapshot{deployments: m, defaultAlias: defaultAlias})
	logger.Info("Model registry refreshed: %d deployments, default=%q", len(m), defaultAlias)
}

// Resolve maps an alias to a deployment in the current snapshot.
// An empty alias resolves to the default.
func (r *ModelRegistry) Resolve(_ context.Context, alias string) (domain.ModelDeployment, error) {
	snap := r.snap.Load()
	if snap == nil || len(snap.deployments) == 0 {
		return domain.ModelDeployment{}, fmt.Errorf("resolve %q: %w", alias, domain.ErrUnknownModel)
	}
	if alias == "" {
		alias = snap.defaultAlias
	}
	d, ok := snap.deployments[alias]
	if !ok {
		return domain.ModelDeployment{}, fmt.Errorf("resolve %q: %w", alias, domain.ErrUnknownModel)
	}
	return d, nil
}

// List returns all deployments in the current snapshot, sorted by alias.
func (r *ModelRegistry) List(_ context.Context) ([]domain.ModelDeployment, error) {
	snap := r.snap.Load()
	if snap == nil {
		return nil, nil
	}
	out := make([]domain.ModelDeployment, 0, len(snap.deployments))
	for _, d := range snap.deployments {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Alias < out[j].Alias })
	return out, nil
}

// DefaultAlias returns the snapshot's default alias.
func (r *ModelRegistry) DefaultAlias() string {
	snap := r.snap.Load()
	if snap == nil {
		return ""
	}
	return snap.defaultAlias
}
