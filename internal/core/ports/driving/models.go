package driving

import (
	"context"

	"github.com/custodia-labs/ragchat-cli/internal/core/domain"
)

// ModelCatalog exposes the registry's current snapshot for selection
// surfaces (CLI, TUI, MCP).
type ModelCatalog interface {
	// List returns all deployments in the current snapshot, sorted by alias.
	List(ctx context.Context) ([]domain.ModelDeployment, error)

	// Resolve maps an alias to a deployment. An empty alias resolves
	// to the default; an absent alias fails with domain.ErrUnknownModel.
	Resolve(ctx context.Context, alias string) (domain.ModelDeployment, error)
}
