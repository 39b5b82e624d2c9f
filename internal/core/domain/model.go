package domain

// Capability tags a model deployment can carry.
const (
	// CapabilityChat marks a deployment usable for chat completions.
	CapabilityChat = "chat"

	// CapabilityStreaming marks a deployment that supports streamed
	// token delivery.
	CapabilityStreaming = "streaming"
)

// ModelDeployment is a named, resolvable handle to a hosted model
// instance. Deployments are loaded from configuration at startup and
// are read-only; a registry refresh replaces the whole set atomically.
type ModelDeployment struct {
	// Alias is the name users select the deployment by.
	Alias string

	// Handle is the concrete deployment identifier sent to the backend.
	Handle string

	// Provider identifies the generation adapter ("openai", "ollama").
	Provider string

	// Capabilities lists capability tags (chat, streaming).
	Capabilities []string

	// Capacity is an operator-supplied relative capacity/cost hint.
	Capacity int
}

// HasCapability reports whether the deployment carries the given tag.
func (d ModelDeployment) HasCapability(tag string) bool {
	for _, c := range d.Capabilities {
		if c == tag {
			return true
		}
	}
	return false
}
