package services

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/ragchat-cli/internal/core/domain"
	"github.com/custodia-labs/ragchat-cli/internal/core/ports/driven"
	"github.com/custodia-labs/ragchat-cli/internal/core/ports/driving"
	"github.com/custodia-labs/ragchat-cli/internal/logger"
)

// DefaultContextBudget is the default prompt budget in characters.
const DefaultContextBudget = 12000

// DefaultSystemInstructions is used when configuration supplies none.
const DefaultSystemInstructions = `You are a helpful assistant. Answer using the provided context passages.
Cite passages with their bracketed markers, e.g. [1]. If the context does
not contain the answer, say so rather than inventing one.`

// PromptComposer merges system instructions, retrieved chunks and
// conversation history into a bounded prompt. Composition is
// deterministic: identical inputs and budget yield identical output.
type PromptComposer struct {
	system string
	budget int
}

// NewPromptComposer creates a composer with the given system
// instructions and character budget. Zero or negative values fall back
// to the defaults.
func NewPromptComposer(system string, budget int) *PromptComposer {
	if strings.TrimSpace(system) == "" {
		system = DefaultSystemInstructions
	}
	if budget <= 0 {
		budget = DefaultContextBudget
	}
	return &PromptComposer{system: system, budget: budget}
}

// ComposedPrompt is the result of one composition.
type ComposedPrompt struct {
	// Messages is the ordered prompt ready for the generation client.
	Messages []driven.ChatMessage

	// Citations maps the markers used in the context block to chunks,
	// in marker order.
	Citations []driving.Citation
}

// Compose builds the prompt. System instructions and the current user
// message are never truncated. When the total exceeds the budget, the
// least relevant chunks are dropped first, then the oldest history
// turns.
func (c *PromptComposer) Compose(history []domain.Turn, retrieved []domain.RetrievedChunk, userMessage string) ComposedPrompt {
	fixed := len(c.system) + len(userMessage)

	entries := make([]string, len(retrieved))
	for i, rc := range retrieved {
		entries[i] = contextEntry(i+1, rc)
	}

	total := fixed
	for _, e := range entries {
		total += len(e)
	}
	for _, t := range history {
		total += len(t.Content)
	}

	// Drop least relevant chunks first.
	kept := len(entries)
	for total > c.budget && kept > 0 {
		kept--
		total -= len(entries[kept])
	}

	// Then the oldest history turns.
	oldest := 0
	for total > c.budget && oldest < len(history) {
		total -= len(history[oldest].Content)
		oldest++
	}

	if kept < len(entries) || oldest > 0 {
		logger.Debug("Prompt truncated: kept %d/%d chunks, dropped %d/%d history turns",
			kept, len(entries), oldest, len(history))
	}

	var sys strings.Builder
	sys.WriteString(c.system)
	if kept > 0 {
		sys.WriteString("\n\nContext passages:\n")
		for i := 0; i < kept; i++ {
			sys.WriteString(entries[i])
		}
	}

	messages := make([]driven.ChatMessage, 0, len(history)-oldest+2)
	messages = append(messages, driven.ChatMessage{Role: "system", Content: sys.String()})
	for _, t := range history[oldest:] {
		messages = append(messages, driven.ChatMessage{Role: string(t.Role), Content: t.Content})
	}
	messages = append(messages, driven.ChatMessage{Role: "user", Content: userMessage})

	citations := make([]driving.Citation, kept)
	for i := 0; i < kept; i++ {
		citations[i] = driving.Citation{
			Marker:     i + 1,
			ChunkID:    retrieved[i].Chunk.ID,
			SourceName: retrieved[i].SourceName,
		}
	}

	return ComposedPrompt{Messages: messages, Citations: citations}
}

// Budget returns the configured character budget.
func (c *PromptComposer) Budget() int {
	return c.budget
}

// contextEntry renders one chunk with its stable citation marker.
func contextEntry(marker int, rc domain.RetrievedChunk) string {
	return fmt.Sprintf("[%d] (%s) %s\n", marker, rc.SourceName, rc.Chunk.Content)
}
