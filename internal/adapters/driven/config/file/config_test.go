package file

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", cfg.DefaultModel)
	assert.Equal(t, 1000, cfg.Ingest.ChunkSize)
	assert.Equal(t, 4, cfg.Chat.TopK)
	require.Len(t, cfg.Models, 1)
}

func TestSaveAndLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	cfg := Defaults()
	cfg.DefaultModel = "local"
	cfg.Models = []ModelConfig{
		{Alias: "local", Handle: "llama3.2", Provider: "ollama", Capacity: 2},
	}
	cfg.Chat.SystemInstructions = "custom instructions"
	cfg.Ingest.ChunkSize = 500

	require.NoError(t, Save(dir, cfg))

	got, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "local", got.DefaultModel)
	assert.Equal(t, "custom instructions", got.Chat.SystemInstructions)
	assert.Equal(t, 500, got.Ingest.ChunkSize)
	require.Len(t, got.Models, 1)
	assert.Equal(t, "ollama", got.Models[0].Provider)
}

func TestLoad_PartialFileGetsDefaults(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(Path(dir), []byte(`
default_model = "mine"

[[models]]
alias = "mine"
handle = "gpt-4o"
provider = "openai"
`), 0600))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "mine", cfg.DefaultModel)
	assert.Equal(t, 1000, cfg.Ingest.ChunkSize)
	assert.Equal(t, 12000, cfg.Chat.ContextBudget)
	assert.Equal(t, 120, cfg.Generation.TimeoutSeconds)
}

func TestLoad_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(Path(dir), []byte("not [valid toml"), 0600))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestConfig_OpenAIKey_EnvWins(t *testing.T) {
	cfg := Defaults()
	cfg.Generation.OpenAIKey = "from-file"

	t.Setenv("OPENAI_API_KEY", "from-env")
	assert.Equal(t, "from-env", cfg.OpenAIKey())

	t.Setenv("OPENAI_API_KEY", "")
	assert.Equal(t, "from-file", cfg.OpenAIKey())
}

func TestConfig_Deployments(t *testing.T) {
	cfg := Defaults()
	cfg.Models = []ModelConfig{
		{Alias: "a", Handle: "h", Provider: "openai", Capabilities: []string{"chat"}},
		{Alias: "b", Handle: "h2", Provider: "ollama"},
	}

	deployments := cfg.Deployments()
	require.Len(t, deployments, 2)
	assert.Equal(t, []string{"chat"}, deployments[0].Capabilities)
	// Missing capabilities default to chat+streaming.
	assert.Contains(t, deployments[1].Capabilities, "streaming")
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Save(dir, Defaults()))

	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(dir, func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	require.NoError(t, err)
	w.debounce = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	// Give the watch loop a moment to start before writing.
	time.Sleep(50 * time.Millisecond)

	cfg := Defaults()
	cfg.DefaultModel = "changed"
	require.NoError(t, Save(dir, cfg))

	select {
	case got := <-reloaded:
		assert.Equal(t, "changed", got.DefaultModel)
	case <-time.After(5 * time.Second):
		t.Fatal("config reload not observed")
	}
}
