package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	configfile "github.com/custodia-labs/ragchat-cli/internal/adapters/driven/config/file"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage configuration",
	Long: `View and change ragchat configuration. Settings are stored in
~/.ragchat/config.toml.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsSetKeyCmd = &cobra.Command{
	Use:   "set-key",
	Short: "Store the OpenAI API key",
	Long: `Prompt for the OpenAI API key and store it in config.toml. The
OPENAI_API_KEY environment variable, when set, takes precedence over
the stored key.`,
	RunE: runSettingsSetKey,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetKeyCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	cfg, err := configfile.Load(configDirFlag)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	cmd.Printf("Configuration: %s\n\n", configfile.Path(configDirFlag))

	cmd.Println("[Chat]")
	cmd.Printf("  Default model:  %s\n", cfg.DefaultModel)
	cmd.Printf("  Context budget: %d\n", cfg.Chat.ContextBudget)
	cmd.Printf("  Top K:          %d\n", cfg.Chat.TopK)
	cmd.Println()

	cmd.Println("[Embedding]")
	cmd.Printf("  Provider: %s\n", cfg.Embedding.Provider)
	cmd.Printf("  Model:    %s\n", cfg.Embedding.Model)
	if cfg.Embedding.BaseURL != "" {
		cmd.Printf("  Base URL: %s\n", cfg.Embedding.BaseURL)
	}
	cmd.Println()

	cmd.Println("[Generation]")
	if key := cfg.OpenAIKey(); key != "" {
		cmd.Printf("  OpenAI key: %s\n", maskAPIKey(key))
	} else {
		cmd.Println("  OpenAI key: (not set)")
	}
	if cfg.Generation.OllamaBaseURL != "" {
		cmd.Printf("  Ollama URL: %s\n", cfg.Generation.OllamaBaseURL)
	}
	cmd.Printf("  Timeout:    %s\n", cfg.GenerationTimeout())
	cmd.Println()

	cmd.Println("[Ingest]")
	cmd.Printf("  Chunk size:    %d\n", cfg.Ingest.ChunkSize)
	cmd.Printf("  Chunk overlap: %d\n", cfg.Ingest.ChunkOverlap)
	cmd.Println()

	cmd.Println("[Telemetry]")
	if cfg.Telemetry.Enabled {
		cmd.Println("  Enabled: yes")
	} else {
		cmd.Println("  Enabled: no")
	}

	cmd.Printf("\nModels: %d configured. Run 'ragchat models' for details.\n", len(cfg.Models))
	return nil
}

func runSettingsSetKey(cmd *cobra.Command, _ []string) error {
	cfg, err := configfile.Load(configDirFlag)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	cmd.Print("OpenAI API key: ")
	key := readPassword()
	cmd.Println()
	if key == "" {
		return fmt.Errorf("no key entered")
	}

	cfg.Generation.OpenAIKey = key
	if err := configfile.Save(configDirFlag, cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	cmd.Println("API key saved.")
	return nil
}

//nolint:errcheck // CLI helper, error ignored for UX
func readPassword() string {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err == nil {
			return string(password)
		}
	}
	reader := bufio.NewReader(os.Stdin)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
