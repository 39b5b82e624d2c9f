package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragchat-cli/internal/adapters/driving/tui"
	"github.com/custodia-labs/ragchat-cli/internal/core/domain"
	"github.com/custodia-labs/ragchat-cli/internal/core/ports/driving"
)

var chatCmd = &cobra.Command{
	Use:   "chat [question]",
	Short: "Chat with the corpus",
	Long: `Ask questions about the ingested documents. With no arguments this
launches the interactive terminal UI. Pass a question to get a single
answer on stdout, or use --plain for a line-based REPL.

Replies cite the passages they draw on as [1], [2], ... markers; the
cited sources are listed after each answer.`,
	Args: cobra.ArbitraryArgs,
	RunE: runChat,
}

var (
	chatModel string
	chatPlain bool
)

func init() {
	chatCmd.Flags().StringVarP(&chatModel, "model", "m", "", "Model alias to use (defaults to the configured default)")
	chatCmd.Flags().BoolVar(&chatPlain, "plain", false, "Line-based REPL instead of the terminal UI")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	if err := initApp(cmd.Context()); err != nil {
		return err
	}
	if chatService == nil {
		return errors.New("chat service not configured")
	}

	if len(args) > 0 {
		return runChatOnce(cmd, strings.Join(args, " "))
	}
	if chatPlain {
		return runChatREPL(cmd)
	}
	return runChatTUI(cmd)
}

// runChatOnce answers a single question and exits.
func runChatOnce(cmd *cobra.Command, question string) error {
	ctx := cmd.Context()

	info, err := chatService.Create(ctx, chatModel)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	defer func() { _ = chatService.Close(context.Background(), info.ID) }()

	result, err := chatService.Send(ctx, info.ID, question, func(fragment string) error {
		cmd.Print(fragment)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to generate answer: %w", err)
	}
	cmd.Println()

	printCitations(cmd, result.Citations)
	return nil
}

// runChatREPL reads questions line by line until EOF or "exit".
func runChatREPL(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watchConfig(ctx)
	reapSessions(ctx)

	info, err := chatService.Create(ctx, chatModel)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	defer func() { _ = chatService.Close(context.Background(), info.ID) }()

	cmd.Printf("ragchat (model: %s). Type a question, 'exit' to quit.\n", info.ModelAlias)

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		cmd.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}
		if alias, ok := strings.CutPrefix(line, "/model "); ok {
			if err := chatService.SelectModel(ctx, info.ID, strings.TrimSpace(alias)); err != nil {
				cmd.Printf("error: %v\n", err)
				continue
			}
			cmd.Printf("Switched to %s.\n", strings.TrimSpace(alias))
			continue
		}

		result, err := chatService.Send(ctx, info.ID, line, func(fragment string) error {
			cmd.Print(fragment)
			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			cmd.Printf("\nerror: %v\n", err)
			if errors.Is(err, domain.ErrSessionErrored) || errors.Is(err, domain.ErrUnknownModel) {
				cmd.Println("Pick a different model with '/model <alias>' to continue.")
			}
			continue
		}
		cmd.Println()
		printCitations(cmd, result.Citations)
	}
	return scanner.Err()
}

// runChatTUI starts the interactive terminal UI.
func runChatTUI(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watchConfig(ctx)
	reapSessions(ctx)

	app, err := tui.NewApp(&tui.Ports{
		Chat:   chatService,
		Models: modelCatalog,
	}, tui.Config{ModelAlias: chatModel})
	if err != nil {
		return fmt.Errorf("failed to create TUI: %w", err)
	}
	app.WithContext(ctx)

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

func printCitations(cmd *cobra.Command, citations []driving.Citation) {
	if len(citations) == 0 {
		return
	}
	cmd.Println("\nSources:")
	for _, c := range citations {
		cmd.Printf("  [%d] %s\n", c.Marker, c.SourceName)
	}
}
