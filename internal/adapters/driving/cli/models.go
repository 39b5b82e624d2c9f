package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Manage model deployments",
	Long:  `List the model deployments configured in config.toml.`,
	RunE:  runModelsList,
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured models",
	RunE:  runModelsList,
}

func init() {
	modelsCmd.AddCommand(modelsListCmd)
	rootCmd.AddCommand(modelsCmd)
}

func runModelsList(cmd *cobra.Command, _ []string) error {
	if err := initApp(cmd.Context()); err != nil {
		return err
	}
	if modelCatalog == nil {
		return errors.New("model catalog not configured")
	}

	ctx := cmd.Context()

	deployments, err := modelCatalog.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list models: %w", err)
	}

	if len(deployments) == 0 {
		cmd.Println("No models configured. Add a [[models]] entry to config.toml.")
		return nil
	}

	defaultAlias := ""
	if def, err := modelCatalog.Resolve(ctx, ""); err == nil {
		defaultAlias = def.Alias
	}

	for _, d := range deployments {
		marker := " "
		if d.Alias == defaultAlias {
			marker = "*"
		}
		cmd.Printf("%s %s\n", marker, d.Alias)
		cmd.Printf("    Handle:       %s\n", d.Handle)
		cmd.Printf("    Provider:     %s\n", d.Provider)
		if len(d.Capabilities) > 0 {
			cmd.Printf("    Capabilities: %s\n", strings.Join(d.Capabilities, ", "))
		}
		if d.Capacity > 0 {
			cmd.Printf("    Capacity:     %d\n", d.Capacity)
		}
		cmd.Println()
	}

	cmd.Println("* default model")
	return nil
}
