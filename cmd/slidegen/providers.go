package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/phrazzld/slidegen/internal/providers"
	"github.com/spf13/cobra"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

func newCatalog(g *globalOptions) *providers.Catalog {
	resolver := providers.NewResolver(g.cfg.LLM, g.logger.With("component", "provider_resolver"))
	return providers.NewCatalog(providers.NewRegistry(), resolver)
}

func newProvidersCommand(g *globalOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "providers",
		Short: "List providers, their default models and whether credentials are configured",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			infos := newCatalog(g).List()
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), infos)
			}

			t := table.New().
				Border(lipgloss.NormalBorder()).
				Headers("PROVIDER", "CONFIGURED", "DEFAULT MODELS").
				StyleFunc(func(row, _ int) lipgloss.Style {
					if row == table.HeaderRow {
						return headerStyle
					}
					return cellStyle
				})
			for _, info := range infos {
				t.Row(info.Name, strconv.FormatBool(info.Configured), strings.Join(info.DefaultModels, ", "))
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), t.Render())
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newModelsCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models installed on the configured ollama server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			models, err := newCatalog(g).OllamaModels(cmd.Context())
			if err != nil {
				return fmt.Errorf("ollama discovery failed: %w", err)
			}
			if len(models) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "No models installed; defaults are:", strings.Join(providers.DefaultModels("ollama"), ", "))
				return nil
			}
			for _, m := range models {
				fmt.Fprintln(cmd.OutOrStdout(), m)
			}
			return nil
		},
	}
}
