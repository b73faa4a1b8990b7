package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/cloudchase/chatstream/registry"
	"github.com/spf13/cobra"
)

var (
	addBackend string
	addBaseURL string
)

var modelsCmd = &cobra.Command{
	Use:     "models",
	Aliases: []string{"ls"},
	Short:   "List local model aliases",
	Long:    "List all aliases registered in the local model registry.",
	Args:    cobra.NoArgs,
	RunE:    runModelsList,
}

var modelsAddCmd = &cobra.Command{
	Use:   "add <alias> <model-id>",
	Short: "Register a model alias",
	Args:  cobra.ExactArgs(2),
	RunE:  runModelsAdd,
}

var modelsRmCmd = &cobra.Command{
	Use:     "rm <alias>",
	Aliases: []string{"remove"},
	Short:   "Remove a model alias",
	Args:    cobra.ExactArgs(1),
	RunE:    runModelsRm,
}

var modelsInfoCmd = &cobra.Command{
	Use:   "info <alias>",
	Short: "Show model alias information",
	Args:  cobra.ExactArgs(1),
	RunE:  runModelsInfo,
}

func init() {
	modelsAddCmd.Flags().StringVar(&addBackend, "backend", "", "backend override (openai or echo)")
	modelsAddCmd.Flags().StringVar(&addBaseURL, "base-url", "", "inference server base URL override")

	modelsCmd.AddCommand(modelsAddCmd)
	modelsCmd.AddCommand(modelsRmCmd)
	modelsCmd.AddCommand(modelsInfoCmd)
}

func registryFromSettings() (*registry.ModelManager, error) {
	settings, _, err := setup()
	if err != nil {
		return nil, err
	}
	return openRegistry(settings)
}

func runModelsList(cmd *cobra.Command, _ []string) error {
	mgr, err := registryFromSettings()
	if err != nil {
		return err
	}

	models, err := mgr.ListModels()
	if err != nil {
		return fmt.Errorf("list models: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(models) == 0 {
		fmt.Fprintln(out, "No models registered. Use 'chatstream models add <alias> <model-id>' to add one.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tMODEL ID\tBACKEND\tADDED")
	for _, m := range models {
		added := m.AddedAt.Format("2006-01-02 15:04")
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.Name, m.ModelID, orDash(m.Backend), added)
	}
	return w.Flush()
}

func runModelsAdd(cmd *cobra.Command, args []string) error {
	mgr, err := registryFromSettings()
	if err != nil {
		return err
	}
	m, err := mgr.AddModel(args[0], args[1], addBackend, addBaseURL)
	if err != nil {
		return fmt.Errorf("add model: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Registered %s -> %s\n", m.Name, m.ModelID)
	return nil
}

func runModelsRm(cmd *cobra.Command, args []string) error {
	mgr, err := registryFromSettings()
	if err != nil {
		return err
	}
	if err := mgr.RemoveModel(args[0]); err != nil {
		return fmt.Errorf("remove model: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
	return nil
}

func runModelsInfo(cmd *cobra.Command, args []string) error {
	mgr, err := registryFromSettings()
	if err != nil {
		return err
	}
	m, err := mgr.GetModel(args[0])
	if err != nil {
		return fmt.Errorf("model info: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Name:          %s\n", m.Name)
	fmt.Fprintf(out, "Model ID:      %s\n", m.ModelID)
	if m.Backend != "" {
		fmt.Fprintf(out, "Backend:       %s\n", m.Backend)
	}
	if m.BaseURL != "" {
		fmt.Fprintf(out, "Base URL:      %s\n", m.BaseURL)
	}
	fmt.Fprintf(out, "Added:         %s\n", m.AddedAt.Format("2006-01-02 15:04:05"))
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
