package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"chatrelay/internal/provider/factory"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List the provider catalogue",
	Long: `List every configured provider with its base URL, key requirement and models.

Examples:
  chatrelay providers
  chatrelay providers --config chatrelay.yaml`,
	Args: cobra.NoArgs,
	RunE: runProviders,
}

func runProviders(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	registry, err := factory.NewRegistry(cfg)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tBASE URL\tKEY\tMODELS\t")
	for _, desc := range registry.List() {
		key := "optional"
		if desc.RequiresAPIKey {
			key = "required"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t\n", desc.ID, desc.Name, desc.BaseURL, key, strings.Join(desc.Models, ", "))
	}
	return w.Flush()
}
