package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"cqa-workers/pkg/registry"
)

var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Print the connector manifest",
	Long: `Print the connector's name, feature flags, capabilities and worker activities
as JSON. The output can be read back with registry.LoadRegistry.

Example:
  kbsync manifest > configs/manifest.json`,
	Args: cobra.NoArgs,
	RunE: runManifest,
}

func runManifest(cmd *cobra.Command, args []string) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(registry.Default())
}
