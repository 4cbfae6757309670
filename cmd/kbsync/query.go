package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"cqa-workers/internal/cqa"
)

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Ask the deployed project one question",
	Long: `Send a single question to the deployed project and print the normalized bot
message as JSON.

Example:
  kbsync query "when are you open?"
  kbsync query "opening hours" --project faq`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func runQuery(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}

	client, err := cqa.NewClient(env.caps, env.log, cqa.OptionsFromConfig(env.cfg.CQA)...)
	if err != nil {
		return err
	}

	msg, err := client.Query(cmd.Context(), &cqa.Session{}, strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(msg)
}
