package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cqa-workers/internal/cqa"
	"cqa-workers/internal/kbsync"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Download the knowledge base as test cases",
	Long: `Export the project's knowledge base from the service and convert every answer
into an utterance set and a two-turn conversation.

The files utterances.yaml and convos.yaml are written to the output directory.

Example:
  kbsync import --project faq --out ./testcases
  kbsync import --config configs/config.yaml`,
	Args: cobra.NoArgs,
	RunE: runImport,
}

var importOut string

func init() {
	importCmd.Flags().StringVarP(&importOut, "out", "o", ".", "Directory to write utterances.yaml and convos.yaml to")
}

func runImport(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}

	res, err := env.service().Import(cmd.Context(), cqa.Capabilities{}, kbsync.ImportOptions{
		Status: statusPrinter(cmd),
	})
	if err != nil {
		return err
	}

	if err := writeTestCases(importOut, res.Utterances, res.Convos); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d answers with %d questions into %s\n",
		res.Stats.Answers, res.Stats.Questions, importOut)
	return nil
}
