package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cqa-workers/internal/cqa"
	"cqa-workers/internal/kb"
	"cqa-workers/internal/kbsync"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Merge local test cases into the knowledge base",
	Long: `Read utterances.yaml and convos.yaml from the input directory, merge them into
the project's current knowledge base and upload the result.

In append mode remote questions and answers are only ever added. In replace
mode every answer's question list is made to match the local utterances and
answers without a local counterpart are dropped.

Example:
  kbsync export --in ./testcases
  kbsync export --in ./testcases --mode replace --project faq`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

var (
	exportIn   string
	exportMode string
)

func init() {
	exportCmd.Flags().StringVarP(&exportIn, "in", "i", ".", "Directory holding utterances.yaml and convos.yaml")
	exportCmd.Flags().StringVar(&exportMode, "mode", string(kb.ModeAppend), "Merge mode (append or replace)")
}

func runExport(cmd *cobra.Command, args []string) error {
	mode, err := kb.ParseMode(exportMode)
	if err != nil {
		return err
	}

	data, err := readTestCases(exportIn)
	if err != nil {
		return err
	}

	env, err := loadEnvironment()
	if err != nil {
		return err
	}

	res, err := env.service().Export(cmd.Context(), cqa.Capabilities{}, mode, data, kbsync.ExportOptions{
		Status: statusPrinter(cmd),
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Upload %s (job %s)\n", res.FinalStatus.Status, res.FinalStatus.JobID)
	fmt.Fprintf(out, "  answers:   %d\n", res.Stats.Answers)
	fmt.Fprintf(out, "  questions: %d\n", res.Stats.Questions)
	fmt.Fprintf(out, "  created:   %d\n", res.Stats.Created)
	fmt.Fprintf(out, "  updated:   %d\n", res.Stats.Updated)
	fmt.Fprintf(out, "  dropped:   %d\n", res.Stats.Dropped)
	return nil
}
