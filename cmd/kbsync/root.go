package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cqa-workers/internal/common/config"
	"cqa-workers/internal/common/logger"
	"cqa-workers/internal/cqa"
	"cqa-workers/internal/kbsync"
)

var (
	cfgFile     string
	cfgEndpoint string
	cfgKey      string
	cfgProject  string
	cfgLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "kbsync",
	Short: "kbsync - knowledge base sync for conversational question answering",
	Long: `kbsync moves test cases in and out of a question-answering knowledge base.

It downloads a project's knowledge base as utterance and conversation files,
merges local files back into the project, and asks single questions against
the deployed project.

Capabilities are read from the config file, from the AZURE_CQA_* environment
variables and from the flags below, in increasing order of precedence.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to a YAML config file (optional)")
	rootCmd.PersistentFlags().StringVar(&cfgEndpoint, "endpoint", "", "Service endpoint URL")
	rootCmd.PersistentFlags().StringVar(&cfgKey, "key", "", "Endpoint subscription key")
	rootCmd.PersistentFlags().StringVar(&cfgProject, "project", "", "Project name")
	rootCmd.PersistentFlags().StringVar(&cfgLogLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(manifestCmd)
}

// environment is what every command needs after flags are parsed.
type environment struct {
	cfg  *config.Config
	caps cqa.Capabilities
	log  logger.Logger
}

func loadEnvironment() (*environment, error) {
	cfg, err := config.LoadStandalone(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level := cfg.Logging.Level
	if cfgLogLevel != "" {
		level = cfgLogLevel
	}

	caps := cqa.FromConfig(cfg.CQA).Override(cqa.Capabilities{
		EndpointURL: cfgEndpoint,
		EndpointKey: cfgKey,
		ProjectName: cfgProject,
	})

	return &environment{
		cfg:  cfg,
		caps: caps,
		log:  logger.NewStructured(level, "console", "stderr"),
	}, nil
}

func (e *environment) service() *kbsync.Service {
	return kbsync.NewService(e.caps, e.log, kbsync.WithClientOptions(cqa.OptionsFromConfig(e.cfg.CQA)...))
}

// statusPrinter echoes progress messages to stderr so stdout stays machine-readable.
func statusPrinter(cmd *cobra.Command) kbsync.StatusCallback {
	return func(message string) {
		fmt.Fprintln(cmd.ErrOrStderr(), message)
	}
}
