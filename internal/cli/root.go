// Package cli provides the command-line interface for papertutor.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/antoniostano/papertutor/internal/config"
	"github.com/antoniostano/papertutor/internal/llm"
	"github.com/antoniostano/papertutor/internal/pdfdoc"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	verbose bool

	cfg           config.Config
	logger        *slog.Logger
	closeLogger   func() error
	skipConfigFor = map[string]bool{"help": true, "version": true, "extract": true, "completion": true}
)

var rootCmd = &cobra.Command{
	Use:   "papertutor",
	Short: "Study a research paper with an LLM tutor",
	Long: `papertutor loads a research paper (PDF) and lets you discuss it with a
chat model that plays the role of a patient tutor.

Run "papertutor serve" for the web UI and HTTP/websocket API, or
"papertutor chat paper.pdf" for a terminal conversation.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if skipConfigFor[cmd.Name()] {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			logger, closeLogger = config.SetupLogger("", level)
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		if verbose {
			cfg.LogLevel = slog.LevelDebug
		}
		logger, closeLogger = config.SetupLogger(cfg.LogFile, cfg.LogLevel)
		slog.SetDefault(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if closeLogger != nil {
			if err := closeLogger(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
			}
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(extractCmd)
}

func newAdapter(c config.Config) (llm.Adapter, error) {
	return llm.NewAdapter(llm.Config{
		Provider:        c.LLMProvider,
		Model:           c.LLMModel,
		Temperature:     c.LLMTemperature,
		Streaming:       c.LLMStreaming,
		OpenAIAPIKey:    c.OpenAIAPIKey,
		OpenAIBaseURL:   c.OpenAIBaseURL,
		AnthropicAPIKey: c.AnthropicAPIKey,
		OllamaHost:      c.OllamaHost,
	})
}

func newExtractor(maxBytes int64, l *slog.Logger) *pdfdoc.Extractor {
	return pdfdoc.NewExtractor(
		pdfdoc.WithMaxBytes(maxBytes),
		pdfdoc.WithLogger(l.With("component", "pdfdoc")),
	)
}
