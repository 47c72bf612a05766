// Package cli defines the Cobra commands of the concierge terminal client.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/capitalize-ai/travel-concierge/pkg/logger"
)

var (
	verbose bool
	version = "dev" // set via ldflags at build time
)

var rootCmd = &cobra.Command{
	Use:   "concierge",
	Short: "Multilingual travel concierge",
	Long: `Concierge answers travel questions in the language you write in.
It classifies each message into a travel intent, keeps the conversation
history per chat session and replies through the configured LLM provider.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newLogger returns a stderr development logger with --verbose and a
// silent one otherwise, so logs never interleave with the transcript.
func newLogger() (*logger.Logger, error) {
	if verbose {
		return logger.NewDevelopment()
	}
	return logger.NewNop(), nil
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Write debug logs to stderr")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(watchCmd)
}
