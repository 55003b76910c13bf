package cli

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	dbPath   string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:           "cadence",
	Short:         "Spaced-repetition scheduler",
	Long:          "Cadence schedules flashcard reviews with the FSRS memory model. Single Go binary, SQLite storage.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml or json)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default ~/.cadence/cadence.db)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(deckCmd)
	rootCmd.AddCommand(cardCmd)
	rootCmd.AddCommand(dueCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(statsCmd)
}
