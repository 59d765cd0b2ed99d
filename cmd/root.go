package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "userhub",
	Short: "User profile and conversation data service",
	Long: `Userhub stores user profiles, conversation history, and feedback for the
hanseníase education platform. It serves them over a REST and WebSocket
API backed by SQLite, with a TTL cache, debounced cloud sync, and
per-user retention.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".userhub.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
