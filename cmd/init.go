package cmd

import (
	"github.com/spf13/cobra"

	"github.com/hanseplat/userhub/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize userhub configuration with an interactive wizard",
	Long:  `Runs an interactive wizard and writes the answers to .userhub.yml.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
