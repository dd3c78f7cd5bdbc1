package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "prepflowd",
	Short: "prepflow backend",
	Long:  `prepflowd runs the prepflow data preparation backend: the API server, the execution worker, and database migrations.`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
