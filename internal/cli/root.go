package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "urlsentry",
	Short: "URL safety classification service",
	Long: "Classifies URLs as safe or malicious using allow/deny rule lists\n" +
		"with an optional model-backed scorer for everything in between.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
