package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "krlctl",
	Short: "Operator tooling for the KRL carriage safety backend",
	Long:  "krlctl provisions trains, carriages and officers, and runs the\nofficer voice loop against a krlwatchd instance from a terminal.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(voiceCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
