package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "jobboard-auth",
	Short: "Job board authentication service",
	Long: `Authentication and credential lifecycle for the job board: student, employer and admin
accounts, password resets, Google sign-in and session introspection over HTTP and gRPC.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
