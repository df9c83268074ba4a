package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	_ "go.uber.org/automaxprocs"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "orderctl",
		Short:         "Operator tools for order payment reconciliation",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringP("conf", "c", "configs/config.yaml", "config file path")
	rootCmd.PersistentFlags().String("operator", os.Getenv("USER"), "operator identity recorded in audit logs")

	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(utrOverrideCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(listUnmatchedCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
