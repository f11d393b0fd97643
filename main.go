package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "payflow",
		Short:   "Bank transfer payment page for marketplace orders",
		Version: Version,
	}
	rootCmd.PersistentFlags().String("config", ".", "Directory holding config.yaml")

	rootCmd.AddCommand(payCmd())
	rootCmd.AddCommand(qrCmd())
	rootCmd.AddCommand(eventsCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the payflow version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "payflow", Version)
		},
	}
}
