package main

import (
	"fmt"
	"os"

	"github.com/benvon/hostel-market/cmd/configure/commands"
	"github.com/spf13/cobra"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "hostel-market-configure",
		Short: "Configuration tool for the Hostel Market API",
		Long:  "CLI tool for database migrations, runtime settings and recommendation diagnostics",
	}

	rootCmd.AddCommand(commands.NewMigrateCmd())
	rootCmd.AddCommand(commands.NewListCmd())
	rootCmd.AddCommand(commands.NewCorsCmd())
	rootCmd.AddCommand(commands.NewRatelimitCmd())
	rootCmd.AddCommand(commands.NewRecommendCmd())
	rootCmd.AddCommand(commands.NewSimilarCmd())
	rootCmd.AddCommand(commands.NewTrendingCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
