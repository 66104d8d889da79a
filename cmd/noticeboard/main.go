package main

import (
	"os"

	"github.com/spf13/cobra"
)

// @title Noticeboard API
// @version 1.0.0
// @description Internal announcement board: targeted announcements, emergency levels and read tracking
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

var rootCmd = &cobra.Command{
	Use:          "noticeboard",
	Short:        "Internal announcement board",
	Long:         "noticeboard serves the announcement API and web UI, and manages its database schema and seed data.",
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
