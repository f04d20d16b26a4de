package main

import (
	"os"

	"github.com/spf13/cobra"

	"costura-backend/internal/platform/config"
)

// ビルド時に -ldflags "-X main.version=..." で埋め込む
var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:           "costura",
	Short:         "Costura Pro backend",
	Long:          `Attendance, piecework production and machine management backend for Costura Pro.`,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to config file")
	rootCmd.AddCommand(serveCmd, syncCmd, pruneCmd, qrCmd, adminCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
