package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tkamdem/livrazone/core/config"
)

var rootCmd = &cobra.Command{
	Use:   "livrazone",
	Short: "Delivery operations gateway for WhatsApp groups",
	Long: `Livrazone ingests delivery announcements and status updates from
WhatsApp groups, keeps per-agency delivery state, and exposes it over an
authenticated HTTP API.`,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	cobra.OnInitialize(initApp)
}

func initApp() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("[APP] Failed to load configuration: %v", err)
	}

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if cfg.App.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
