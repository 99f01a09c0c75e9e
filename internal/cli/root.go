// Package cli implements the blossomd command tree.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/petalworks/blossom/internal/daemon"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "blossomd",
	Short: "Coin wallet and entitlement daemon",
	Long: `blossomd owns the virtual coin wallet: the balance, the transaction
log, purchase fulfillment, and the pay-per-use gate in front of the AI
features. State lives in a local sqlite replica, with an optional cloud
replica for cross-device continuity.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", daemon.DefaultPath(), "path to the config file")
}

// Execute runs the command tree.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
