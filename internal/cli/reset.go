package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/petalworks/blossom/internal/daemon"
	"github.com/petalworks/blossom/internal/domain"
	"github.com/petalworks/blossom/internal/infra/cloudstore"
	"github.com/petalworks/blossom/internal/infra/dualstore"
	"github.com/petalworks/blossom/internal/infra/localstore"
	"github.com/petalworks/blossom/internal/ledger"
)

func init() {
	rootCmd.AddCommand(resetCmd)
	resetCmd.Flags().Bool("force", false, "confirm wiping the wallet")
}

// Support tooling, deliberately kept out of help output. Stop the daemon
// before running this: it opens the store directly.
var resetCmd = &cobra.Command{
	Use:    "reset",
	Short:  "Wipe the wallet: balance, log, and all markers",
	Hidden: true,
	RunE:   runReset,
}

func runReset(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")
	if !force {
		return fmt.Errorf("refusing to wipe the wallet without --force")
	}

	cfg, err := daemon.Load(configPath)
	if err != nil {
		return err
	}
	ctx := context.Background()

	local, err := localstore.Open(cfg.Store.Dir)
	if err != nil {
		return fmt.Errorf("open local store: %w", err)
	}
	defer local.Close()

	var cloud domain.Backend
	if cfg.Cloud.Enabled {
		cs, err := cloudstore.New(cloudstore.Config{
			Addr:      cfg.Cloud.Addr,
			Password:  cfg.Cloud.Password,
			DB:        cfg.Cloud.DB,
			Namespace: cfg.Cloud.Namespace,
		})
		if err != nil {
			return fmt.Errorf("cloud replica must be reachable for a full reset: %w", err)
		}
		cloud = cs
		defer cs.Close()
	}

	store := dualstore.New(local, cloud)
	l, err := ledger.New(ctx, store)
	if err != nil {
		return err
	}
	if err := l.ResetAll(ctx); err != nil {
		return err
	}

	fmt.Println("Wallet wiped. The next launch grants a fresh welcome gift.")
	return nil
}
