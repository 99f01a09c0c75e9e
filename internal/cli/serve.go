package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/petalworks/blossom/internal/aiclient"
	"github.com/petalworks/blossom/internal/api"
	"github.com/petalworks/blossom/internal/app/gate"
	"github.com/petalworks/blossom/internal/app/purchase"
	"github.com/petalworks/blossom/internal/app/quota"
	"github.com/petalworks/blossom/internal/daemon"
	"github.com/petalworks/blossom/internal/domain"
	"github.com/petalworks/blossom/internal/infra/cloudstore"
	"github.com/petalworks/blossom/internal/infra/dualstore"
	"github.com/petalworks/blossom/internal/infra/localstore"
	"github.com/petalworks/blossom/internal/ledger"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the wallet daemon",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.Load(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.Store.Dir, 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
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
			// The wallet runs fine on the local replica alone.
			log.Printf("[daemon] cloud replica unavailable, continuing local-only: %v", err)
		} else {
			cloud = cs
			defer cs.Close()
		}
	}

	store := dualstore.New(local, cloud)
	store.StartWatch(ctx)

	l, err := ledger.New(ctx, store)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	l.WatchCloud(ctx)

	q, err := quota.New(ctx, local, l.IsNewUser())
	if err != nil {
		return fmt.Errorf("open quota: %w", err)
	}

	g := gate.New(l, q)
	f := purchase.New(l, store)
	ai := aiclient.New(aiclient.Config{
		RelayURL: cfg.AI.RelayURL,
		Model:    cfg.AI.Model,
		Timeout:  time.Duration(cfg.AI.TimeoutSeconds) * time.Second,
	})

	server := api.NewServer(l, g, f, ai)
	if cfg.Metrics.Enabled {
		server.EnableMetrics()
	}
	if cfg.Relay.Enabled {
		server.SetRelay(api.NewRelay(cfg.Relay.VendorURL, cfg.Relay.APIKey, cfg.Relay.Model))
	}

	httpServer := &http.Server{
		Addr:    cfg.API.Addr(),
		Handler: server.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[daemon] listening on %s", cfg.API.Addr())
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	log.Printf("[daemon] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("[daemon] shutdown: %v", err)
	}
	if err := l.SyncNow(shutdownCtx); err != nil {
		log.Printf("[daemon] final sync: %v", err)
	}
	return nil
}
