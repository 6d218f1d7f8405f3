package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/warden-rc/warden/internal/config"
	"github.com/warden-rc/warden/pkg/remote"
)

func snapshotCmd(configPath *string) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "snapshot <host>",
		Short: "Archive a single framebuffer snapshot of one host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return runSnapshot(cmd.Context(), cfg, args[0], timeout)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "How long to wait for a complete framebuffer")

	return cmd
}

func runSnapshot(ctx context.Context, cfg *config.Config, host string, timeout time.Duration) error {
	store, err := buildSnapshotStore(ctx, cfg.Snapshots)
	if err != nil {
		return err
	}
	if store == nil {
		return fmt.Errorf("snapshots are disabled in the configuration")
	}

	engineCfg := cfg.SessionEngineConfig()
	transport := buildTransport(cfg, engineCfg)

	conn := remote.New(host, engineCfg, transport)
	conn.SetUpdateMode(remote.UpdateBasic)
	if err := conn.Connect(); err != nil {
		return err
	}
	defer conn.Stop()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		img, err := conn.CurrentImage()
		if err == nil {
			id, err := store.Save(ctx, host, img)
			if err != nil {
				return err
			}
			fmt.Println(id)
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("no complete framebuffer from %s within %v", host, timeout)
}
