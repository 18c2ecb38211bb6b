package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/analogrithems/rustored/internal/objectstore"
	"github.com/analogrithems/rustored/internal/ui"
)

// listCmd prints the snapshot catalog without starting the TUI, for
// headless inspection and scripting.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the snapshot listing and exit",
	Example: `  rustored list --endpoint http://localhost:9000 --bucket backups
  RUSTORED_BUCKET=backups rustored list --prefix prod/`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := settingsFromFlags()
		if err != nil {
			return err
		}
		if err := store.Validate(); err != nil {
			return err
		}
		log, closeLog, err := newLogger()
		if err != nil {
			return err
		}
		defer closeLog()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		client, err := objectstore.New(ctx, store, log)
		if err != nil {
			return err
		}
		snaps, err := client.List(ctx)
		if err != nil {
			return err
		}
		if len(snaps) == 0 {
			ui.Info("No snapshots under s3://%s/%s", store.Bucket, store.Prefix)
			return nil
		}
		return ui.SnapshotTable(snaps)
	},
}
