package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/igmedia/internal/application"
)

func newSyncCmd(boot Bootstrap) *cobra.Command {
	var (
		limit int
		force bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch recent media and reconcile it into the catalog",
		Long: `Fetches the most recent media from the connected account and creates or
updates local records. Records are never deleted and their visibility is
never changed by a sync. Items that fail validation are counted and skipped.

Without --force the sync is skipped with an error when the account is not
connected or the token has expired.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, boot, func(ctx context.Context, app *App) error {
				if app.Sync == nil {
					return errors.New("sync service not configured")
				}

				cmd.Println("Synchronising media...")
				report, err := app.Sync.Sync(ctx, application.SyncOptions{Limit: limit, Force: force})
				if err != nil {
					return fmt.Errorf("sync failed: %w", err)
				}

				printReport(cmd, report)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", application.DefaultSyncLimit,
		fmt.Sprintf("number of recent items to fetch (%d-%d)", application.MinSyncLimit, application.MaxSyncLimit))
	cmd.Flags().BoolVar(&force, "force", false, "sync even when the account is not marked ready")

	return cmd
}

func printReport(cmd *cobra.Command, r application.SyncReport) {
	cmd.Printf("Fetched %d items: %d created, %d updated, %d failed\n",
		r.Fetched, r.Created, r.Updated, r.Failed)
	if r.Hidden > 0 {
		cmd.Printf("Hid %d stale items\n", r.Hidden)
	}
	if r.Failed > 0 {
		cmd.Printf("Warning: %d items were skipped, see the log for details\n", r.Failed)
	}
	cmd.Printf("Run %s finished in %s\n", r.RunID, r.Duration.Round(time.Millisecond))
}
