// Package cli is the command-line driving adapter. Every command except
// healthcheck builds the service graph through a Bootstrap and releases it
// when the command returns.
package cli

import (
	"context"
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/igmedia/internal/application"
)

// OAuthService is the token lifecycle surface the commands drive.
type OAuthService interface {
	Refresh(ctx context.Context, force bool) (application.RefreshResult, error)
	Disconnect(ctx context.Context) error
	Status(ctx context.Context) (application.AuthStatus, error)
}

// SyncService runs one sync pass.
type SyncService interface {
	Sync(ctx context.Context, opts application.SyncOptions) (application.SyncReport, error)
}

// SettingsWriter stores a single persisted setting.
type SettingsWriter interface {
	Set(ctx context.Context, key, value string) error
}

// Runner is a background loop that exits when ctx is cancelled.
type Runner interface {
	Start(ctx context.Context)
}

// App is the wired service graph handed to the commands.
type App struct {
	OAuth      OAuthService
	Sync       SyncService
	Settings   SettingsWriter
	Scheduler  Runner
	Handler    http.Handler
	ListenAddr string

	// AuthorizeURL is the running server's route that starts the OAuth flow.
	AuthorizeURL string

	// Close releases resources opened by the Bootstrap. May be nil.
	Close func()
}

// Bootstrap builds the App. It is called lazily so that commands which do not
// need the database never open it.
type Bootstrap func(ctx context.Context) (*App, error)

// NewRootCmd creates the igmedia command tree.
func NewRootCmd(boot Bootstrap) *cobra.Command {
	root := &cobra.Command{
		Use:   "igmedia",
		Short: "Sync an Instagram account's media into a local catalog",
		Long: `igmedia connects one Instagram professional account through OAuth,
keeps its long-lived token fresh, and mirrors the account's media into a
local SQLite catalog served over a small JSON API.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newServeCmd(boot),
		newSyncCmd(boot),
		newRefreshTokenCmd(boot),
		newAuthorizeURLCmd(boot),
		newDisconnectCmd(boot),
		newStatusCmd(boot),
		newSettingsCmd(boot),
		newHealthcheckCmd(),
	)

	return root
}

// withApp boots the service graph, runs fn and closes the graph.
func withApp(cmd *cobra.Command, boot Bootstrap, fn func(ctx context.Context, app *App) error) error {
	if boot == nil {
		return errors.New("services not configured")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	app, err := boot(ctx)
	if err != nil {
		return err
	}
	if app.Close != nil {
		defer app.Close()
	}

	return fn(ctx, app)
}
