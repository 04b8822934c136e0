package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/igmedia/internal/application"
)

var errOAuthNotConfigured = errors.New("oauth service not configured")

func newRefreshTokenCmd(boot Bootstrap) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "refresh-token",
		Short: "Refresh the long-lived access token when it nears expiry",
		Long: `Checks the stored token and extends it when it expires within 7 days.
With --force the provider is always contacted.

Exits non-zero when no token is stored, the token has already expired, or
the provider rejects the refresh.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, boot, func(ctx context.Context, app *App) error {
				if app.OAuth == nil {
					return errOAuthNotConfigured
				}

				res, err := app.OAuth.Refresh(ctx, force)
				if err != nil {
					return fmt.Errorf("token refresh failed: %w", err)
				}

				cmd.Println(res.Message)
				if res.Refreshed {
					cmd.Printf("New expiry: %s (%d days)\n", res.ExpiresAt.UTC().Format(time.RFC3339), res.DaysUntilExpiry)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "refresh regardless of remaining lifetime")

	return cmd
}

func newAuthorizeURLCmd(boot Bootstrap) *cobra.Command {
	return &cobra.Command{
		Use:   "authorize-url",
		Short: "Print the URL that connects an account",
		Long: `Prints the /oauth/authorize route of the server configured by
IGMEDIA_PUBLIC_URL. Open it in a browser while "igmedia serve" is running;
the server issues the state and binds it to that browser.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, boot, func(_ context.Context, app *App) error {
				if app.AuthorizeURL == "" {
					return errors.New("public URL not configured")
				}
				cmd.Println(app.AuthorizeURL)
				return nil
			})
		},
	}
}

func newDisconnectCmd(boot Bootstrap) *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect",
		Short: "Forget the stored access token",
		Long:  `Clears the access token, expiry and username. The app id and secret are kept.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, boot, func(ctx context.Context, app *App) error {
				if app.OAuth == nil {
					return errOAuthNotConfigured
				}

				if err := app.OAuth.Disconnect(ctx); err != nil {
					return err
				}
				cmd.Println("Instagram account disconnected.")
				return nil
			})
		},
	}
}

func newStatusCmd(boot Bootstrap) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the connection and token state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, boot, func(ctx context.Context, app *App) error {
				if app.OAuth == nil {
					return errOAuthNotConfigured
				}

				st, err := app.OAuth.Status(ctx)
				if err != nil {
					return err
				}
				printStatus(cmd, st)
				return nil
			})
		},
	}
}

func printStatus(cmd *cobra.Command, st application.AuthStatus) {
	cmd.Printf("State:          %s\n", st.State)
	cmd.Printf("App configured: %t\n", st.AppConfigured)
	if st.Username != "" {
		cmd.Printf("Account:        @%s\n", st.Username)
	}
	if st.ExpiresAt != nil {
		cmd.Printf("Token expires:  %s\n", st.ExpiresAt.UTC().Format(time.RFC3339))
	}
	if st.DaysUntilExpiry != nil {
		cmd.Printf("Days remaining: %d\n", *st.DaysUntilExpiry)
	}
	if st.LastRefreshAt != nil {
		cmd.Printf("Last refresh:   %s\n", st.LastRefreshAt.UTC().Format(time.RFC3339))
	}
}
