package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/igmedia/internal/domain/port/driven"
)

// settingKeys maps the user-facing names onto stored setting keys.
var settingKeys = map[string]string{
	"app-id":     driven.SettingAppID,
	"app-secret": driven.SettingAppSecret,
}

func newSettingsCmd(boot Bootstrap) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Manage stored application settings",
	}

	setCmd := &cobra.Command{
		Use:   "set <app-id|app-secret> [value|-]",
		Short: "Store the Instagram app id or secret",
		Long: `Stores the Instagram app id or app secret. The secret is encrypted at rest
and requires IGMEDIA_SECRET_KEY. Values are never echoed back.

When the value is omitted or "-", the first line of standard input is used,
which keeps the secret out of the process list and shell history:

  printf '%s' "$APP_SECRET" | igmedia settings set app-secret`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.ToLower(args[0])
			key, ok := settingKeys[name]
			if !ok {
				return fmt.Errorf("unknown setting %q (expected app-id or app-secret)", args[0])
			}
			raw := "-"
			if len(args) == 2 {
				raw = args[1]
			}
			if raw == "-" {
				line, err := readLine(cmd)
				if err != nil {
					return fmt.Errorf("read %s from stdin: %w", name, err)
				}
				raw = line
			}
			value := strings.TrimSpace(raw)
			if value == "" {
				return fmt.Errorf("%s must not be empty", name)
			}

			return withApp(cmd, boot, func(ctx context.Context, app *App) error {
				if app.Settings == nil {
					return errors.New("settings store not configured")
				}
				if err := app.Settings.Set(ctx, key, value); err != nil {
					return fmt.Errorf("save %s: %w", name, err)
				}
				cmd.Printf("%s updated.\n", name)
				return nil
			})
		},
	}

	settingsCmd.AddCommand(setCmd)
	return settingsCmd
}

// readLine returns the first line of the command's input, or "" when empty.
func readLine(cmd *cobra.Command) (string, error) {
	sc := bufio.NewScanner(cmd.InOrStdin())
	if sc.Scan() {
		return sc.Text(), nil
	}
	return "", sc.Err()
}
