package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/igmedia/internal/domain/model"
)

// ErrEncryptionKeyNotSet is returned by CredentialStore operations that touch
// an encrypted setting when IGMEDIA_SECRET_KEY has not been configured.
var ErrEncryptionKeyNotSet = errors.New("encryption key not configured: set IGMEDIA_SECRET_KEY")

// Setting keys understood by CredentialStore.
const (
	SettingAppID          = "app_id"
	SettingAppSecret      = "app_secret"
	SettingAccessToken    = "access_token"
	SettingTokenExpiresAt = "token_expires_at"
	SettingLastRefreshAt  = "last_token_refresh"
	SettingUsername       = "username"
)

// CredentialStore defines the driven port for the persisted Instagram
// connection settings. The adapter encrypts app_secret and access_token at
// rest; this interface always deals in plaintext.
type CredentialStore interface {
	// Get returns the value for key, or ("", nil) if it is unset.
	Get(ctx context.Context, key string) (string, error)

	// Set stores or replaces a single setting.
	Set(ctx context.Context, key, value string) error

	// Delete removes a single setting. Deleting an unset key is not an error.
	Delete(ctx context.Context, key string) error

	// Load assembles the Credential from every credential setting.
	Load(ctx context.Context) (model.Credential, error)

	// Save writes every credential field in one transaction. Empty fields
	// are removed. Either all fields are committed or none are.
	Save(ctx context.Context, cred model.Credential) error
}
