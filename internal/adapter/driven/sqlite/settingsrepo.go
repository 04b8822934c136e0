package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ericfisherdev/igmedia/internal/domain/model"
	"github.com/ericfisherdev/igmedia/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*SettingsRepo)(nil)

// encryptedSettings are sealed with AES-256-GCM before they reach disk.
var encryptedSettings = map[string]bool{
	driven.SettingAppSecret:   true,
	driven.SettingAccessToken: true,
}

// SettingsRepo is the SQLite implementation of the CredentialStore port.
type SettingsRepo struct {
	db  *DB
	key []byte // 32-byte AES-256 key; nil disables encrypted settings.
}

// NewSettingsRepo creates a SettingsRepo. key must be 32 bytes, or nil, in
// which case reading or writing app_secret/access_token returns
// driven.ErrEncryptionKeyNotSet while plain settings keep working.
func NewSettingsRepo(db *DB, key []byte) *SettingsRepo {
	return &SettingsRepo{db: db, key: key}
}

// Get returns the plaintext value for key, or "" if unset.
func (r *SettingsRepo) Get(ctx context.Context, key string) (string, error) {
	const query = `SELECT value, encrypted FROM settings WHERE key = ?`

	var stored string
	var encrypted int
	err := r.db.Reader.QueryRowContext(ctx, query, key).Scan(&stored, &encrypted)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}

	if encrypted == 0 {
		return stored, nil
	}
	plaintext, err := r.decrypt(stored)
	if err != nil {
		return "", fmt.Errorf("decrypt setting %q: %w", key, err)
	}
	return plaintext, nil
}

// Set stores or replaces a single setting.
func (r *SettingsRepo) Set(ctx context.Context, key, value string) error {
	stored, encrypted, err := r.seal(key, value)
	if err != nil {
		return err
	}

	_, err = r.db.Writer.ExecContext(ctx, upsertSettingSQL, key, stored, encrypted)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}

// Delete removes a single setting.
func (r *SettingsRepo) Delete(ctx context.Context, key string) error {
	if _, err := r.db.Writer.ExecContext(ctx, deleteSettingSQL, key); err != nil {
		return fmt.Errorf("delete setting %q: %w", key, err)
	}
	return nil
}

// Load reads every credential setting and assembles a Credential.
func (r *SettingsRepo) Load(ctx context.Context) (model.Credential, error) {
	const query = `SELECT key, value, encrypted FROM settings`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return model.Credential{}, fmt.Errorf("load settings: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, stored string
		var encrypted int
		if err := rows.Scan(&key, &stored, &encrypted); err != nil {
			return model.Credential{}, fmt.Errorf("scan setting: %w", err)
		}
		if encrypted != 0 {
			stored, err = r.decrypt(stored)
			if err != nil {
				return model.Credential{}, fmt.Errorf("decrypt setting %q: %w", key, err)
			}
		}
		values[key] = stored
	}
	if err := rows.Err(); err != nil {
		return model.Credential{}, fmt.Errorf("iterate settings: %w", err)
	}

	cred := model.Credential{
		AppID:       values[driven.SettingAppID],
		AppSecret:   values[driven.SettingAppSecret],
		AccessToken: values[driven.SettingAccessToken],
		Username:    values[driven.SettingUsername],
	}
	if v := values[driven.SettingTokenExpiresAt]; v != "" {
		if cred.TokenExpiresAt, err = parseTime(v); err != nil {
			return model.Credential{}, fmt.Errorf("parse %s: %w", driven.SettingTokenExpiresAt, err)
		}
	}
	if v := values[driven.SettingLastRefreshAt]; v != "" {
		if cred.LastRefreshAt, err = parseTime(v); err != nil {
			return model.Credential{}, fmt.Errorf("parse %s: %w", driven.SettingLastRefreshAt, err)
		}
	}

	return cred, nil
}

// Save writes every credential field in a single transaction. Values are
// sealed before the transaction starts so an encryption failure writes nothing.
func (r *SettingsRepo) Save(ctx context.Context, cred model.Credential) error {
	fields := []struct {
		key   string
		value string
	}{
		{driven.SettingAppID, cred.AppID},
		{driven.SettingAppSecret, cred.AppSecret},
		{driven.SettingAccessToken, cred.AccessToken},
		{driven.SettingTokenExpiresAt, optionalTime(cred.TokenExpiresAt)},
		{driven.SettingLastRefreshAt, optionalTime(cred.LastRefreshAt)},
		{driven.SettingUsername, cred.Username},
	}

	type sealedField struct {
		key       string
		stored    string
		encrypted int
	}
	sealed := make([]sealedField, 0, len(fields))
	for _, f := range fields {
		if f.value == "" {
			sealed = append(sealed, sealedField{key: f.key})
			continue
		}
		stored, encrypted, err := r.seal(f.key, f.value)
		if err != nil {
			return err
		}
		sealed = append(sealed, sealedField{key: f.key, stored: stored, encrypted: encrypted})
	}

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin settings transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, f := range sealed {
		if f.stored == "" {
			if _, err := tx.ExecContext(ctx, deleteSettingSQL, f.key); err != nil {
				return fmt.Errorf("clear setting %q: %w", f.key, err)
			}
			continue
		}
		if _, err := tx.ExecContext(ctx, upsertSettingSQL, f.key, f.stored, f.encrypted); err != nil {
			return fmt.Errorf("save setting %q: %w", f.key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit settings: %w", err)
	}
	return nil
}

const (
	upsertSettingSQL = `
		INSERT INTO settings (key, value, encrypted, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			encrypted = excluded.encrypted,
			updated_at = excluded.updated_at
	`
	deleteSettingSQL = `DELETE FROM settings WHERE key = ?`
)

func optionalTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return formatTime(t)
}

// seal returns the value to store for key and whether it was encrypted.
func (r *SettingsRepo) seal(key, value string) (string, int, error) {
	if !encryptedSettings[key] {
		return value, 0, nil
	}
	encrypted, err := r.encrypt(value)
	if err != nil {
		return "", 0, fmt.Errorf("encrypt setting %q: %w", key, err)
	}
	return encrypted, 1, nil
}

// encrypt seals plaintext with AES-256-GCM and returns base64(nonce || ciphertext || tag).
func (r *SettingsRepo) encrypt(plaintext string) (string, error) {
	gcm, err := r.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

func (r *SettingsRepo) decrypt(encoded string) (string, error) {
	gcm, err := r.gcm()
	if err != nil {
		return "", err
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("gcm.Open: %w", err)
	}

	return string(plaintext), nil
}

func (r *SettingsRepo) gcm() (cipher.AEAD, error) {
	if r.key == nil {
		return nil, driven.ErrEncryptionKeyNotSet
	}
	block, err := aes.NewCipher(r.key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return gcm, nil
}
