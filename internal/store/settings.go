package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
)

// GetJWTSecret retrieves the JWT secret from the database.
// If no secret exists, it generates one, stores it, and returns it.
func GetJWTSecret(ctx context.Context, db *sql.DB) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating jwt secret: %w", err)
	}

	// INSERT OR IGNORE + re-SELECT keeps concurrent first starts consistent.
	if err := SetSettingIfAbsent(ctx, db, "jwt_secret", hex.EncodeToString(buf)); err != nil {
		return "", err
	}

	secret, err := GetSetting(ctx, db, "jwt_secret")
	if err != nil {
		return "", err
	}
	return secret, nil
}

// GetSetting returns a setting value, or "" if it is not set.
func GetSetting(ctx context.Context, db *sql.DB, key string) (string, error) {
	var value string
	err := db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("querying setting %s: %w", key, err)
	}
	return value, nil
}

// SetSettingIfAbsent stores a setting unless it already has a value.
func SetSettingIfAbsent(ctx context.Context, db *sql.DB, key, value string) error {
	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`, key, value,
	)
	if err != nil {
		return fmt.Errorf("storing setting %s: %w", key, err)
	}
	return nil
}
