package accounts

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

const activeAccountKey = "active_account_id"

// PostgresStore implements Store against PostgreSQL. Accounts live in
// console_accounts and the active selection in the console_settings
// key/value table.
type PostgresStore struct{ db *sql.DB }

// NewPostgresStore creates a Postgres-backed account store
func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

// EnsureSchema creates the console tables if they do not exist
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS console_accounts (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			api_key TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("creating console_accounts table: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS console_settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("creating console_settings table: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, api_key, created_at, updated_at
		FROM console_accounts
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.Name, &a.APIKey, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Account, error) {
	a := &Account{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, api_key, created_at, updated_at
		FROM console_accounts
		WHERE id = $1
	`, id).Scan(&a.ID, &a.Name, &a.APIKey, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) Create(ctx context.Context, name, apiKey string) (*Account, error) {
	id := uuid.New().String()
	a := &Account{ID: id, Name: name, APIKey: apiKey}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO console_accounts (id, name, api_key)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at
	`, id, name, apiKey).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) Update(ctx context.Context, id, name, apiKey string) (*Account, error) {
	a := &Account{}
	err := s.db.QueryRowContext(ctx, `
		UPDATE console_accounts
		SET name = COALESCE(NULLIF($2, ''), name),
		    api_key = COALESCE(NULLIF($3, ''), api_key),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING id, name, api_key, created_at, updated_at
	`, id, name, apiKey).Scan(&a.ID, &a.Name, &a.APIKey, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update account: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM console_accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	// Clear the active selection if it pointed at the deleted account
	_, err = s.db.ExecContext(ctx, `
		DELETE FROM console_settings WHERE key = $1 AND value = $2
	`, activeAccountKey, id)
	if err != nil {
		return fmt.Errorf("clear active account: %w", err)
	}
	return nil
}

func (s *PostgresStore) ActiveID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM console_settings WHERE key = $1
	`, activeAccountKey).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get active account: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) SetActive(ctx context.Context, id string) error {
	if id == "" {
		_, err := s.db.ExecContext(ctx, `
			DELETE FROM console_settings WHERE key = $1
		`, activeAccountKey)
		if err != nil {
			return fmt.Errorf("clear active account: %w", err)
		}
		return nil
	}

	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM console_accounts WHERE id = $1)
	`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check account exists: %w", err)
	}
	if !exists {
		return ErrNotFound
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO console_settings (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, activeAccountKey, id)
	if err != nil {
		return fmt.Errorf("set active account: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }
