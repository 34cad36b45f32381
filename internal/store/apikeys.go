package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/script-licensing-service/internal/model"
)

const apiKeyColumns = `id, account_id, name, key_hash, key_prefix, active, last_used_at, created_at`

func (p *Postgres) CreateAPIKey(ctx context.Context, key *model.APIKey) error {
	err := p.pool.QueryRow(ctx, `
		INSERT INTO api_keys (account_id, name, key_hash, key_prefix, active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, key.AccountID, key.Name, key.KeyHash, key.KeyPrefix, key.Active).
		Scan(&key.ID, &key.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert api_key: %w", err)
	}
	return nil
}

func (p *Postgres) GetAPIKeyByHash(ctx context.Context, keyHash string) (*model.APIKey, error) {
	return p.scanAPIKey(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE key_hash = $1`, keyHash)
}

func (p *Postgres) GetAPIKeyByID(ctx context.Context, id uuid.UUID) (*model.APIKey, error) {
	return p.scanAPIKey(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE id = $1`, id)
}

func (p *Postgres) ListAPIKeysByAccount(ctx context.Context, accountID uuid.UUID) ([]*model.APIKey, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+apiKeyColumns+` FROM api_keys WHERE account_id = $1 ORDER BY created_at DESC
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list api_keys: %w", err)
	}
	defer rows.Close()

	var keys []*model.APIKey
	for rows.Next() {
		key, err := scanAPIKeyFromRow(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (p *Postgres) TouchAPIKey(ctx context.Context, id uuid.UUID, usedAt time.Time) error {
	_, err := p.pool.Exec(ctx, `
		UPDATE api_keys SET last_used_at = $1 WHERE id = $2
	`, usedAt, id)
	if err != nil {
		return fmt.Errorf("touch api_key: %w", err)
	}
	return nil
}

func (p *Postgres) SetAPIKeyActive(ctx context.Context, id, accountID uuid.UUID, active bool) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE api_keys SET active = $1 WHERE id = $2 AND account_id = $3
	`, active, id, accountID)
	if err != nil {
		return fmt.Errorf("set api_key active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) scanAPIKey(ctx context.Context, query string, args ...interface{}) (*model.APIKey, error) {
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query api_key: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, ErrNotFound
	}
	return scanAPIKeyFromRow(rows)
}

func scanAPIKeyFromRow(rows pgx.Rows) (*model.APIKey, error) {
	var key model.APIKey
	err := rows.Scan(
		&key.ID, &key.AccountID, &key.Name, &key.KeyHash, &key.KeyPrefix,
		&key.Active, &key.LastUsedAt, &key.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan api_key: %w", err)
	}
	return &key, nil
}
