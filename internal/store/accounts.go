package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/script-licensing-service/internal/model"
)

func (p *Postgres) CreateAccount(ctx context.Context, account *model.Account) error {
	err := p.pool.QueryRow(ctx, `
		INSERT INTO accounts (email, tier, credits)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`, account.Email, account.Tier, account.Credits).
		Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (p *Postgres) GetAccount(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	var account model.Account
	err := p.pool.QueryRow(ctx, `
		SELECT id, email, tier, credits, created_at, updated_at
		FROM accounts WHERE id = $1
	`, id).Scan(
		&account.ID, &account.Email, &account.Tier, &account.Credits,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &account, nil
}

func (p *Postgres) AddCredits(ctx context.Context, id uuid.UUID, delta int64) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE accounts SET credits = credits + $1, updated_at = NOW() WHERE id = $2
	`, delta, id)
	if err != nil {
		return fmt.Errorf("add credits: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
