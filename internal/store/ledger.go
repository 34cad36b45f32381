package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/script-licensing-service/internal/model"
)

func (p *Postgres) CountUsageSince(ctx context.Context, accountID uuid.UUID, since time.Time) (int, error) {
	var count int
	err := p.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM usage_records
		WHERE account_id = $1 AND credit_used = FALSE AND created_at >= $2
	`, accountID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count usage records: %w", err)
	}
	return count, nil
}

// TryDebitCredit performs a conditional single-statement decrement.
// The `credits > 0` predicate is evaluated at update time under row
// locking, so concurrent spenders of the last credit serialize and
// exactly one succeeds.
func (p *Postgres) TryDebitCredit(ctx context.Context, accountID uuid.UUID) (bool, error) {
	tag, err := p.pool.Exec(ctx, `
		UPDATE accounts SET credits = credits - 1, updated_at = NOW()
		WHERE id = $1 AND credits > 0
	`, accountID)
	if err != nil {
		return false, fmt.Errorf("debit credit: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (p *Postgres) RefundCredit(ctx context.Context, accountID uuid.UUID) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE accounts SET credits = credits + 1, updated_at = NOW() WHERE id = $1
	`, accountID)
	if err != nil {
		return fmt.Errorf("refund credit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) InsertUsageRecord(ctx context.Context, record *model.UsageRecord) error {
	err := p.pool.QueryRow(ctx, `
		INSERT INTO usage_records (account_id, credit_used)
		VALUES ($1, $2)
		RETURNING id, created_at
	`, record.AccountID, record.CreditUsed).Scan(&record.ID, &record.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert usage_record: %w", err)
	}
	return nil
}
