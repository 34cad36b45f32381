package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/script-licensing-service/internal/model"
)

func (p *Postgres) CreateProduct(ctx context.Context, product *model.Product) error {
	err := p.pool.QueryRow(ctx, `
		INSERT INTO products (account_id, name)
		VALUES ($1, $2)
		RETURNING id, created_at
	`, product.AccountID, product.Name).Scan(&product.ID, &product.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (p *Postgres) GetProduct(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var product model.Product
	err := p.pool.QueryRow(ctx, `
		SELECT id, account_id, name, created_at FROM products WHERE id = $1
	`, id).Scan(&product.ID, &product.AccountID, &product.Name, &product.CreatedAt)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &product, nil
}

func (p *Postgres) CreateSystem(ctx context.Context, system *model.WhitelistSystem) error {
	err := p.pool.QueryRow(ctx, `
		INSERT INTO whitelist_systems (account_id, product_id, name)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, system.AccountID, system.ProductID, system.Name).
		Scan(&system.ID, &system.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert whitelist_system: %w", err)
	}
	return nil
}

func (p *Postgres) GetSystem(ctx context.Context, id uuid.UUID) (*model.WhitelistSystem, error) {
	var system model.WhitelistSystem
	err := p.pool.QueryRow(ctx, `
		SELECT id, account_id, product_id, name, created_at
		FROM whitelist_systems WHERE id = $1
	`, id).Scan(&system.ID, &system.AccountID, &system.ProductID, &system.Name, &system.CreatedAt)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &system, nil
}

func (p *Postgres) ListSystemsByAccount(ctx context.Context, accountID uuid.UUID) ([]*model.WhitelistSystem, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, account_id, product_id, name, created_at
		FROM whitelist_systems WHERE account_id = $1 ORDER BY created_at DESC
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list whitelist_systems: %w", err)
	}
	defer rows.Close()

	var systems []*model.WhitelistSystem
	for rows.Next() {
		var system model.WhitelistSystem
		if err := rows.Scan(&system.ID, &system.AccountID, &system.ProductID, &system.Name, &system.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan whitelist_system: %w", err)
		}
		systems = append(systems, &system)
	}
	return systems, rows.Err()
}

const entryColumns = `id, system_id, username, discord_id, roblox_id, license_key,
	status, ban_reason, banned_at, expires_at, added_at`

func (p *Postgres) CreateEntry(ctx context.Context, entry *model.WhitelistEntry) error {
	err := p.pool.QueryRow(ctx, `
		INSERT INTO whitelist_entries (
			system_id, username, discord_id, roblox_id, license_key, status, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, added_at
	`, entry.SystemID, entry.Username, nullable(entry.DiscordID), nullable(entry.RobloxID),
		entry.LicenseKey, entry.Status, entry.ExpiresAt,
	).Scan(&entry.ID, &entry.AddedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateLicenseKey
		}
		return fmt.Errorf("insert whitelist_entry: %w", err)
	}
	return nil
}

func (p *Postgres) GetEntry(ctx context.Context, id uuid.UUID) (*model.WhitelistEntry, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+entryColumns+` FROM whitelist_entries WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("query whitelist_entry: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, ErrNotFound
	}
	return scanEntryFromRow(rows)
}

func (p *Postgres) ListEntriesByProduct(ctx context.Context, accountID, productID uuid.UUID, page, perPage int) ([]*model.WhitelistEntry, int, error) {
	var total int
	err := p.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM whitelist_entries e
		JOIN whitelist_systems s ON s.id = e.system_id
		WHERE s.account_id = $1 AND s.product_id = $2
	`, accountID, productID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count whitelist_entries: %w", err)
	}

	offset := (page - 1) * perPage
	rows, err := p.pool.Query(ctx, `
		SELECT `+prefixedEntryColumns("e")+`
		FROM whitelist_entries e
		JOIN whitelist_systems s ON s.id = e.system_id
		WHERE s.account_id = $1 AND s.product_id = $2
		ORDER BY e.added_at DESC LIMIT $3 OFFSET $4
	`, accountID, productID, perPage, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list whitelist_entries: %w", err)
	}
	defer rows.Close()

	var entries []*model.WhitelistEntry
	for rows.Next() {
		entry, err := scanEntryFromRow(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, entry)
	}
	return entries, total, rows.Err()
}

func (p *Postgres) CountEntriesByProduct(ctx context.Context, accountID, productID uuid.UUID) (int, error) {
	var count int
	err := p.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM whitelist_entries e
		JOIN whitelist_systems s ON s.id = e.system_id
		WHERE s.account_id = $1 AND s.product_id = $2
	`, accountID, productID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count entries by product: %w", err)
	}
	return count, nil
}

func (p *Postgres) CountEntriesBySystem(ctx context.Context, systemID uuid.UUID) (int, error) {
	var count int
	err := p.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM whitelist_entries WHERE system_id = $1
	`, systemID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count entries by system: %w", err)
	}
	return count, nil
}

func (p *Postgres) UpdateEntryStatus(ctx context.Context, id uuid.UUID, status model.EntryStatus, banReason string, bannedAt *time.Time) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE whitelist_entries SET status = $1, ban_reason = $2, banned_at = $3 WHERE id = $4
	`, status, nullable(banReason), bannedAt, id)
	if err != nil {
		return fmt.Errorf("update entry status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) DeleteEntry(ctx context.Context, id uuid.UUID) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM whitelist_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete whitelist_entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) FindEntriesForVerification(ctx context.Context, productID uuid.UUID, ident Identity) ([]*model.WhitelistEntry, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+prefixedEntryColumns("e")+`
		FROM whitelist_entries e
		JOIN whitelist_systems s ON s.id = e.system_id
		WHERE s.product_id = $1 AND (
			($2 <> '' AND e.username = $2) OR
			($3 <> '' AND e.discord_id = $3) OR
			($4 <> '' AND e.roblox_id = $4)
		)
		ORDER BY e.added_at DESC
	`, productID, ident.Username, ident.DiscordID, ident.RobloxID)
	if err != nil {
		return nil, fmt.Errorf("find entries for verification: %w", err)
	}
	defer rows.Close()

	var entries []*model.WhitelistEntry
	for rows.Next() {
		entry, err := scanEntryFromRow(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanEntryFromRow(rows pgx.Rows) (*model.WhitelistEntry, error) {
	var entry model.WhitelistEntry
	var discordID, robloxID, banReason *string

	err := rows.Scan(
		&entry.ID, &entry.SystemID, &entry.Username, &discordID, &robloxID,
		&entry.LicenseKey, &entry.Status, &banReason, &entry.BannedAt,
		&entry.ExpiresAt, &entry.AddedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan whitelist_entry: %w", err)
	}

	if discordID != nil {
		entry.DiscordID = *discordID
	}
	if robloxID != nil {
		entry.RobloxID = *robloxID
	}
	if banReason != nil {
		entry.BanReason = *banReason
	}
	return &entry, nil
}

func prefixedEntryColumns(alias string) string {
	return alias + `.id, ` + alias + `.system_id, ` + alias + `.username, ` +
		alias + `.discord_id, ` + alias + `.roblox_id, ` + alias + `.license_key, ` +
		alias + `.status, ` + alias + `.ban_reason, ` + alias + `.banned_at, ` +
		alias + `.expires_at, ` + alias + `.added_at`
}

// nullable maps empty strings to NULL for optional text columns.
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
