package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/script-licensing-service/internal/model"
	"github.com/script-licensing-service/internal/store"
)

// ReservationSource records which pool a reservation holds against.
type ReservationSource string

const (
	SourceAllowance ReservationSource = "allowance"
	SourceCredit    ReservationSource = "credit"
)

// Reservation is a provisional hold on one metered operation. It lives
// only in process memory: a reservation that is never committed or
// released is invisible to future dailyUsed computations, because
// dailyUsed derives solely from committed usage records.
type Reservation struct {
	AccountID  uuid.UUID
	Source     ReservationSource
	ReservedAt time.Time

	settled bool
}

// QuotaService is the ledger deciding whether an account may perform a
// metered operation, and accounting for it afterwards.
type QuotaService struct {
	ledger   store.LedgerStore
	accounts store.AccountStore
}

// NewQuotaService creates a new quota service.
func NewQuotaService(ledger store.LedgerStore, accounts store.AccountStore) *QuotaService {
	return &QuotaService{ledger: ledger, accounts: accounts}
}

// AuthorizeAndReserve checks the account's daily allowance and, failing
// that, attempts an atomic credit debit. The returned reservation must
// be settled with Commit or Release.
func (s *QuotaService) AuthorizeAndReserve(ctx context.Context, accountID uuid.UUID) (*Reservation, error) {
	account, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NewNotFound("not_found", "Account not found")
		}
		log.Error().Err(err).Msg("failed to load account")
		return nil, NewInternal("internal_error", "Failed to authorize operation")
	}

	now := time.Now().UTC()
	limit := model.LimitsFor(account.Tier).DailyObfuscations

	if limit == model.Unlimited {
		return &Reservation{AccountID: accountID, Source: SourceAllowance, ReservedAt: now}, nil
	}

	dailyUsed, err := s.ledger.CountUsageSince(ctx, accountID, model.StartOfUTCDay(now))
	if err != nil {
		log.Error().Err(err).Msg("failed to count daily usage")
		return nil, NewInternal("internal_error", "Failed to authorize operation")
	}

	if dailyUsed < limit {
		return &Reservation{AccountID: accountID, Source: SourceAllowance, ReservedAt: now}, nil
	}

	debited, err := s.ledger.TryDebitCredit(ctx, accountID)
	if err != nil {
		log.Error().Err(err).Msg("failed to debit credit")
		return nil, NewInternal("internal_error", "Failed to authorize operation")
	}
	if !debited {
		return nil, NewQuotaExceeded("Daily allowance used and no credits remaining")
	}

	return &Reservation{AccountID: accountID, Source: SourceCredit, ReservedAt: now}, nil
}

// Commit finalizes a reservation after the metered operation succeeded.
// This is the only point at which usage becomes visible to dailyUsed.
func (s *QuotaService) Commit(ctx context.Context, res *Reservation) error {
	if res == nil || res.settled {
		return nil
	}
	res.settled = true

	record := &model.UsageRecord{
		AccountID:  res.AccountID,
		CreditUsed: res.Source == SourceCredit,
	}
	if err := s.ledger.InsertUsageRecord(ctx, record); err != nil {
		log.Error().Err(err).Str("account_id", res.AccountID.String()).Msg("failed to record usage")
		return NewInternal("internal_error", "Failed to record usage")
	}
	return nil
}

// Release undoes a reservation after a failed operation. A credit hold
// is re-credited; an allowance hold needs no compensation because no
// usage record was ever written.
func (s *QuotaService) Release(ctx context.Context, res *Reservation) error {
	if res == nil || res.settled {
		return nil
	}
	res.settled = true

	if res.Source != SourceCredit {
		return nil
	}
	if err := s.ledger.RefundCredit(ctx, res.AccountID); err != nil {
		log.Error().Err(err).Str("account_id", res.AccountID.String()).Msg("failed to refund credit")
		return NewInternal("internal_error", "Failed to refund credit")
	}
	return nil
}

// Snapshot returns the account's current usage view, computed over the
// same UTC-day window as authorization.
func (s *QuotaService) Snapshot(ctx context.Context, accountID uuid.UUID) (*model.UsageSnapshot, error) {
	account, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NewNotFound("not_found", "Account not found")
		}
		log.Error().Err(err).Msg("failed to load account")
		return nil, NewInternal("internal_error", "Failed to load usage")
	}

	dailyUsed, err := s.ledger.CountUsageSince(ctx, accountID, model.StartOfUTCDay(time.Now()))
	if err != nil {
		log.Error().Err(err).Msg("failed to count daily usage")
		return nil, NewInternal("internal_error", "Failed to load usage")
	}

	return &model.UsageSnapshot{
		Tier:       account.Tier,
		DailyUsed:  dailyUsed,
		DailyLimit: model.LimitsFor(account.Tier).DailyObfuscations,
		Credits:    account.Credits,
	}, nil
}
