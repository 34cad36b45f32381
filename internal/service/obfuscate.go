package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/script-licensing-service/internal/metrics"
	"github.com/script-licensing-service/internal/validation"
)

// storeGrace is the extra time the detached flow gets beyond the engine
// client's own timeout, so the store calls before and after the engine
// still complete under the flow deadline.
const storeGrace = 10 * time.Second

// ObfuscationEngine transforms source code at a protection level. The
// real implementation calls the external engine over HTTP with a
// bounded timeout.
type ObfuscationEngine interface {
	Obfuscate(ctx context.Context, code, level string) (string, error)
}

// ObfuscationService runs the metered obfuscation flow: reserve quota,
// invoke the engine, then commit or release.
type ObfuscationService struct {
	quota   *QuotaService
	engine  ObfuscationEngine
	timeout time.Duration
}

// NewObfuscationService creates a new obfuscation service. engineTimeout
// must match the engine client's request timeout; the whole flow is
// bounded by it plus storeGrace.
func NewObfuscationService(quota *QuotaService, engine ObfuscationEngine, engineTimeout time.Duration) *ObfuscationService {
	return &ObfuscationService{quota: quota, engine: engine, timeout: engineTimeout + storeGrace}
}

// ObfuscateResult contains the transformed code and which pool paid
// for the operation.
type ObfuscateResult struct {
	Code   string
	Level  string
	Source ReservationSource
}

// Obfuscate performs one metered obfuscation. Once validation passes
// the flow runs on a detached context: a client disconnect can no
// longer abandon the reservation mid-state. The detached context still
// carries a deadline, so a hung store or engine cannot pin an
// unsettled reservation forever.
func (s *ObfuscationService) Obfuscate(ctx context.Context, accountID uuid.UUID, code, level string) (*ObfuscateResult, error) {
	if code == "" {
		return nil, NewBadRequest("invalid_request", "code is required")
	}
	if err := validation.ProtectionLevel(level); err != nil {
		return nil, NewBadRequest("invalid_request", err.Error())
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	reservation, err := s.quota.AuthorizeAndReserve(ctx, accountID)
	if err != nil {
		return nil, err
	}

	transformed, err := s.engine.Obfuscate(ctx, code, level)
	if err != nil {
		log.Error().Err(err).Str("account_id", accountID.String()).Str("level", level).
			Msg("obfuscation engine call failed")
		if relErr := s.quota.Release(ctx, reservation); relErr != nil {
			log.Error().Err(relErr).Str("account_id", accountID.String()).
				Msg("failed to release reservation after engine failure")
		}
		metrics.ObfuscationsTotal.WithLabelValues("failure", string(reservation.Source)).Inc()
		return nil, NewBadGateway("engine_error", "Obfuscation engine failed")
	}

	if err := s.quota.Commit(ctx, reservation); err != nil {
		// The caller already has the result; losing the usage record is
		// preferable to charging for a response we cannot deliver twice.
		log.Error().Err(err).Str("account_id", accountID.String()).Msg("failed to commit usage")
	}

	metrics.ObfuscationsTotal.WithLabelValues("success", string(reservation.Source)).Inc()
	return &ObfuscateResult{Code: transformed, Level: level, Source: reservation.Source}, nil
}
