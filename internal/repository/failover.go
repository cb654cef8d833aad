package repository

import (
	"context"
	"sync"
	"time"

	"github.com/Miketheless/workshopneu/internal/domain"
	"github.com/Miketheless/workshopneu/internal/models"

	"github.com/rs/zerolog"
)

const recheckInterval = time.Minute

// FailoverStateRepository uses primary until it errors, then serves from
// fallback and retries primary once per recheckInterval.
type FailoverStateRepository struct {
	primary  domain.StateRepository
	fallback domain.StateRepository
	logger   *zerolog.Logger

	mu        sync.Mutex
	down      bool
	lastCheck time.Time
}

func NewFailoverStateRepository(primary, fallback domain.StateRepository, logger *zerolog.Logger) *FailoverStateRepository {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &FailoverStateRepository{primary: primary, fallback: fallback, logger: logger}
}

func (r *FailoverStateRepository) usePrimary() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.down {
		return true
	}
	if time.Since(r.lastCheck) > recheckInterval {
		r.lastCheck = time.Now()
		return true
	}
	return false
}

func (r *FailoverStateRepository) report(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		if r.down {
			r.logger.Info().Str("op", op).Msg("Primary state repository recovered")
		}
		r.down = false
		return
	}
	if !r.down {
		r.logger.Error().Err(err).Str("op", op).Msg("Primary state repository failed, falling back to memory")
	}
	r.down = true
	r.lastCheck = time.Now()
}

func (r *FailoverStateRepository) GetState(ctx context.Context, sessionID string) (*models.ViewState, error) {
	if r.usePrimary() {
		state, err := r.primary.GetState(ctx, sessionID)
		r.report("get", err)
		if err == nil {
			return state, nil
		}
	}
	return r.fallback.GetState(ctx, sessionID)
}

func (r *FailoverStateRepository) SetState(ctx context.Context, state *models.ViewState) error {
	if r.usePrimary() {
		err := r.primary.SetState(ctx, state)
		r.report("set", err)
		if err == nil {
			return nil
		}
	}
	return r.fallback.SetState(ctx, state)
}

func (r *FailoverStateRepository) ClearState(ctx context.Context, sessionID string) error {
	_ = r.fallback.ClearState(ctx, sessionID)
	if r.usePrimary() {
		err := r.primary.ClearState(ctx, sessionID)
		r.report("clear", err)
		return nil
	}
	return nil
}

func (r *FailoverStateRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		r.report("rate_limit", err)
		if err == nil {
			return allowed, nil
		}
	}
	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}
