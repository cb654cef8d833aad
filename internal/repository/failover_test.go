package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/Miketheless/workshopneu/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) GetState(ctx context.Context, sessionID string) (*models.ViewState, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ViewState), args.Error(1)
}

func (m *mockRepo) SetState(ctx context.Context, state *models.ViewState) error {
	return m.Called(ctx, state).Error(0)
}

func (m *mockRepo) ClearState(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}

func (m *mockRepo) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

func TestFailoverStateRepository(t *testing.T) {
	primary := new(mockRepo)
	fallback := new(mockRepo)
	logger := zerolog.New(io.Discard)
	repo := NewFailoverStateRepository(primary, fallback, &logger)
	ctx := context.Background()

	t.Run("PrimarySuccess", func(t *testing.T) {
		state := models.DefaultViewState("a")
		primary.On("GetState", ctx, "a").Return(state, nil).Once()

		got, err := repo.GetState(ctx, "a")
		assert.NoError(t, err)
		assert.Equal(t, state, got)
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryFailFallbackSuccess", func(t *testing.T) {
		state := models.DefaultViewState("b")
		primary.On("SetState", ctx, state).Return(errors.New("conn refused")).Once()
		fallback.On("SetState", ctx, state).Return(nil).Once()

		assert.NoError(t, repo.SetState(ctx, state))
		assert.True(t, repo.down)
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("StaysOnFallbackWhileDown", func(t *testing.T) {
		fallback.On("CheckRateLimit", ctx, "k", 3, time.Minute).Return(true, nil).Once()

		allowed, err := repo.CheckRateLimit(ctx, "k", 3, time.Minute)
		assert.NoError(t, err)
		assert.True(t, allowed)
		primary.AssertNotCalled(t, "CheckRateLimit", ctx, "k", 3, time.Minute)
		fallback.AssertExpectations(t)
	})

	t.Run("Recovery", func(t *testing.T) {
		repo.lastCheck = time.Now().Add(-2 * recheckInterval)
		state := models.DefaultViewState("c")
		primary.On("GetState", ctx, "c").Return(state, nil).Once()

		got, err := repo.GetState(ctx, "c")
		assert.NoError(t, err)
		assert.Equal(t, state, got)
		assert.False(t, repo.down)
		primary.AssertExpectations(t)
	})

	t.Run("ClearReachesBoth", func(t *testing.T) {
		fallback.On("ClearState", ctx, "d").Return(nil).Once()
		primary.On("ClearState", ctx, "d").Return(nil).Once()

		assert.NoError(t, repo.ClearState(ctx, "d"))
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})
}
