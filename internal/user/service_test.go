package user

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/homebox-bot/internal/domain"
)

type repoMock struct {
	mock.Mock
}

func (m *repoMock) UpsertActivity(ctx context.Context, batch []domain.UserActivity) error {
	args := m.Called(ctx, batch)
	return args.Error(0)
}

func (m *repoMock) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *repoMock) CountActiveSince(ctx context.Context, since time.Time) (int64, error) {
	args := m.Called(ctx, since)
	return args.Get(0).(int64), args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestService_TouchKeepsLatest(t *testing.T) {
	repo := &repoMock{}
	svc := NewService(repo, testLogger())

	early := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)

	svc.Touch(domain.UserActivity{UserID: 1, Username: "new", SeenAt: late})
	svc.Touch(domain.UserActivity{UserID: 1, Username: "old", SeenAt: early})
	svc.Touch(domain.UserActivity{UserID: 2, SeenAt: early})
	svc.Touch(domain.UserActivity{UserID: 0})

	assert.Equal(t, 2, svc.Pending())

	repo.On("UpsertActivity", mock.Anything, mock.MatchedBy(func(batch []domain.UserActivity) bool {
		for _, a := range batch {
			if a.UserID == 1 && a.Username != "new" {
				return false
			}
		}
		return len(batch) == 2
	})).Return(nil).Once()

	require.NoError(t, svc.Flush(context.Background()))
	assert.Equal(t, 0, svc.Pending())
	repo.AssertExpectations(t)

	// nothing left to write
	require.NoError(t, svc.Flush(context.Background()))
	repo.AssertNumberOfCalls(t, "UpsertActivity", 1)
}

func TestService_FlushFailureRequeues(t *testing.T) {
	repo := &repoMock{}
	svc := NewService(repo, testLogger())

	svc.Touch(domain.UserActivity{UserID: 7, SeenAt: time.Now()})
	repo.On("UpsertActivity", mock.Anything, mock.Anything).Return(errors.New("db down")).Once()

	assert.Error(t, svc.Flush(context.Background()))
	assert.Equal(t, 1, svc.Pending())
}
