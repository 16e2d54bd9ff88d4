package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/homebox-bot/internal/jobs"
)

type mockSweeper struct{ mock.Mock }

func (m *mockSweeper) SweepOlderThan(age time.Duration) (int, error) {
	args := m.Called(age)
	return args.Int(0), args.Error(1)
}

type mockExpirer struct{ mock.Mock }

func (m *mockExpirer) ExpireIdle(ctx context.Context, ttl time.Duration) int {
	return m.Called(ttl).Int(0)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPhotoSweepHandler(t *testing.T) {
	sweeper := &mockSweeper{}
	sweeper.On("SweepOlderThan", 6*time.Hour).Return(3, nil).Once()

	task, err := jobs.NewPhotoSweepTask(6 * time.Hour)
	require.NoError(t, err)

	require.NoError(t, NewPhotoSweepHandler(sweeper, testLogger()).ProcessTask(context.Background(), task))
	sweeper.AssertExpectations(t)
}

func TestPhotoSweepHandlerPropagatesErrors(t *testing.T) {
	sweeper := &mockSweeper{}
	sweeper.On("SweepOlderThan", time.Hour).Return(0, errors.New("permission denied"))

	task, err := jobs.NewPhotoSweepTask(time.Hour)
	require.NoError(t, err)

	assert.Error(t, NewPhotoSweepHandler(sweeper, testLogger()).ProcessTask(context.Background(), task))
}

func TestSessionExpireHandler(t *testing.T) {
	expirer := &mockExpirer{}
	expirer.On("ExpireIdle", 30*time.Minute).Return(2).Once()

	task, err := jobs.NewSessionExpireTask(30 * time.Minute)
	require.NoError(t, err)

	require.NoError(t, NewSessionExpireHandler(expirer, testLogger()).ProcessTask(context.Background(), task))
	expirer.AssertExpectations(t)
}

func TestMalformedPayloadIsNotRetried(t *testing.T) {
	task := asynq.NewTask(jobs.TaskTypeSessionExpire, []byte("{"))
	err := NewSessionExpireHandler(&mockExpirer{}, testLogger()).ProcessTask(context.Background(), task)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}
