package retention

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

	"github.com/magabrotheeeer/fonoapp/internal/models"
	"github.com/magabrotheeeer/fonoapp/internal/storage/repository"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) UpsertRetentionPolicies(ctx context.Context, p []models.DataRetentionPolicy) error {
	return m.Called(ctx, p).Error(0)
}

func (m *RepoMock) ApplyRetention(ctx context.Context, category string, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, category, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *RepoMock) CountRetention(ctx context.Context, category string, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, category, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *RepoMock) InsertRetentionLog(ctx context.Context, entry *models.DataRetentionLog) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *RepoMock) ListRetentionLogs(ctx context.Context, limit int) ([]*models.DataRetentionLog, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.DataRetentionLog), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

var now = time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC)

func TestPolicies_AllCategoriesSupported(t *testing.T) {
	for _, p := range Policies() {
		assert.True(t, repository.SupportsRetentionCategory(p.DataCategory), p.DataCategory)
		assert.Positive(t, p.RetentionDays)
		assert.Contains(t, []string{models.RetentionDelete, models.RetentionAnonymize}, p.Action)
	}
}

func TestService_Apply(t *testing.T) {
	repo := new(RepoMock)
	for _, p := range Policies() {
		n := int64(3)
		var err error
		if p.DataCategory == repository.CategoryInactiveAccounts {
			n, err = 0, errors.New("lock timeout")
		}
		repo.On("ApplyRetention", mock.Anything, p.DataCategory, p.Cutoff(now)).Return(n, err).Once()
	}
	repo.On("InsertRetentionLog", mock.Anything, mock.Anything).Return(nil)

	summary, err := New(repo, newNoopLogger()).Apply(context.Background(), now, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inactive_accounts: lock timeout")
	require.NotNil(t, summary)
	require.Len(t, summary.Results, len(Policies()))

	for _, r := range summary.Results {
		if r.Policy.DataCategory == repository.CategoryInactiveAccounts {
			assert.Equal(t, models.RetentionStatusFailed, r.Status)
			assert.Equal(t, "lock timeout", r.Error)
			continue
		}
		assert.Equal(t, models.RetentionStatusSuccess, r.Status)
		assert.Equal(t, int64(3), r.Records)
	}

	repo.AssertNumberOfCalls(t, "InsertRetentionLog", len(Policies()))
	repo.AssertCalled(t, "InsertRetentionLog", mock.Anything, mock.MatchedBy(func(e *models.DataRetentionLog) bool {
		return e.DataCategory == repository.CategoryInactiveAccounts && e.Status == models.RetentionStatusFailed &&
			e.ErrorMessage == "lock timeout"
	}))
	repo.AssertExpectations(t)
}

func TestService_Apply_DryRun(t *testing.T) {
	repo := new(RepoMock)
	repo.On("CountRetention", mock.Anything, mock.Anything, mock.Anything).Return(int64(7), nil)

	summary, err := New(repo, newNoopLogger()).Apply(context.Background(), now, true)
	require.NoError(t, err)
	assert.True(t, summary.DryRun)
	for _, r := range summary.Results {
		assert.Equal(t, models.RetentionStatusDryRun, r.Status)
		assert.Equal(t, int64(7), r.Records)
	}
	repo.AssertNotCalled(t, "ApplyRetention", mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "InsertRetentionLog", mock.Anything, mock.Anything)
}

func TestService_Apply_CanceledContext(t *testing.T) {
	repo := new(RepoMock)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := New(repo, newNoopLogger()).Apply(ctx, now, false)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, summary.Results)
}

func TestService_SyncAndLogs(t *testing.T) {
	ctx := context.Background()
	repo := new(RepoMock)
	repo.On("UpsertRetentionPolicies", ctx, Policies()).Return(nil)
	repo.On("ListRetentionLogs", ctx, 50).Return([]*models.DataRetentionLog{{ID: 1}}, nil)
	svc := New(repo, newNoopLogger())

	require.NoError(t, svc.Sync(ctx))
	logs, err := svc.Logs(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
	repo.AssertExpectations(t)
}
