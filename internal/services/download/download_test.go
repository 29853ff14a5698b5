package download

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/fonoapp/internal/models"
)

// fakeRepo хранит квоту в памяти и повторяет условное увеличение счётчика из хранилища.
type fakeRepo struct {
	mu      sync.Mutex
	limits  map[string]*models.DownloadLimit
	history []models.DownloadHistory
	getErr  error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{limits: map[string]*models.DownloadLimit{}}
}

func (f *fakeRepo) GetUser(_ context.Context, userUID string) (*models.User, error) {
	return &models.User{UID: userUID, Email: "ana@example.com", FirstName: "Ana"}, nil
}

func (f *fakeRepo) GetDownloadLimit(_ context.Context, userUID string) (*models.DownloadLimit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	dl, ok := f.limits[userUID]
	if !ok {
		return nil, models.ErrNotFound
	}
	c := *dl
	return &c, nil
}

func (f *fakeRepo) CreateDownloadLimit(_ context.Context, userUID string, now time.Time) (*models.DownloadLimit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.limits[userUID]; !ok {
		f.limits[userUID] = &models.DownloadLimit{UserUID: userUID, LastReset: now, UpdatedAt: now}
	}
	c := *f.limits[userUID]
	return &c, nil
}

func (f *fakeRepo) ResetDownloadLimit(_ context.Context, userUID string, now, staleBefore time.Time) (*models.DownloadLimit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	dl, ok := f.limits[userUID]
	if !ok || !dl.LastReset.Before(staleBefore) {
		return nil, nil
	}
	dl.DownloadCount = 0
	dl.LastReset = now
	c := *dl
	return &c, nil
}

func (f *fakeRepo) RecordDownload(_ context.Context, entry models.DownloadHistory, limit int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	dl := f.limits[entry.UserUID]
	if dl == nil || dl.DownloadCount >= limit {
		return 0, models.ErrDownloadLimitReached
	}
	dl.DownloadCount++
	f.history = append(f.history, entry)
	return dl.DownloadCount, nil
}

func (f *fakeRepo) InsertDownloadHistory(_ context.Context, entry models.DownloadHistory) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = append(f.history, entry)
	return int64(len(f.history)), nil
}

func (f *fakeRepo) ListDownloadHistory(_ context.Context, _ string, _, _ int) ([]*models.DownloadHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.DownloadHistory, 0, len(f.history))
	for i := range f.history {
		out = append(out, &f.history[i])
	}
	return out, nil
}

type PremiumMock struct{ mock.Mock }

func (m *PremiumMock) IsPremium(ctx context.Context, userUID string) (bool, error) {
	args := m.Called(ctx, userUID)
	return args.Bool(0), args.Error(1)
}

type PublisherMock struct{ mock.Mock }

func (m *PublisherMock) Publish(ctx context.Context, n models.Notification) error {
	return m.Called(ctx, n).Error(0)
}

type plainHasher struct{}

func (plainHasher) Hash(v string) string { return "h(" + v + ")" }

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	svc     *Service
	repo    *fakeRepo
	premium *PremiumMock
	pub     *PublisherMock
	clock   time.Time
}

func newFixture(premium bool) *fixture {
	f := &fixture{
		repo:    newFakeRepo(),
		premium: new(PremiumMock),
		pub:     new(PublisherMock),
		clock:   time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	f.premium.On("IsPremium", mock.Anything, "uid-1").Return(premium, nil)
	f.pub.On("Publish", mock.Anything, mock.Anything).Return(nil)
	f.svc = New(f.repo, f.premium, f.pub, plainHasher{}, newNoopLogger(), 5, 30*24*time.Hour)
	f.svc.now = func() time.Time { return f.clock }
	return f
}

func TestService_Check_CreatesCounter(t *testing.T) {
	f := newFixture(false)

	st, err := f.svc.Check(context.Background(), "uid-1")
	require.NoError(t, err)
	assert.True(t, st.CanDownload)
	assert.Equal(t, 5, st.Remaining)
	assert.Equal(t, 0, st.Used)
	require.NotNil(t, st.ResetAt)
	assert.Equal(t, f.clock.Add(30*24*time.Hour), *st.ResetAt)
}

func TestService_Record_DecrementsByOne(t *testing.T) {
	f := newFixture(false)
	ctx := context.Background()
	req := models.DownloadRequest{ExerciseID: "ex-1", FileName: "fonemas.pdf"}

	for want := 4; want >= 0; want-- {
		before, err := f.svc.Check(ctx, "uid-1")
		require.NoError(t, err)

		st, err := f.svc.Record(ctx, "uid-1", req, "203.0.113.7")
		require.NoError(t, err)
		assert.Equal(t, before.Remaining-1, st.Remaining)
		assert.Equal(t, want, st.Remaining)
	}

	st, err := f.svc.Record(ctx, "uid-1", req, "203.0.113.7")
	assert.ErrorIs(t, err, models.ErrDownloadLimitReached)
	require.NotNil(t, st)
	assert.False(t, st.CanDownload)
	assert.Equal(t, 0, st.Remaining)

	assert.Len(t, f.repo.history, 5)
	assert.Equal(t, "h(203.0.113.7)", f.repo.history[0].IPHash)

	f.pub.AssertCalled(t, "Publish", mock.Anything, mock.MatchedBy(func(n models.Notification) bool {
		return n.Kind == models.NotificationDownloadWarning && n.Data["remaining"] == "1"
	}))
	f.pub.AssertCalled(t, "Publish", mock.Anything, mock.MatchedBy(func(n models.Notification) bool {
		return n.Kind == models.NotificationDownloadLimitReached && n.Email == "ana@example.com"
	}))
	f.pub.AssertNumberOfCalls(t, "Publish", 2)
}

func TestService_ResetAfterPeriod(t *testing.T) {
	f := newFixture(false)
	ctx := context.Background()
	req := models.DownloadRequest{ExerciseID: "ex-1", FileName: "f.pdf"}

	for range 5 {
		_, err := f.svc.Record(ctx, "uid-1", req, "")
		require.NoError(t, err)
	}

	// ровно 30 дней: окно ещё не истекло
	f.clock = f.clock.Add(30 * 24 * time.Hour)
	st, err := f.svc.Check(ctx, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, 0, st.Remaining)

	f.clock = f.clock.Add(time.Minute)
	st, err = f.svc.Check(ctx, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, 5, st.Remaining)
	assert.True(t, st.CanDownload)
}

func TestService_Premium(t *testing.T) {
	f := newFixture(true)
	ctx := context.Background()

	st, err := f.svc.Check(ctx, "uid-1")
	require.NoError(t, err)
	assert.True(t, st.Unlimited)
	assert.True(t, st.CanDownload)

	for range 10 {
		st, err = f.svc.Record(ctx, "uid-1", models.DownloadRequest{ExerciseID: "ex", FileName: "f.pdf"}, "")
		require.NoError(t, err)
		assert.True(t, st.Unlimited)
	}
	assert.Len(t, f.repo.history, 10)
	assert.Empty(t, f.repo.limits, "premium downloads do not touch the counter")
	f.pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestService_ConcurrentRecordsRespectLimit(t *testing.T) {
	f := newFixture(false)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Record(ctx, "uid-1", models.DownloadRequest{ExerciseID: "ex", FileName: "f"}, ""); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 5, ok)
}

func TestService_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("premium check fails", func(t *testing.T) {
		premium := new(PremiumMock)
		premium.On("IsPremium", ctx, "uid-1").Return(false, errors.New("redis and db down"))
		svc := New(newFakeRepo(), premium, new(PublisherMock), plainHasher{}, newNoopLogger(), 0, 0)

		_, err := svc.Check(ctx, "uid-1")
		assert.Error(t, err)
	})

	t.Run("storage fails", func(t *testing.T) {
		f := newFixture(false)
		f.repo.getErr = errors.New("connection reset")

		_, err := f.svc.Record(ctx, "uid-1", models.DownloadRequest{ExerciseID: "ex", FileName: "f"}, "")
		assert.ErrorContains(t, err, "connection reset")
	})

	t.Run("publish failure does not fail the download", func(t *testing.T) {
		f := newFixture(false)
		f.pub = new(PublisherMock)
		f.pub.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down"))
		f.svc.pub = f.pub

		for range 5 {
			_, err := f.svc.Record(ctx, "uid-1", models.DownloadRequest{ExerciseID: "ex", FileName: "f"}, "")
			require.NoError(t, err)
		}
	})
}
