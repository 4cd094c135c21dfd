package usecase

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

	"github.com/naka-gawa/github-traffic/internal/domain"
	"github.com/naka-gawa/github-traffic/internal/storage"
)

// mockFetcher is a mock implementation of the gateway.TrafficFetcher interface.
type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) ListRepositories(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockFetcher) FetchDailyCounts(ctx context.Context, repo string, date domain.Date) (domain.Cell, error) {
	args := m.Called(ctx, repo, date)
	return args.Get(0).(domain.Cell), args.Error(1)
}

// mockStore is a mock implementation of the storage.DatasetStore interface.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) Load(ctx context.Context) (*domain.Dataset, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Dataset), args.Error(1)
}

func (m *mockStore) Save(ctx context.Context, ds *domain.Dataset) error {
	return m.Called(ctx, ds).Error(0)
}

func (m *mockStore) Close() error { return nil }

var collectNow = time.Date(2025, 6, 4, 12, 0, 0, 0, time.UTC)

func newTestCollector(fetcher *mockFetcher, store *mockStore, selector DateSelector, slept *[]time.Duration) *Collector {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCollector(fetcher, store, selector, DefaultRequestDelay, logger,
		WithClock(func() time.Time { return collectNow }),
		WithSleep(func(d time.Duration) { *slept = append(*slept, d) }),
	)
}

func TestCollector_Collect(t *testing.T) {
	scheduled := DateSelector{OffsetDays: ScheduledOffsetDays}
	target := domain.Date("2025-06-03")

	prior := domain.NewDataset()
	prior.Repositories = []string{"repoA", "repoB"}
	prior.Dates = []domain.Date{"2025-06-02"}
	prior.Entries["repoA"] = map[domain.Date]domain.Cell{"2025-06-02": cell(5, 2)}
	prior.Entries["repoB"] = map[domain.Date]domain.Cell{"2025-06-02": cell(1, 0)}
	prior.Aggregate = map[domain.Date]domain.Cell{"2025-06-02": cell(6, 2)}

	t.Run("happy path - appends the target date", func(t *testing.T) {
		fetcher, store := new(mockFetcher), new(mockStore)
		store.On("Load", mock.Anything).Return(prior, nil)
		fetcher.On("ListRepositories", mock.Anything).Return([]string{"repoA", "repoB"}, nil)
		fetcher.On("FetchDailyCounts", mock.Anything, "repoA", target).Return(cell(3, 1), nil)
		fetcher.On("FetchDailyCounts", mock.Anything, "repoB", target).Return(cell(2, 2), nil)
		store.On("Save", mock.Anything, mock.MatchedBy(func(ds *domain.Dataset) bool {
			return len(ds.Dates) == 2 && ds.Aggregate[target] == cell(5, 3)
		})).Return(nil)

		var slept []time.Duration
		report, err := newTestCollector(fetcher, store, scheduled, &slept).Collect(context.Background())
		require.NoError(t, err)

		assert.False(t, report.FirstRun)
		assert.Equal(t, []domain.Date{target}, report.Targets)
		assert.Empty(t, report.Failures)
		assert.Equal(t, cell(8, 3), report.Dataset.RowTotal("repoA"))
		assert.Equal(t, 5.0, report.Summary.Views.Sum)
		assert.Equal(t, 2.0, report.Summary.Clones.Max)
		assert.Equal(t, []time.Duration{DefaultRequestDelay, DefaultRequestDelay}, slept)
		fetcher.AssertExpectations(t)
		store.AssertExpectations(t)
	})

	t.Run("partial failure - failing repository gets a zero cell", func(t *testing.T) {
		fetcher, store := new(mockFetcher), new(mockStore)
		store.On("Load", mock.Anything).Return(prior, nil)
		fetcher.On("ListRepositories", mock.Anything).Return([]string{"repoA", "repoB"}, nil)
		fetcher.On("FetchDailyCounts", mock.Anything, "repoA", target).Return(domain.Cell{}, errors.New("rate limited"))
		fetcher.On("FetchDailyCounts", mock.Anything, "repoB", target).Return(cell(4, 1), nil)
		store.On("Save", mock.Anything, mock.Anything).Return(nil)

		var slept []time.Duration
		report, err := newTestCollector(fetcher, store, scheduled, &slept).Collect(context.Background())
		require.NoError(t, err)

		require.Len(t, report.Failures, 1)
		assert.Equal(t, "repoA", report.Failures[0].Repository)
		assert.Equal(t, cell(0, 0), report.Dataset.Cell("repoA", target))
		assert.Equal(t, cell(4, 1), report.Dataset.Cell("repoB", target))
		assert.Equal(t, cell(5, 2), report.Dataset.Cell("repoA", "2025-06-02"))
		store.AssertCalled(t, "Save", mock.Anything, report.Dataset)
	})

	t.Run("every fetch fails - zero-filled dataset is still saved", func(t *testing.T) {
		fetcher, store := new(mockFetcher), new(mockStore)
		store.On("Load", mock.Anything).Return(nil, storage.ErrDatasetNotFound)
		fetcher.On("ListRepositories", mock.Anything).Return([]string{"repoA"}, nil)
		fetcher.On("FetchDailyCounts", mock.Anything, "repoA", target).Return(domain.Cell{}, errors.New("boom"))
		store.On("Save", mock.Anything, mock.Anything).Return(nil)

		var slept []time.Duration
		report, err := newTestCollector(fetcher, store, scheduled, &slept).Collect(context.Background())
		require.NoError(t, err)

		assert.True(t, report.FirstRun)
		assert.Equal(t, []domain.Date{target}, report.Dataset.Dates)
		assert.Equal(t, cell(0, 0), report.Dataset.Aggregate[target])
		store.AssertNumberOfCalls(t, "Save", 1)
	})

	t.Run("first run with backfill - fetches every backfill date", func(t *testing.T) {
		fetcher, store := new(mockFetcher), new(mockStore)
		store.On("Load", mock.Anything).Return(nil, storage.ErrDatasetNotFound)
		fetcher.On("ListRepositories", mock.Anything).Return([]string{"repoA"}, nil)
		fetcher.On("FetchDailyCounts", mock.Anything, "repoA", mock.Anything).Return(cell(1, 0), nil)
		store.On("Save", mock.Anything, mock.Anything).Return(nil)

		selector := DateSelector{OffsetDays: ManualOffsetDays, Backfill: true, BackfillDays: DefaultBackfillDays, BackfillLagDays: DefaultBackfillLag}
		var slept []time.Duration
		report, err := newTestCollector(fetcher, store, selector, &slept).Collect(context.Background())
		require.NoError(t, err)

		assert.Len(t, report.Dataset.Dates, DefaultBackfillDays)
		assert.Equal(t, cell(14, 0), report.Dataset.RowTotal("repoA"))
		fetcher.AssertNumberOfCalls(t, "FetchDailyCounts", DefaultBackfillDays)
		// One pause per repository, not per date.
		assert.Len(t, slept, 1)
	})

	t.Run("already collected - no fetches, dataset rewritten", func(t *testing.T) {
		fetcher, store := new(mockFetcher), new(mockStore)
		store.On("Load", mock.Anything).Return(prior, nil)
		fetcher.On("ListRepositories", mock.Anything).Return([]string{"repoA", "repoB"}, nil)
		store.On("Save", mock.Anything, mock.Anything).Return(nil)

		var slept []time.Duration
		selector := DateSelector{OffsetDays: 2}
		report, err := newTestCollector(fetcher, store, selector, &slept).Collect(context.Background())
		require.NoError(t, err)

		assert.Empty(t, report.Targets)
		assert.Equal(t, prior.Dates, report.Dataset.Dates)
		fetcher.AssertNotCalled(t, "FetchDailyCounts", mock.Anything, mock.Anything, mock.Anything)
		assert.Empty(t, slept)
	})

	t.Run("error case - prior dataset unreadable", func(t *testing.T) {
		fetcher, store := new(mockFetcher), new(mockStore)
		store.On("Load", mock.Anything).Return(nil, storage.ErrMalformedTable)
		fetcher.On("ListRepositories", mock.Anything).Return([]string{"repoA"}, nil).Maybe()

		var slept []time.Duration
		report, err := newTestCollector(fetcher, store, scheduled, &slept).Collect(context.Background())
		assert.ErrorIs(t, err, storage.ErrMalformedTable)
		assert.Nil(t, report)
		store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("error case - save fails", func(t *testing.T) {
		fetcher, store := new(mockFetcher), new(mockStore)
		store.On("Load", mock.Anything).Return(prior, nil)
		fetcher.On("ListRepositories", mock.Anything).Return([]string{"repoA"}, nil)
		fetcher.On("FetchDailyCounts", mock.Anything, "repoA", target).Return(cell(1, 1), nil)
		store.On("Save", mock.Anything, mock.Anything).Return(errors.New("disk full"))

		var slept []time.Duration
		report, err := newTestCollector(fetcher, store, scheduled, &slept).Collect(context.Background())
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to save dataset")
		assert.Nil(t, report)
	})
}
