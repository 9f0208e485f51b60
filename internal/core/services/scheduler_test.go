package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Qingzhee/rag-engine/internal/core/domain"
)

// mockIngestion implements driving.IngestionService for scheduler testing.
type mockIngestion struct {
	mu         sync.Mutex
	calls      int
	reconciles int
	stats      domain.IngestionStats
	err        error
	opts       domain.IngestOptions
}

func (m *mockIngestion) Ingest(_ context.Context, opts domain.IngestOptions) (domain.IngestionStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.opts = opts
	return m.stats, m.err
}

func (m *mockIngestion) Reconcile(_ context.Context, _ string, _ []string, dryRun bool) (domain.ReconcileStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconciles++
	return domain.ReconcileStats{DryRun: dryRun}, nil
}

func (m *mockIngestion) CollectionInfo(_ context.Context) (domain.CollectionInfo, error) {
	return domain.CollectionInfo{}, nil
}

func countingTask(calls *int, mu *sync.Mutex, err error) TaskFunc {
	return func(_ context.Context) (int, error) {
		mu.Lock()
		defer mu.Unlock()
		*calls++
		return 2, err
	}
}

func TestScheduler_AddJob(t *testing.T) {
	s := NewScheduler()
	var mu sync.Mutex
	var calls int

	t.Run("accepts cron and descriptors", func(t *testing.T) {
		require.NoError(t, s.AddJob("a", "A", "*/5 * * * *", countingTask(&calls, &mu, nil)))
		require.NoError(t, s.AddJob("b", "B", "@every 1h", countingTask(&calls, &mu, nil)))
	})

	t.Run("rejects bad spec", func(t *testing.T) {
		err := s.AddJob("bad", "Bad", "every hour", countingTask(&calls, &mu, nil))
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("rejects duplicate id", func(t *testing.T) {
		err := s.AddJob("a", "A", "@hourly", countingTask(&calls, &mu, nil))
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("rejects nil function", func(t *testing.T) {
		err := s.AddJob("nil", "Nil", "@hourly", nil)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	tasks := s.Tasks()
	require.Len(t, tasks, 2)
	assert.Equal(t, "a", tasks[0].ID)
	assert.Equal(t, "@every 1h", tasks[1].Spec)
	assert.True(t, tasks[0].NextRun.IsZero(), "next run is unknown before start")
}

func TestScheduler_RunNow(t *testing.T) {
	s := NewScheduler()
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	clock := start
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	var mu sync.Mutex
	var calls int
	require.NoError(t, s.AddJob("ok", "OK", "@hourly", countingTask(&calls, &mu, nil)))
	require.NoError(t, s.AddJob("fail", "Fail", "@hourly", countingTask(&calls, &mu, errors.New("boom"))))

	result, err := s.RunNow(context.Background(), "ok")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.ItemsProcessed)
	assert.Equal(t, time.Second, result.Duration())

	result, err = s.RunNow(context.Background(), "fail")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "boom", result.Error)

	tasks := s.Tasks()
	assert.Empty(t, tasks[0].LastError)
	assert.False(t, tasks[0].LastSuccess.IsZero())
	assert.Equal(t, "boom", tasks[1].LastError)
	assert.True(t, tasks[1].LastSuccess.IsZero())

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 2, calls)
}

func TestScheduler_RunNowWhileBusy(t *testing.T) {
	s := NewScheduler()
	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, s.AddJob("slow", "Slow", "@hourly", func(_ context.Context) (int, error) {
		close(started)
		<-release
		return 0, nil
	}))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.RunNow(context.Background(), "slow")
	}()
	<-started

	_, err := s.RunNow(context.Background(), "slow")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	s.tick(s.jobs["slow"])
	assert.Equal(t, 1, s.Tasks()[0].Skipped)

	close(release)
	<-done
}

func TestScheduler_History(t *testing.T) {
	s := NewScheduler()
	n := 0
	require.NoError(t, s.AddJob("job", "Job", "@hourly", func(_ context.Context) (int, error) {
		n++
		return n, nil
	}))

	for i := 0; i < historyLimit+5; i++ {
		_, err := s.RunNow(context.Background(), "job")
		require.NoError(t, err)
	}

	history := s.History("job")
	require.Len(t, history, historyLimit)
	assert.Equal(t, historyLimit+5, history[0].ItemsProcessed, "most recent first")
	assert.Empty(t, s.History("other"))
}

func TestScheduler_StartStop(t *testing.T) {
	s := NewScheduler()
	require.NoError(t, s.AddJob("job", "Job", "@hourly", func(_ context.Context) (int, error) {
		return 0, nil
	}))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Start(context.Background())
	}()

	require.Eventually(t, func() bool {
		return !s.Tasks()[0].NextRun.IsZero()
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, s.Stop())
	assert.NoError(t, <-errCh)

	// Stop twice is safe
	require.NoError(t, s.Stop())
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	s := NewScheduler()
	require.NoError(t, s.Stop())
}

func TestScheduler_ContextCancel(t *testing.T) {
	s := NewScheduler()
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Start(ctx)
	}()

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop on cancel")
	}
	require.NoError(t, s.Stop())
}

func TestScheduler_RunsOnSchedule(t *testing.T) {
	s := NewScheduler()
	ran := make(chan struct{}, 4)
	require.NoError(t, s.AddJob("fast", "Fast", "@every 1s", func(_ context.Context) (int, error) {
		ran <- struct{}{}
		return 1, nil
	}))

	go func() { _ = s.Start(context.Background()) }()
	defer func() { _ = s.Stop() }()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("task did not run")
	}
}

func TestIngestTask(t *testing.T) {
	t.Run("counts new and updated files", func(t *testing.T) {
		svc := &mockIngestion{stats: domain.IngestionStats{NewFiles: 2, UpdatedFiles: 1, SkippedFiles: 5, Errors: []string{"bad.pdf: broken"}}}
		task := IngestTask(svc, domain.IngestOptions{Folder: "/docs"})

		items, err := task(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 3, items)
		assert.Equal(t, "/docs", svc.opts.Folder)
	})

	t.Run("propagates failure", func(t *testing.T) {
		svc := &mockIngestion{err: errors.New("embed failed")}
		_, err := IngestTask(svc, domain.IngestOptions{})(context.Background())
		assert.EqualError(t, err, "embed failed")
	})
}
