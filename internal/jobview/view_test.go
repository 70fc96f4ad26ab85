package jobview

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/kiranshivaraju/pdftranslate/internal/cache"
	"github.com/kiranshivaraju/pdftranslate/internal/jobsapi"
	"github.com/kiranshivaraju/pdftranslate/internal/jobsapi/mock"
	"github.com/kiranshivaraju/pdftranslate/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testInterval = 5 * time.Millisecond

func waitDone(t *testing.T, v *View) State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s, err := v.Wait(ctx)
	require.NoError(t, err)
	return s
}

func TestPoll_SucceededFetchesMarkdownOnce(t *testing.T) {
	mc := &mock.Client{
		GetJobFunc: mock.StatusSequence("",
			models.JobStatusQueued, models.JobStatusRunning, models.JobStatusSucceeded),
		GetResultMarkdownFunc: func(_ context.Context, jobID string) (string, error) {
			return "# Hello from " + jobID, nil
		},
	}
	v := NewView(mc, Options{Interval: testInterval})

	v.Mount(context.Background(), "job-1")
	s := waitDone(t, v)

	assert.Equal(t, 3, mc.Calls("GetJob"))
	assert.Equal(t, 1, mc.Calls("GetResultMarkdown"))
	assert.Equal(t, "# Hello from job-1", s.Markdown)
	assert.Equal(t, "succeeded", s.StatusLabel())
	assert.Equal(t, ClassOK, s.StatusClass())
	assert.Equal(t, 100, s.Percent())
	assert.Empty(t, s.Error)
	assert.True(t, s.Succeeded())

	// No further polling after the terminal status.
	time.Sleep(5 * testInterval)
	assert.Equal(t, 3, mc.Calls("GetJob"))
}

func TestPoll_FailedStopsWithoutFetchingMarkdown(t *testing.T) {
	mc := &mock.Client{
		GetJobFunc: mock.StatusSequence("OCR crashed", models.JobStatusRunning, models.JobStatusFailed),
	}
	v := NewView(mc, Options{Interval: testInterval})

	v.Mount(context.Background(), "job-2")
	s := waitDone(t, v)

	assert.Equal(t, 2, mc.Calls("GetJob"))
	assert.Zero(t, mc.Calls("GetResultMarkdown"))
	assert.Equal(t, "failed", s.StatusLabel())
	assert.Equal(t, ClassFailed, s.StatusClass())
	assert.Equal(t, "OCR crashed", s.JobError())
	assert.Empty(t, s.Markdown)
	assert.False(t, s.Succeeded())
}

func TestPoll_FetchErrorStopsPolling(t *testing.T) {
	mc := &mock.Client{
		GetJobFunc: func(context.Context, string) (*models.JobMeta, error) {
			return nil, &jobsapi.APIError{StatusCode: 404, Body: "job not found"}
		},
	}
	v := NewView(mc, Options{Interval: testInterval})

	v.Mount(context.Background(), "missing")
	s := waitDone(t, v)

	assert.Equal(t, "API 404: job not found", s.Error)
	assert.Nil(t, s.Job)
	assert.Equal(t, "loading", s.StatusLabel())

	time.Sleep(5 * testInterval)
	assert.Equal(t, 1, mc.Calls("GetJob"))
}

func TestPoll_MarkdownErrorIsRecorded(t *testing.T) {
	mc := &mock.Client{
		GetJobFunc: mock.StatusSequence("", models.JobStatusSucceeded),
		GetResultMarkdownFunc: func(context.Context, string) (string, error) {
			return "", &jobsapi.APIError{StatusCode: 500, Body: "internal error"}
		},
	}
	v := NewView(mc, Options{Interval: testInterval})

	v.Mount(context.Background(), "job-3")
	s := waitDone(t, v)

	assert.Equal(t, "API 500: internal error", s.Error)
	assert.Empty(t, s.Markdown)
	assert.False(t, s.Succeeded())
}

func TestPoll_NonTerminalKeepsPolling(t *testing.T) {
	mc := &mock.Client{GetJobFunc: mock.StatusSequence("", models.JobStatusRunning)}
	v := NewView(mc, Options{Interval: testInterval})

	v.Mount(context.Background(), "slow")
	defer v.Unmount()

	assert.Eventually(t, func() bool { return mc.Calls("GetJob") >= 4 }, time.Second, testInterval)
	s := v.State()
	assert.False(t, s.Done)
	assert.Equal(t, ClassPending, s.StatusClass())
	assert.Equal(t, 50, s.Percent())
}

func TestUnmount_StopsPolling(t *testing.T) {
	mc := &mock.Client{GetJobFunc: mock.StatusSequence("", models.JobStatusQueued)}
	v := NewView(mc, Options{Interval: testInterval})

	v.Mount(context.Background(), "job-4")
	require.Eventually(t, func() bool { return mc.Calls("GetJob") >= 2 }, time.Second, testInterval)

	v.Unmount()
	time.Sleep(2 * testInterval)
	calls := mc.Calls("GetJob")
	time.Sleep(5 * testInterval)

	assert.Equal(t, calls, mc.Calls("GetJob"))
	assert.Equal(t, State{}, v.State())
}

// blockingClient reports "succeeded" for job "A" only once released, ignoring
// cancellation, so the result arrives after the view has moved on.
func blockingClient(started, release chan struct{}) *mock.Client {
	return &mock.Client{
		GetJobFunc: func(_ context.Context, jobID string) (*models.JobMeta, error) {
			if jobID == "A" {
				close(started)
				<-release
				return &models.JobMeta{JobID: "A", Status: models.JobStatusSucceeded, Progress: 1}, nil
			}
			return &models.JobMeta{JobID: jobID, Status: models.JobStatusQueued}, nil
		},
		GetResultMarkdownFunc: func(context.Context, string) (string, error) {
			return "# stale", nil
		},
	}
}

func TestUnmount_DiscardsInFlightResult(t *testing.T) {
	started, release := make(chan struct{}), make(chan struct{})
	mc := blockingClient(started, release)
	v := NewView(mc, Options{Interval: testInterval})

	v.Mount(context.Background(), "A")
	<-started
	v.Unmount()
	close(release)

	assert.Never(t, func() bool {
		return v.State().Job != nil || mc.Calls("GetResultMarkdown") > 0
	}, 20*testInterval, testInterval)
}

func TestMount_NewJobDiscardsPreviousInFlightResult(t *testing.T) {
	started, release := make(chan struct{}), make(chan struct{})
	mc := blockingClient(started, release)
	v := NewView(mc, Options{Interval: testInterval})

	v.Mount(context.Background(), "A")
	<-started
	v.Mount(context.Background(), "B")
	close(release)

	assert.Never(t, func() bool {
		s := v.State()
		return s.JobID != "B" || s.Markdown != "" || (s.Job != nil && s.Job.JobID != "B")
	}, 20*testInterval, testInterval)
	assert.Zero(t, mc.Calls("GetResultMarkdown"))
	v.Unmount()
}

func TestMount_PassesContextCancellationToFetch(t *testing.T) {
	cancelled := make(chan struct{})
	mc := &mock.Client{
		GetJobFunc: func(ctx context.Context, _ string) (*models.JobMeta, error) {
			<-ctx.Done()
			close(cancelled)
			return nil, ctx.Err()
		},
	}
	v := NewView(mc, Options{Interval: testInterval})

	v.Mount(context.Background(), "job-5")
	require.Eventually(t, func() bool { return mc.Calls("GetJob") == 1 }, time.Second, time.Millisecond)
	v.Unmount()

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("in-flight fetch was not cancelled")
	}
	assert.Empty(t, v.State().Error)
}

func TestWait(t *testing.T) {
	t.Run("not mounted", func(t *testing.T) {
		v := NewView(&mock.Client{}, Options{})
		_, err := v.Wait(context.Background())
		assert.ErrorIs(t, err, ErrNotMounted)
	})

	t.Run("context deadline", func(t *testing.T) {
		v := NewView(&mock.Client{}, Options{Interval: time.Hour})
		v.Mount(context.Background(), "job-6")
		defer v.Unmount()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		s, err := v.Wait(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, "job-6", s.JobID)
	})

	t.Run("superseded", func(t *testing.T) {
		v := NewView(&mock.Client{}, Options{Interval: time.Hour})
		v.Mount(context.Background(), "job-7")

		errCh := make(chan error, 1)
		go func() {
			_, err := v.Wait(context.Background())
			errCh <- err
		}()
		time.Sleep(10 * time.Millisecond)
		v.Mount(context.Background(), "job-8")
		defer v.Unmount()

		select {
		case err := <-errCh:
			assert.True(t, errors.Is(err, ErrSuperseded))
		case <-time.After(time.Second):
			t.Fatal("Wait did not return")
		}
	})
}

func TestSubscribe_ReceivesSnapshots(t *testing.T) {
	mc := &mock.Client{
		GetJobFunc: mock.StatusSequence("", models.JobStatusRunning, models.JobStatusSucceeded),
		GetResultMarkdownFunc: func(context.Context, string) (string, error) {
			return "done", nil
		},
	}
	v := NewView(mc, Options{Interval: testInterval})
	updates, stop := v.Subscribe()
	defer stop()

	v.Mount(context.Background(), "job-9")

	var last State
	timeout := time.After(2 * time.Second)
	for !last.Done {
		select {
		case last = <-updates:
			assert.Equal(t, "job-9", last.JobID)
		case <-timeout:
			t.Fatal("no terminal snapshot received")
		}
	}
	assert.Equal(t, "done", last.Markdown)
}

func TestResultCache(t *testing.T) {
	ctx := context.Background()
	results := cache.NewMemoryCache()

	newClient := func() *mock.Client {
		return &mock.Client{
			GetJobFunc: mock.StatusSequence("", models.JobStatusSucceeded),
			GetResultMarkdownFunc: func(context.Context, string) (string, error) {
				return "# cached", nil
			},
		}
	}

	first := newClient()
	v := NewView(first, Options{Interval: testInterval, Results: results, ResultTTL: time.Hour})
	v.Mount(ctx, "job-10")
	assert.Equal(t, "# cached", waitDone(t, v).Markdown)
	assert.Equal(t, 1, first.Calls("GetResultMarkdown"))

	stored, found, err := results.Get(ctx, cache.ResultKey("job-10"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "# cached", string(stored))

	second := newClient()
	v2 := NewView(second, Options{Interval: testInterval, Results: results, ResultTTL: time.Hour})
	v2.Mount(ctx, "job-10")
	assert.Equal(t, "# cached", waitDone(t, v2).Markdown)
	assert.Zero(t, second.Calls("GetResultMarkdown"))
}

func TestPercent(t *testing.T) {
	tests := []struct {
		progress float64
		want     int
	}{
		{0, 0},
		{0.5, 50},
		{1, 100},
		{1.4, 100},
		{-0.2, 0},
		{0.004, 0},
		{0.005, 1},
		{0.333, 33},
		{math.NaN(), 0},
		{math.Inf(1), 100},
		{math.Inf(-1), 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Percent(tt.progress), "progress %v", tt.progress)
	}
}

func TestState_BeforeFirstFetch(t *testing.T) {
	s := State{JobID: "x"}
	assert.Equal(t, "loading", s.StatusLabel())
	assert.Equal(t, ClassPending, s.StatusClass())
	assert.Zero(t, s.Percent())
	assert.Empty(t, s.Stage())
	assert.Empty(t, s.JobError())
}

func TestOnce(t *testing.T) {
	t.Run("running", func(t *testing.T) {
		mc := &mock.Client{GetJobFunc: mock.StatusSequence("", models.JobStatusRunning)}
		s := Once(context.Background(), mc, Options{}, "j")
		assert.False(t, s.Done)
		assert.Equal(t, 50, s.Percent())
		assert.Zero(t, mc.Calls("GetResultMarkdown"))
	})

	t.Run("succeeded", func(t *testing.T) {
		mc := &mock.Client{
			GetJobFunc:            mock.StatusSequence("", models.JobStatusSucceeded),
			GetResultMarkdownFunc: func(context.Context, string) (string, error) { return "md", nil },
		}
		results := cache.NewMemoryCache()
		opts := Options{Results: results, ResultTTL: time.Minute}

		s := Once(context.Background(), mc, opts, "j")
		assert.True(t, s.Done)
		assert.Equal(t, "md", s.Markdown)

		// A second step reads the result from the cache.
		s = Once(context.Background(), mc, opts, "j")
		assert.Equal(t, "md", s.Markdown)
		assert.Equal(t, 1, mc.Calls("GetResultMarkdown"))
	})

	t.Run("failed", func(t *testing.T) {
		mc := &mock.Client{GetJobFunc: mock.StatusSequence("boom", models.JobStatusFailed)}
		s := Once(context.Background(), mc, Options{}, "j")
		assert.True(t, s.Done)
		assert.Equal(t, "boom", s.JobError())
		assert.Zero(t, mc.Calls("GetResultMarkdown"))
	})

	t.Run("fetch error", func(t *testing.T) {
		mc := &mock.Client{
			GetJobFunc: func(context.Context, string) (*models.JobMeta, error) {
				return nil, errors.New("backend unreachable: connection refused")
			},
		}
		s := Once(context.Background(), mc, Options{}, "j")
		assert.True(t, s.Done)
		assert.Equal(t, "backend unreachable: connection refused", s.Error)
	})
}
