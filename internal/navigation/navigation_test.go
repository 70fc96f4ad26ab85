package navigation

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestJobIDRoundTrip(t *testing.T) {
	u := WithJobID(Root(), "abc123")
	id, ok := ReadJobID(u)
	assert.True(t, ok)
	assert.Equal(t, "abc123", id)
	assert.Equal(t, "/?job_id=abc123", u.String())

	cleared := WithJobID(u, "")
	id, ok = ReadJobID(cleared)
	assert.False(t, ok)
	assert.Empty(t, id)
	assert.Equal(t, "/", cleared.String())
}

func TestReadJobID(t *testing.T) {
	tests := []struct {
		raw    string
		wantID string
		wantOK bool
	}{
		{"/", "", false},
		{"/?job_id=", "", false},
		{"/?job_id=j-1", "j-1", true},
		{"/?lang=fr&job_id=a%2Fb", "a/b", true},
	}
	for _, tt := range tests {
		id, ok := ReadJobID(mustParse(t, tt.raw))
		assert.Equal(t, tt.wantID, id, tt.raw)
		assert.Equal(t, tt.wantOK, ok, tt.raw)
	}

	_, ok := ReadJobID(nil)
	assert.False(t, ok)
}

func TestWithJobID_KeepsOtherParams(t *testing.T) {
	u := mustParse(t, "/app?lang=fr#top")
	got := WithJobID(u, "x")

	assert.Equal(t, "/app", got.Path)
	assert.Equal(t, "fr", got.Query().Get("lang"))
	assert.Equal(t, "x", got.Query().Get(JobIDParam))
	assert.Equal(t, "top", got.Fragment)
	assert.Equal(t, "/app?lang=fr#top", u.String(), "input must not be modified")
}

func testHistory(t *testing.T, h History) {
	t.Helper()

	assert.Equal(t, "/", h.Current().String())
	pops, stop := h.Subscribe()
	defer stop()

	require.NoError(t, h.Push(mustParse(t, "/?job_id=a")))
	require.NoError(t, h.Push(mustParse(t, "/?job_id=b")))
	assert.Equal(t, "/?job_id=b", h.Current().String())
	assert.Empty(t, pops, "push must not emit")

	require.NoError(t, h.Back())
	assert.Equal(t, "/?job_id=a", (<-pops).String())
	require.NoError(t, h.Back())
	assert.Equal(t, "/", (<-pops).String())
	assert.ErrorIs(t, h.Back(), ErrNoEntry)

	require.NoError(t, h.Forward())
	assert.Equal(t, "/?job_id=a", (<-pops).String())

	// Pushing drops the forward entries.
	require.NoError(t, h.Push(mustParse(t, "/?job_id=c")))
	assert.ErrorIs(t, h.Forward(), ErrNoEntry)
	require.NoError(t, h.Back())
	assert.Equal(t, "/?job_id=a", (<-pops).String())
}

func TestMemoryHistory(t *testing.T) {
	testHistory(t, NewMemoryHistory(nil))
}

func TestFileHistory(t *testing.T) {
	h, err := NewFileHistory(filepath.Join(t.TempDir(), "state", "location.json"))
	require.NoError(t, err)
	testHistory(t, h)
}

func TestFileHistory_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "location.json")

	h, err := NewFileHistory(path)
	require.NoError(t, err)
	require.NoError(t, h.Push(WithJobID(Root(), "abc123")))

	reopened, err := NewFileHistory(path)
	require.NoError(t, err)
	id, ok := ReadJobID(reopened.Current())
	assert.True(t, ok)
	assert.Equal(t, "abc123", id)

	require.NoError(t, reopened.Back())
	assert.Equal(t, "/", h.Current().String())
}

func TestFileHistory_CorruptFileStartsAtRoot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "location.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	h, err := NewFileHistory(path)
	require.NoError(t, err)
	assert.Equal(t, "/", h.Current().String())

	require.NoError(t, h.Push(WithJobID(Root(), "j")))
	assert.Equal(t, "/?job_id=j", h.Current().String())
}

func TestNewFileHistory_EmptyPath(t *testing.T) {
	_, err := NewFileHistory("")
	assert.Error(t, err)
}

type recordingRouter struct {
	mu    sync.Mutex
	shown []string
}

func (r *recordingRouter) ShowUpload() { r.record("upload") }

func (r *recordingRouter) ShowJob(jobID string) { r.record("job:" + jobID) }

func (r *recordingRouter) record(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shown = append(r.shown, s)
}

func (r *recordingRouter) Shown() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.shown...)
}

func (r *recordingRouter) Last() string {
	shown := r.Shown()
	if len(shown) == 0 {
		return ""
	}
	return shown[len(shown)-1]
}

func TestController_InitialScreen(t *testing.T) {
	r := &recordingRouter{}
	c := NewController(NewMemoryHistory(nil), r)
	assert.Empty(t, c.JobID())
	assert.Equal(t, []string{"upload"}, r.Shown())

	r = &recordingRouter{}
	c = NewController(NewMemoryHistory(WithJobID(Root(), "abc123")), r)
	assert.Equal(t, "abc123", c.JobID())
	assert.Equal(t, []string{"job:abc123"}, r.Shown())
}

func TestController_JobCreatedAndReset(t *testing.T) {
	h := NewMemoryHistory(nil)
	r := &recordingRouter{}
	c := NewController(h, r)

	require.NoError(t, c.JobCreated("abc123"))
	id, _ := ReadJobID(h.Current())
	assert.Equal(t, "abc123", id)
	assert.Equal(t, "abc123", c.JobID())
	assert.Equal(t, "job:abc123", r.Last())

	require.NoError(t, c.Reset())
	_, ok := ReadJobID(h.Current())
	assert.False(t, ok)
	assert.Empty(t, c.JobID())
	assert.Equal(t, []string{"upload", "job:abc123", "upload"}, r.Shown())

	assert.ErrorIs(t, c.JobCreated(""), ErrEmptyJobID)
}

func TestController_FollowsBackAndForward(t *testing.T) {
	h := NewMemoryHistory(nil)
	r := &recordingRouter{}
	c := NewController(h, r)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.NoError(t, c.JobCreated("first"))
	require.NoError(t, c.JobCreated("second"))

	require.NoError(t, h.Back())
	require.Eventually(t, func() bool { return c.JobID() == "first" }, time.Second, time.Millisecond)
	assert.Equal(t, "job:first", r.Last())

	require.NoError(t, h.Back())
	require.Eventually(t, func() bool { return c.JobID() == "" }, time.Second, time.Millisecond)
	assert.Equal(t, "upload", r.Last())

	require.NoError(t, h.Forward())
	require.Eventually(t, func() bool { return c.JobID() == "first" }, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestController_StateMatchesLocation(t *testing.T) {
	h := NewMemoryHistory(nil)
	c := NewController(h, &recordingRouter{})

	for _, id := range []string{"a", "b", "", "c", ""} {
		if id == "" {
			require.NoError(t, c.Reset())
		} else {
			require.NoError(t, c.JobCreated(id))
		}
		got, _ := ReadJobID(h.Current())
		assert.Equal(t, c.JobID(), got)
	}
}

func TestController_IgnoresOvertakenPop(t *testing.T) {
	h := NewMemoryHistory(nil)
	r := &recordingRouter{}
	c := NewController(h, r)

	require.NoError(t, c.JobCreated("a"))
	require.NoError(t, c.JobCreated("b"))
	require.NoError(t, c.JobCreated("c"))
	// The pop for "b" is still queued when "d" is created.
	require.NoError(t, h.Back())
	require.NoError(t, c.JobCreated("d"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	assert.Never(t, func() bool { return c.JobID() != "d" }, 100*time.Millisecond, time.Millisecond)
	got, _ := ReadJobID(h.Current())
	assert.Equal(t, "d", got)
	assert.Equal(t, got, c.JobID())
	assert.Equal(t, "job:d", r.Last())
}

func TestFileHistory_WatchSeesOtherWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "location.json")
	h1, err := NewFileHistory(path)
	require.NoError(t, err)
	h2, err := NewFileHistory(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, h1.Watch(ctx, 10*time.Millisecond))
	pops, stop := h1.Subscribe()
	defer stop()

	require.NoError(t, h2.Push(WithJobID(Root(), "abc123")))

	select {
	case u := <-pops:
		assert.Equal(t, "/?job_id=abc123", u.String())
	case <-time.After(2 * time.Second):
		t.Fatal("no event after another writer pushed")
	}
}

func TestController_FollowsOtherProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "location.json")
	h1, err := NewFileHistory(path)
	require.NoError(t, err)
	r := &recordingRouter{}
	c := NewController(h1, r)
	require.NoError(t, c.JobCreated("first"))
	require.NoError(t, c.JobCreated("second"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, h1.Watch(ctx, 10*time.Millisecond))
	go c.Run(ctx)

	h2, err := NewFileHistory(path)
	require.NoError(t, err)
	require.NoError(t, h2.Back())

	require.Eventually(t, func() bool { return c.JobID() == "first" }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "job:first", r.Last())
}

func TestFileHistory_WatchMissingDir(t *testing.T) {
	h, err := NewFileHistory(filepath.Join(t.TempDir(), "state", "location.json"))
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(filepath.Dir(h.path)))

	assert.Error(t, h.Watch(context.Background(), time.Millisecond))
}
