// Package jobview polls a single job until it reaches a terminal status and keeps
// the latest snapshot, plus the Markdown result once the job has succeeded.
package jobview

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/kiranshivaraju/pdftranslate/internal/cache"
	"github.com/kiranshivaraju/pdftranslate/internal/jobsapi"
	"github.com/kiranshivaraju/pdftranslate/pkg/models"
)

// DefaultInterval is the delay between the end of one status fetch and the next.
const DefaultInterval = 2 * time.Second

var (
	ErrNotMounted = errors.New("job view is not mounted")
	ErrSuperseded = errors.New("job view was unmounted or remounted")
)

// Options configures a View.
type Options struct {
	Interval time.Duration
	// Results, when set, holds Markdown results across views and restarts.
	Results   cache.Cache
	ResultTTL time.Duration
}

// View runs at most one polling session at a time. Each session owns a token;
// a state change is applied only while the session's token is still current, so a
// superseded session can never touch the state of its successor.
type View struct {
	client jobsapi.Client
	opts   Options

	mu     sync.Mutex
	state  State
	token  uint64
	cancel context.CancelFunc
	done   chan struct{}
	subs   map[uint64]chan State
	nextID uint64
}

// NewView creates a job View polling through client.
func NewView(client jobsapi.Client, opts Options) *View {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	return &View{
		client: client,
		opts:   opts,
		subs:   make(map[uint64]chan State),
	}
}

// Mount tears down any running session and starts polling jobID. The session ends
// on a terminal status, a fetch error, Unmount, a later Mount, or ctx cancellation.
func (v *View) Mount(ctx context.Context, jobID string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.teardownLocked()
	tok := v.token

	sctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	v.cancel = cancel
	v.done = done
	v.state = State{JobID: jobID}
	v.publishLocked()

	slog.Debug("job view mounted", "job_id", jobID)
	go v.poll(sctx, tok, jobID, done)
}

// Unmount stops the current session. A fetch already in flight is cancelled and
// its outcome discarded.
func (v *View) Unmount() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.teardownLocked()
	v.state = State{}
	v.done = nil
}

func (v *View) teardownLocked() {
	v.token++
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
}

// State returns the current snapshot.
func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state.clone()
}

// Subscribe returns a channel receiving every state change. Slow readers only
// miss intermediate snapshots, never the latest one. Call the returned func to stop.
func (v *View) Subscribe() (<-chan State, func()) {
	v.mu.Lock()
	defer v.mu.Unlock()

	id := v.nextID
	v.nextID++
	ch := make(chan State, 8)
	v.subs[id] = ch

	return ch, func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		delete(v.subs, id)
	}
}

// Wait blocks until the mounted session stops polling and returns its final state.
func (v *View) Wait(ctx context.Context) (State, error) {
	v.mu.Lock()
	done, tok := v.done, v.token
	v.mu.Unlock()

	if done == nil {
		return State{}, ErrNotMounted
	}

	select {
	case <-done:
	case <-ctx.Done():
		return v.State(), ctx.Err()
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.token != tok {
		return State{}, ErrSuperseded
	}
	return v.state.clone(), nil
}

func (v *View) poll(ctx context.Context, tok uint64, jobID string, done chan struct{}) {
	defer close(done)

	for {
		meta, err := v.client.GetJob(ctx, jobID)
		if err != nil {
			if v.apply(tok, func(s *State) {
				s.Error = err.Error()
				s.Done = true
			}) {
				slog.Warn("job status poll failed", "job_id", jobID, "error", err)
			}
			return
		}

		switch meta.Status {
		case models.JobStatusSucceeded:
			if !v.apply(tok, func(s *State) { s.Job = meta }) {
				return
			}
			md, err := v.resultMarkdown(ctx, jobID)
			v.apply(tok, func(s *State) {
				if err != nil {
					s.Error = err.Error()
				} else {
					s.Markdown = md
				}
				s.Done = true
			})
			return

		case models.JobStatusFailed:
			v.apply(tok, func(s *State) {
				s.Job = meta
				s.Done = true
			})
			return

		default:
			if !v.apply(tok, func(s *State) { s.Job = meta }) {
				return
			}
		}

		timer := time.NewTimer(v.opts.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// apply mutates the state if tok is still the live session and reports whether it did.
func (v *View) apply(tok uint64, fn func(*State)) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if tok != v.token {
		return false
	}
	fn(&v.state)
	v.publishLocked()
	return true
}

func (v *View) publishLocked() {
	s := v.state.clone()
	for _, ch := range v.subs {
		select {
		case ch <- s:
		default:
			// Drop the oldest snapshot so the newest always lands.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s:
			default:
			}
		}
	}
}

func (v *View) resultMarkdown(ctx context.Context, jobID string) (string, error) {
	return FetchResult(ctx, v.client, v.opts.Results, v.opts.ResultTTL, jobID)
}

// FetchResult returns a job's Markdown, reading through results when it is set.
// Results never change once a job has succeeded, so a cached copy is always valid.
func FetchResult(ctx context.Context, client jobsapi.Client, results cache.Cache, ttl time.Duration, jobID string) (string, error) {
	key := cache.ResultKey(jobID)
	if results != nil {
		b, found, err := results.Get(ctx, key)
		if err != nil {
			slog.Warn("result cache read failed", "job_id", jobID, "error", err)
		}
		if found {
			return string(b), nil
		}
	}

	md, err := client.GetResultMarkdown(ctx, jobID)
	if err != nil {
		return "", err
	}

	if results != nil {
		if err := results.Set(ctx, key, []byte(md), ttl); err != nil {
			slog.Warn("result cache write failed", "job_id", jobID, "error", err)
		}
	}
	return md, nil
}

// Once runs a single poll step for jobID without a session: one status fetch, plus
// the result fetch when the job has succeeded. Done is set when no further step
// would change anything.
func Once(ctx context.Context, client jobsapi.Client, opts Options, jobID string) State {
	s := State{JobID: jobID}

	meta, err := client.GetJob(ctx, jobID)
	if err != nil {
		s.Error = err.Error()
		s.Done = true
		return s
	}
	s.Job = meta

	switch meta.Status {
	case models.JobStatusSucceeded:
		md, err := FetchResult(ctx, client, opts.Results, opts.ResultTTL, jobID)
		if err != nil {
			s.Error = err.Error()
		} else {
			s.Markdown = md
		}
		s.Done = true
	case models.JobStatusFailed:
		s.Done = true
	}
	return s
}
