package navigation

import (
	"errors"
	"net/url"
	"sync"
)

// ErrNoEntry is returned by Back and Forward at either end of the history.
var ErrNoEntry = errors.New("no history entry in that direction")

// History is a navigable list of locations. Back and Forward notify subscribers
// with the new current location; Push does not. A FileHistory being watched also
// notifies on every change to its file, so subscribers treat an event as a hint and
// read Current.
type History interface {
	Current() *url.URL
	Push(u *url.URL) error
	Back() error
	Forward() error
	Subscribe() (<-chan *url.URL, func())
}

// stack is the entry list shared by the History implementations.
type stack struct {
	Entries []string `json:"entries"`
	Index   int      `json:"index"`
}

func newStack(initial *url.URL) stack {
	if initial == nil {
		initial = Root()
	}
	return stack{Entries: []string{initial.String()}}
}

func (s *stack) current() *url.URL {
	if len(s.Entries) == 0 || s.Index < 0 || s.Index >= len(s.Entries) {
		return Root()
	}
	u, err := url.Parse(s.Entries[s.Index])
	if err != nil {
		return Root()
	}
	return u
}

// push drops every entry after the current one, like a browser does.
func (s *stack) push(u *url.URL) {
	if len(s.Entries) > 0 {
		s.Entries = s.Entries[:s.Index+1]
	}
	s.Entries = append(s.Entries, u.String())
	s.Index = len(s.Entries) - 1
}

func (s *stack) move(delta int) bool {
	next := s.Index + delta
	if next < 0 || next >= len(s.Entries) {
		return false
	}
	s.Index = next
	return true
}

// feed fans pop events out to subscribers without blocking the navigator.
type feed struct {
	mu     sync.Mutex
	subs   map[int]chan *url.URL
	nextID int
}

func (f *feed) subscribe() (<-chan *url.URL, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.subs == nil {
		f.subs = make(map[int]chan *url.URL)
	}
	id := f.nextID
	f.nextID++
	ch := make(chan *url.URL, 16)
	f.subs[id] = ch

	return ch, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if c, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(c)
		}
	}
}

func (f *feed) emit(u *url.URL) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		cp := *u
		select {
		case ch <- &cp:
		default:
		}
	}
}

// MemoryHistory is an in-process History.
type MemoryHistory struct {
	mu    sync.Mutex
	stack stack
	feed  feed
}

// NewMemoryHistory starts a history at initial, or at "/" when initial is nil.
func NewMemoryHistory(initial *url.URL) *MemoryHistory {
	return &MemoryHistory{stack: newStack(initial)}
}

func (h *MemoryHistory) Current() *url.URL {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stack.current()
}

func (h *MemoryHistory) Push(u *url.URL) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stack.push(u)
	return nil
}

func (h *MemoryHistory) Back() error    { return h.step(-1) }
func (h *MemoryHistory) Forward() error { return h.step(1) }

func (h *MemoryHistory) step(delta int) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.stack.move(delta) {
		return ErrNoEntry
	}
	h.feed.emit(h.stack.current())
	return nil
}

func (h *MemoryHistory) Subscribe() (<-chan *url.URL, func()) {
	return h.feed.subscribe()
}

var _ History = (*MemoryHistory)(nil)
