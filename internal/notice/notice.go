// Package notice holds the single transient feedback message shown after a
// user action.
package notice

import (
	"sync"
	"time"
)

// DefaultTTL is how long a message stays up unless closed earlier.
const DefaultTTL = 3 * time.Second

type State int

const (
	Hidden State = iota
	Shown
)

func (s State) String() string {
	if s == Shown {
		return "SHOWN"
	}
	return "HIDDEN"
}

type Kind string

const (
	Success Kind = "success"
	Failure Kind = "error"
)

// Message is what the user sees.
type Message struct {
	Text    string    `json:"text"`
	Kind    Kind      `json:"kind"`
	ShownAt time.Time `json:"shownAt"`
}

// Queue has depth one: Show replaces whatever is displayed and restarts the
// timer.  Timer expiry and explicit dismissal both go through Close.
type Queue struct {
	mu      sync.Mutex
	ttl     time.Duration
	current *Message
	gen     uint64
	stop    func() bool

	after func(time.Duration, func()) func() bool
	now   func() time.Time
}

// New returns a hidden queue.  A non-positive ttl means DefaultTTL.
func New(ttl time.Duration) *Queue {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Queue{
		ttl: ttl,
		after: func(d time.Duration, f func()) func() bool {
			return time.AfterFunc(d, f).Stop
		},
		now: time.Now,
	}
}

// Show displays text, preempting any current message.
func (q *Queue) Show(text string, kind Kind) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stop != nil {
		q.stop()
	}
	q.gen++
	gen := q.gen
	q.current = &Message{Text: text, Kind: kind, ShownAt: q.now()}
	q.stop = q.after(q.ttl, func() { q.expire(gen) })
}

// Success and Failure are shorthands for Show.
func (q *Queue) Success(text string) { q.Show(text, Success) }
func (q *Queue) Failure(text string) { q.Show(text, Failure) }

// expire closes the message only if it is still the one the timer was
// started for.
func (q *Queue) expire(gen uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if gen != q.gen {
		return
	}
	q.closeLocked()
}

// Close hides the current message.  Closing a hidden queue does nothing.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closeLocked()
}

func (q *Queue) closeLocked() {
	if q.current == nil {
		return
	}
	q.current = nil
	if q.stop != nil {
		q.stop()
		q.stop = nil
	}
}

// Current returns the displayed message, if any.
func (q *Queue) Current() (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.current == nil {
		return Message{}, false
	}
	return *q.current, true
}

func (q *Queue) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.current == nil {
		return Hidden
	}
	return Shown
}
