package broadcast

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/suda/leno/pkg/types"
)

// DefaultQueueSize is the per-subscriber outgoing line buffer depth.
const DefaultQueueSize = 16

var (
	// ErrSlowSubscriber is returned by Deliver when the subscriber's queue is full.
	ErrSlowSubscriber = errors.New("broadcast: subscriber queue full")

	// ErrSubscriberClosed is returned when delivering to, or registering, a
	// subscriber that has already been closed.
	ErrSubscriberClosed = errors.New("broadcast: subscriber closed")
)

// State is the lifecycle state of a Subscriber.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Subscriber is one connected remote viewer. The zero value is not usable;
// create subscribers with NewSubscriber.
type Subscriber struct {
	id    uuid.UUID
	queue chan types.Line
	done  chan struct{}

	// state only changes under the Registry mutex; the atomic lets Deliver
	// and State read it without taking that lock.
	state     atomic.Int32
	closeOnce sync.Once
}

// NewSubscriber returns a Subscriber in the Connecting state with a fresh
// identity and a queue of the given depth. A non-positive queueSize selects
// DefaultQueueSize.
func NewSubscriber(queueSize int) *Subscriber {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	s := &Subscriber{
		id:    uuid.New(),
		queue: make(chan types.Line, queueSize),
		done:  make(chan struct{}),
	}
	s.state.Store(int32(StateConnecting))
	return s
}

// ID returns the subscriber's identity, unique per connection instance.
func (s *Subscriber) ID() uuid.UUID { return s.id }

// State returns the current lifecycle state.
func (s *Subscriber) State() State { return State(s.state.Load()) }

// Queue returns the channel the transport drains. It is never closed; watch
// Done to learn when the subscriber has been closed.
func (s *Subscriber) Queue() <-chan types.Line { return s.queue }

// Done is closed when the subscriber transitions to Closed.
func (s *Subscriber) Done() <-chan struct{} { return s.done }

// Deliver attempts to enqueue line without blocking.
func (s *Subscriber) Deliver(line types.Line) error {
	if s.State() != StateOpen {
		return ErrSubscriberClosed
	}
	select {
	case s.queue <- line:
		return nil
	default:
		return ErrSlowSubscriber
	}
}

// markOpen and markClosed must be called with the Registry mutex held.
func (s *Subscriber) markOpen() {
	s.state.Store(int32(StateOpen))
}

// markClosed reports whether this call performed the transition.
func (s *Subscriber) markClosed() bool {
	if s.State() == StateClosed {
		return false
	}
	s.state.Store(int32(StateClosed))
	s.closeOnce.Do(func() { close(s.done) })
	return true
}
