// Package session models one live event-stream connection and the registry
// that makes it routable by id.
package session

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sentinel-Gate/sessiongate/internal/domain/credentials"
)

// State is the lifecycle state of a Session.
type State int32

const (
	// StateOpen means the stream is live and messages may be routed to it.
	StateOpen State = iota
	// StateClosing means teardown has started; the session is no longer routable.
	StateClosing
	// StateClosed means teardown has finished.
	StateClosed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Handle is the owned outbound channel of a session.
type Handle interface {
	// HandleMessage delivers one posted client message to the stream.
	// A non-nil error means the message was rejected; the session stays valid.
	HandleMessage(w http.ResponseWriter, r *http.Request) error

	// Close releases the stream. It must be safe to call more than once.
	Close() error
}

// Session is the live association between a streaming connection and its id.
type Session struct {
	// ID is a cryptographically random identifier, 32 bytes hex-encoded.
	ID string
	// Handle pushes server messages to the client and accepts posted ones.
	Handle Handle
	// Sink is the hanging response backing the stream.
	Sink http.ResponseWriter
	// Credentials are the secrets the stream was opened with.
	Credentials credentials.Credentials
	// CreatedAt is when the session was registered (UTC).
	CreatedAt time.Time

	state    atomic.Int32
	done     chan struct{}
	doneOnce sync.Once
}

// New creates an open session.
func New(id string, h Handle, sink http.ResponseWriter, creds credentials.Credentials) *Session {
	return &Session{
		ID:          id,
		Handle:      h,
		Sink:        sink,
		Credentials: creds,
		CreatedAt:   time.Now().UTC(),
		done:        make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Routable reports whether posted messages may be forwarded to the session.
func (s *Session) Routable() bool {
	return s.State() == StateOpen
}

// BeginClose moves the session from open to closing.
// Only the first caller gets true; every later caller must treat teardown as done.
func (s *Session) BeginClose() bool {
	return s.state.CompareAndSwap(int32(StateOpen), int32(StateClosing))
}

// MarkClosed records the end of teardown and releases Done waiters.
func (s *Session) MarkClosed() {
	s.state.Store(int32(StateClosed))
	s.doneOnce.Do(func() { close(s.done) })
}

// Done is closed once teardown has finished.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Age returns how long the session has existed.
func (s *Session) Age() time.Duration {
	return time.Since(s.CreatedAt)
}
