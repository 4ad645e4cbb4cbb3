package notify

import (
	"sync"
	"time"

	"github.com/Taichi-iskw/yt-skip/internal/model"
)

// DefaultSessionBuffer is the channel capacity of a session created with buffer <= 0
const DefaultSessionBuffer = 16

// Session is an in-process observer backed by a buffered channel.
// Deliver never blocks: a full or closed session is reported as unreachable.
// At most one consumer streams a session at a time; between streams the
// session keeps buffering so a reconnecting consumer misses nothing.
type Session struct {
	id string

	mu        sync.RWMutex
	ch        chan model.Message
	closed    bool
	streaming bool
	idleSince time.Time
}

// NewSession creates a session with the given buffer size
func NewSession(id string, buffer int) *Session {
	if buffer <= 0 {
		buffer = DefaultSessionBuffer
	}
	return &Session{
		id:        id,
		ch:        make(chan model.Message, buffer),
		idleSince: time.Now(),
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Deliver(msg model.Message) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrUnreachable
	}

	select {
	case s.ch <- msg:
		return nil
	default:
		return ErrUnreachable
	}
}

// Messages returns the channel the session's consumer reads from.
// It is closed by Close.
func (s *Session) Messages() <-chan model.Message {
	return s.ch
}

// Claim marks the session as streamed. It fails if the session is closed
// or another consumer holds it.
func (s *Session) Claim() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.streaming {
		return false
	}
	s.streaming = true
	return true
}

// Unclaim ends the current stream; the session starts idling
func (s *Session) Unclaim() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.streaming = false
	s.idleSince = time.Now()
}

// expireIfIdle closes the session if nobody has streamed it since cutoff
func (s *Session) expireIfIdle(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.streaming || s.idleSince.After(cutoff) {
		return false
	}
	s.closed = true
	close(s.ch)
	return true
}

// Close stops delivery; safe to call more than once
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
