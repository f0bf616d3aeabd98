package livereload

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// writeWait bounds a single frame write.
const writeWait = 5 * time.Second

// Conn is the subset of *websocket.Conn a Session writes through.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Session is one connected browser.
type Session struct {
	id         string
	createdAt  time.Time
	remoteAddr string
	conn       Conn

	// gorilla/websocket supports one concurrent writer per connection.
	mu        sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// NewSession wraps conn in a session with a fresh unique ID.
func NewSession(conn Conn, remoteAddr string) *Session {
	return &Session{
		id:         uuid.New().String(),
		createdAt:  time.Now(),
		remoteAddr: remoteAddr,
		conn:       conn,
	}
}

// ID returns the unique session identifier.
func (s *Session) ID() string { return s.id }

// CreatedAt returns when the session was established.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// RemoteAddr returns the peer address.
func (s *Session) RemoteAddr() string { return s.remoteAddr }

// Send writes data as a single text frame.
func (s *Session) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSessionSend, s.id, err)
	}

	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSessionSend, s.id, err)
	}

	return nil
}

// Close closes the underlying connection. Repeated calls return the
// result of the first.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
	})

	return s.closeErr
}
