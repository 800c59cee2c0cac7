package dispatch

import (
	"sync"

	"github.com/kapu/rollhouse-backend-go/internal/account"
)

// Session is the per-connection authentication state: unauthenticated
// until a login succeeds, then pinned to one player id for the life of
// the connection.
type Session struct {
	conn account.Conn

	mu       sync.Mutex
	playerID string
	deviceID string
}

func NewSession(conn account.Conn) *Session {
	return &Session{conn: conn}
}

func (s *Session) Conn() account.Conn { return s.conn }

// PlayerID returns the authenticated identity, or "" before login.
func (s *Session) PlayerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playerID
}

func (s *Session) DeviceID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deviceID
}

func (s *Session) authenticate(playerID, deviceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playerID = playerID
	s.deviceID = deviceID
}
