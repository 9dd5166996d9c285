package wallet

import (
	"time"
)

// DefaultSessionTimeout is the wall-clock lifetime of an unlocked session.
const DefaultSessionTimeout = 30 * time.Minute

// session holds decrypted keys in memory only.
type session struct {
	keys      *Keys
	expiresAt time.Time
}

func newSession(keys *Keys, now time.Time, timeout time.Duration) *session {
	return &session{keys: keys, expiresAt: now.Add(timeout)}
}

// valid reports whether the session is still inside its lifetime.
func (s *session) valid(now time.Time) bool {
	return s != nil && now.Before(s.expiresAt)
}

func (s *session) destroy() {
	if s != nil && s.keys != nil {
		s.keys.Zero()
		s.keys = nil
	}
}
