package session

import "sync"

// Session holds the bearer token used by the API client. It is created by
// the caller and handed to the client explicitly; Login and Logout mark the
// start and end of its lifetime.
type Session struct {
	mu       sync.RWMutex
	token    string
	onLogout func()
}

func New(token string) *Session {
	return &Session{token: token}
}

func (s *Session) Login(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Logout clears the token and runs the logout hook once per authenticated
// period.
func (s *Session) Logout() {
	s.mu.Lock()
	hadToken := s.token != ""
	s.token = ""
	hook := s.onLogout
	s.mu.Unlock()

	if hadToken && hook != nil {
		hook()
	}
}

func (s *Session) OnLogout(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onLogout = fn
}

func (s *Session) Token() string {
	if s == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) Authenticated() bool {
	return s.Token() != ""
}
