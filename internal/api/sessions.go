package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/Miketheless/workshopneu/internal/admin"

	"github.com/google/uuid"
)

const (
	sessionCookie  = "platzreife_admin"
	sessionIdleTTL = 12 * time.Hour
	// the browser id outlives logins so sort preferences survive them
	sessionCookieAge = 365 * 24 * time.Hour
)

type session struct {
	id        string
	dashboard *admin.Dashboard
	lastSeen  time.Time
}

// sessionStore maps browser ids to logged-in dashboards.
type sessionStore struct {
	newDashboard func() *admin.Dashboard
	idleTTL      time.Duration
	now          func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

func newSessionStore(newDashboard func() *admin.Dashboard, idleTTL time.Duration) *sessionStore {
	return &sessionStore{
		newDashboard: newDashboard,
		idleTTL:      idleTTL,
		now:          time.Now,
		sessions:     make(map[string]*session),
	}
}

// browserID returns the id from the cookie, issuing a new one if needed.
func (s *sessionStore) browserID(w http.ResponseWriter, r *http.Request, secure bool) string {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(sessionCookieAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// get returns the live session of id.
func (s *sessionStore) get(id string) (*session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	sess.lastSeen = s.now()
	return sess, true
}

// start replaces any session of id with a fresh dashboard.
func (s *sessionStore) start(id string) *session {
	sess := &session{id: id, dashboard: s.newDashboard(), lastSeen: s.now()}
	s.mu.Lock()
	old := s.sessions[id]
	s.sessions[id] = sess
	s.mu.Unlock()
	if old != nil {
		old.dashboard.Logout()
	}
	return sess
}

func (s *sessionStore) end(id string) {
	s.mu.Lock()
	sess := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if sess != nil {
		sess.dashboard.Logout()
	}
}

func (s *sessionStore) closeAll() {
	s.mu.Lock()
	all := s.sessions
	s.sessions = make(map[string]*session)
	s.mu.Unlock()
	for _, sess := range all {
		sess.dashboard.Logout()
	}
}

func (s *sessionStore) expireLocked() {
	now := s.now()
	for id, sess := range s.sessions {
		if now.Sub(sess.lastSeen) > s.idleTTL {
			delete(s.sessions, id)
			sess.dashboard.Logout()
		}
	}
}
