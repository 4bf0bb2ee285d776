package sessioncache

import (
	"crypto/sha256"
	"sync"

	"github.com/cuemby/stronglink/pkg/db"
	"github.com/cuemby/stronglink/pkg/log"
	"github.com/cuemby/stronglink/pkg/metrics"
)

// Cache is the live table of sessions for one environment, plus the
// registration mode new users are created under. It does not itself
// authenticate requests, HTTP/cookie handling is out of scope, it
// only resolves a cookie string to a retained Session for whatever
// caller parsed the cookie out of a request.
type Cache struct {
	env              *db.Environment
	registrationMode Mode

	mu       sync.RWMutex
	sessions map[uint64]*Session
}

// NewCache creates an empty session cache over env with registrationMode
// as the ceiling new users may be created with (see Session.CreateUser).
func NewCache(env *db.Environment, registrationMode Mode) *Cache {
	return &Cache{env: env, registrationMode: registrationMode, sessions: make(map[uint64]*Session)}
}

// Register inserts s into the cache under its session ID, retaining it
// on the cache's behalf. The out-of-scope HTTP login handler calls this
// once a session has been created and should be reachable by cookie.
func (c *Cache) Register(s *Session) {
	if s == nil {
		return
	}
	c.mu.Lock()
	c.sessions[s.sessionID] = s.Retain()
	n := len(c.sessions)
	c.mu.Unlock()
	metrics.SessionsActive.Set(float64(n))
}

// Count returns the number of sessions currently registered.
func (c *Cache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions)
}

// Forget removes and releases the cache's reference to sessionID, if present.
func (c *Cache) Forget(sessionID uint64) {
	c.mu.Lock()
	s, ok := c.sessions[sessionID]
	delete(c.sessions, sessionID)
	n := len(c.sessions)
	c.mu.Unlock()
	if ok {
		s.Release()
		metrics.SessionsActive.Set(float64(n))
		log.WithSessionID(sessionID).Debug().Msg("session forgotten")
	}
}

// CopyActiveSession resolves cookie into a retained Session, or returns
// the null session (nil, nil) if cookie is empty, malformed, or does
// not match a live session. An unresolved cookie is never an error: it
// is anonymous access, mirroring SLNSessionCacheCopyActiveSession.
func (c *Cache) CopyActiveSession(cookie string) (*Session, error) {
	if cookie == "" {
		metrics.SessionResolutionsTotal.WithLabelValues("anonymous").Inc()
		return nil, nil
	}
	sessionID, rawKey, err := ParseCookie(cookie)
	if err != nil {
		metrics.SessionResolutionsTotal.WithLabelValues("anonymous").Inc()
		return nil, nil
	}

	c.mu.RLock()
	s, ok := c.sessions[sessionID]
	c.mu.RUnlock()
	if !ok {
		metrics.SessionResolutionsTotal.WithLabelValues("rejected").Inc()
		return nil, nil
	}

	enc := sha256.Sum256(rawKey)
	if s.SessionKeyCmp(enc[:]) != 0 {
		metrics.SessionResolutionsTotal.WithLabelValues("rejected").Inc()
		return nil, nil
	}
	metrics.SessionResolutionsTotal.WithLabelValues("resolved").Inc()
	return s.Retain(), nil
}
