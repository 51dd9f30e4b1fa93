// Package session tracks identities and their live connections. An identity
// survives for the process lifetime; a user is "present" exactly while at
// least one of their connections is open.
package session

import (
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/colorsprint/gameserver/network"
)

const MaxNameLength = 15

var (
	ErrInvalidName = errors.New("invalid name")
	ErrUnknownUser = errors.New("unknown user")
)

// Identity is a stable user: minted once, never destroyed.
type Identity struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

// Session is one live transport connection. A user with several tabs open
// holds several sessions bound to the same identity.
type Session struct {
	ID        string
	Conn      network.Connection
	UserID    string
	CreatedAt time.Time

	mutex      sync.Mutex
	lastActive time.Time
}

func NewSession(id string, conn network.Connection) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		Conn:       conn,
		CreatedAt:  now,
		lastActive: now,
	}
}

// Send may be called from several broadcast paths at once; the activity
// stamp is the only shared write, the connection serializes itself.
func (s *Session) Send(event string, payload interface{}) error {
	s.mutex.Lock()
	s.lastActive = time.Now()
	s.mutex.Unlock()
	return s.Conn.Send(event, payload)
}

func (s *Session) LastActive() time.Time {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.lastActive
}

func (s *Session) GetID() string {
	return s.ID
}

func (s *Session) Close() error {
	return s.Conn.Close()
}

// Registry owns every session and identity in the process.
type Registry struct {
	sessions map[string]*Session            // sessionID -> session
	users    map[string]*Identity           // userID -> identity
	conns    map[string]map[string]*Session // userID -> sessionID -> session
	mutex    sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		users:    make(map[string]*Identity),
		conns:    make(map[string]map[string]*Session),
	}
}

func (r *Registry) Add(sess *Session) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.sessions[sess.ID] = sess
}

func (r *Registry) Get(sessionID string) (*Session, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	sess, exists := r.sessions[sessionID]
	return sess, exists
}

// Authenticate resolves or mints an identity. A known userID is reused as-is
// so reconnecting tabs keep their seat; otherwise the proposed name is
// validated and a fresh id is minted.
func (r *Registry) Authenticate(existingUserID, proposedName string) (*Identity, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if existingUserID != "" {
		if identity, exists := r.users[existingUserID]; exists {
			return identity, nil
		}
	}

	name := strings.TrimSpace(proposedName)
	if name == "" || utf8.RuneCountInString(name) > MaxNameLength {
		return nil, ErrInvalidName
	}

	identity := &Identity{UserID: uuid.New().String(), Name: name}
	r.users[identity.UserID] = identity
	return identity, nil
}

// Identity looks up a known user.
func (r *Registry) Identity(userID string) (*Identity, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	identity, exists := r.users[userID]
	return identity, exists
}

// Bind attaches a session to an identity's connection set. A session that
// re-authenticates as a different identity is detached from the old one
// first; when that drops the old identity's last connection, its userID is
// returned so the caller can treat it as a disconnect.
func (r *Registry) Bind(sess *Session, userID string) (released string, err error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.users[userID]; !exists {
		return "", ErrUnknownUser
	}
	if prev := sess.UserID; prev != "" && prev != userID {
		set := r.conns[prev]
		delete(set, sess.ID)
		if len(set) == 0 {
			delete(r.conns, prev)
			released = prev
		}
	}
	sess.UserID = userID
	if _, exists := r.conns[userID]; !exists {
		r.conns[userID] = make(map[string]*Session)
	}
	r.conns[userID][sess.ID] = sess
	return released, nil
}

// Unbind removes a session entirely and reports whether it was the last
// connection of its identity.
func (r *Registry) Unbind(sessionID string) (userID string, last bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	sess, exists := r.sessions[sessionID]
	if !exists {
		return "", false
	}
	delete(r.sessions, sessionID)

	userID = sess.UserID
	if userID == "" {
		return "", false
	}
	set := r.conns[userID]
	delete(set, sessionID)
	if len(set) == 0 {
		delete(r.conns, userID)
		return userID, true
	}
	return userID, false
}

// SessionsByUser returns every live session of one identity (multi-tab).
func (r *Registry) SessionsByUser(userID string) []*Session {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var result []*Session
	for _, sess := range r.conns[userID] {
		result = append(result, sess)
	}
	return result
}

// Present reports whether the identity has at least one open connection.
func (r *Registry) Present(userID string) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.conns[userID]) > 0
}

// AllSessions snapshots every live session, for lobby-wide broadcasts.
func (r *Registry) AllSessions() []*Session {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		result = append(result, sess)
	}
	return result
}
