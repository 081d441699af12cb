// Package server tracks the identity and live metadata of every connected
// session in the registry consulted by the broadcast coordinator.
package server

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const maxUsernameLen = 20

var (
	errUsernameEmpty   = errors.New("username cannot be empty")
	errUsernameTooLong = errors.New("username must be at most 20 characters")
	errUsernameTaken   = errors.New("username already taken")
	errUnknownSession  = errors.New("unknown session")
)

// Outbox is the per-session delivery port. Deliver hands one encoded frame
// to the session's connection and reports false when the frame was dropped.
// Implementations must never block.
type Outbox interface {
	Deliver(payload []byte) bool
}

// Session is the registry's record of one active connection.
type Session struct {
	ID          string
	Username    string
	RemoteAddr  string
	ConnectedAt time.Time

	outbox Outbox
}

// registry holds all active sessions keyed by connection id. It carries no
// lock of its own: the coordinator serializes every access.
type registry struct {
	sessions map[string]*Session
}

func newRegistry() *registry {
	return &registry{sessions: make(map[string]*Session)}
}

// create registers a new session under id with a generated guest username.
// The transport mints fresh ids, so a collision is an invariant violation.
func (r *registry) create(id, addr string, out Outbox) (*Session, error) {
	if _, ok := r.sessions[id]; ok {
		return nil, fmt.Errorf("session %s already registered", id)
	}

	sess := &Session{
		ID:          id,
		Username:    guestName(id),
		RemoteAddr:  addr,
		ConnectedAt: time.Now(),
		outbox:      out,
	}
	r.sessions[id] = sess
	return sess, nil
}

func guestName(id string) string {
	if len(id) > 4 {
		id = id[:4]
	}
	return "Guest_" + id
}

func (r *registry) get(id string) (*Session, bool) {
	sess, ok := r.sessions[id]
	return sess, ok
}

// remove deletes the session and returns it for the disconnect notification.
func (r *registry) remove(id string) (*Session, bool) {
	sess, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	delete(r.sessions, id)
	return sess, true
}

func (r *registry) size() int {
	return len(r.sessions)
}

// list returns a snapshot of all sessions for the user_list broadcast.
// No ordering is guaranteed.
func (r *registry) list() []UserInfo {
	users := make([]UserInfo, 0, len(r.sessions))
	for id, sess := range r.sessions {
		users = append(users, UserInfo{ID: id, Username: sess.Username})
	}
	return users
}

// rename validates raw and updates the session's username in place,
// returning the previous name. The duplicate check only considers other
// sessions, so renaming to the current name succeeds trivially.
func (r *registry) rename(id, raw string) (string, error) {
	sess, ok := r.sessions[id]
	if !ok {
		return "", errUnknownSession
	}

	name := strings.TrimSpace(raw)
	if name == "" {
		return "", errUsernameEmpty
	}
	if utf8.RuneCountInString(name) > maxUsernameLen {
		return "", errUsernameTooLong
	}
	for otherID, other := range r.sessions {
		if otherID != id && other.Username == name {
			return "", errUsernameTaken
		}
	}

	old := sess.Username
	sess.Username = name
	return old, nil
}
