// Package server implements the broadcast coordinator: the single authority
// over the session registry and history buffer that turns inbound client
// events into ordered outbound deliveries.
package server

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"ipchat/internal/metrics"
)

const clearCommand = "/clear"

// Coordinator serializes every mutation of the session registry and the
// history buffer behind one mutex. Deliveries are fire-and-forget: a failed
// send is logged and counted, never escalated, and never rolls back the
// state change that triggered it.
type Coordinator struct {
	mu        sync.Mutex
	sessions  *registry
	history   *historyBuffer
	startedAt time.Time
	lastMS    int64
}

// NewCoordinator creates a Coordinator with an empty registry and history.
func NewCoordinator() *Coordinator {
	return &Coordinator{
		sessions:  newRegistry(),
		history:   newHistoryBuffer(maxHistory),
		startedAt: time.Now(),
	}
}

// Stats is the read-only snapshot served by the /stats endpoint.
type Stats struct {
	ActiveUsers  int     `json:"active_users"`
	MessageCount int     `json:"message_count"`
	Uptime       float64 `json:"uptime"`
}

// Snapshot reports the active session count, stored message count, and
// process uptime in seconds.
func (co *Coordinator) Snapshot() Stats {
	co.mu.Lock()
	defer co.mu.Unlock()
	return Stats{
		ActiveUsers:  co.sessions.size(),
		MessageCount: co.history.size(),
		Uptime:       time.Since(co.startedAt).Seconds(),
	}
}

// Connect registers a new session and runs the join sequence: welcome to the
// newcomer, history count notice and replay when history is non-empty, a
// joined notice to everyone else, then a user list to all sessions.
func (co *Coordinator) Connect(id, addr string, out Outbox) {
	co.mu.Lock()
	defer co.mu.Unlock()

	sess, err := co.sessions.create(id, addr, out)
	if err != nil {
		// The transport guarantees fresh ids; a collision means that
		// guarantee broke.
		logger.Error().Str("session_id", id).Err(err).Msg("session create failed")
		return
	}
	metrics.SetConnectedClients(co.sessions.size())
	logger.Info().
		Str("session_id", id).
		Str("remote_addr", addr).
		Str("username", sess.Username).
		Msg("client connected")

	ms := co.nextMillis()
	ts := wallClock()

	welcome := ChatMessage{
		Type:      kindSystem,
		Text:      fmt.Sprintf("Welcome to the chat, %s! Type /clear to clear your chat history.", sess.Username),
		Timestamp: ts,
		ID:        fmt.Sprintf("welcome_%s_%d", id, ms),
	}
	co.sendTo(sess, EventMessage, welcome)

	recent := co.history.recent(maxHistoryToSend)
	if len(recent) > 0 {
		notice := ChatMessage{
			Type:      kindSystem,
			Text:      fmt.Sprintf("Showing last %d messages", len(recent)),
			Timestamp: ts,
			ID:        fmt.Sprintf("history_notice_%s_%d", id, ms),
		}
		co.sendTo(sess, EventMessage, notice)
		for _, msg := range recent {
			co.sendTo(sess, EventMessage, msg)
		}
	}

	join := ChatMessage{
		Type:      kindSystem,
		Text:      fmt.Sprintf("%s has joined the chat", sess.Username),
		Timestamp: ts,
		ID:        fmt.Sprintf("join_%s_%d", id, ms),
	}
	co.broadcastExcept(sess, EventMessage, join)

	co.emitUserList()
}

// Disconnect removes the session, notifies the remaining sessions, and
// refreshes their user list. Unknown ids are ignored: a disconnect racing a
// late event is normal, not an error.
func (co *Coordinator) Disconnect(id string) {
	co.mu.Lock()
	defer co.mu.Unlock()

	sess, ok := co.sessions.remove(id)
	if !ok {
		return
	}
	metrics.SetConnectedClients(co.sessions.size())
	logger.Info().
		Str("session_id", id).
		Str("username", sess.Username).
		Msg("client disconnected")

	ms := co.nextMillis()
	leave := ChatMessage{
		Type:      kindSystem,
		Text:      fmt.Sprintf("%s has left the chat", sess.Username),
		Timestamp: wallClock(),
		ID:        fmt.Sprintf("leave_%s_%d", id, ms),
	}
	co.broadcastAll(EventMessage, leave)

	co.emitUserList()
}

// ChatMessage validates and relays one chat line from the session. The
// /clear command is local-only: it produces a clear frame for the requester
// and never touches the shared history.
func (co *Coordinator) ChatMessage(id, raw string) {
	co.mu.Lock()
	defer co.mu.Unlock()

	sess, ok := co.sessions.get(id)
	if !ok {
		return
	}
	text := strings.TrimSpace(raw)
	if text == "" {
		return
	}

	ms := co.nextMillis()
	ts := wallClock()

	if strings.EqualFold(text, clearCommand) {
		clear := ChatMessage{
			Type:      kindSystem,
			Text:      "Chat history cleared for you",
			Timestamp: ts,
			Clear:     true,
			ID:        fmt.Sprintf("clear_%s_%d", id, ms),
		}
		co.sendTo(sess, EventMessage, clear)
		return
	}

	msg := ChatMessage{
		Type:      kindChat,
		Username:  sess.Username,
		Text:      text,
		Timestamp: ts,
		ID:        fmt.Sprintf("msg_%d_%s", ms, id),
	}
	co.history.append(msg)
	metrics.IncChatMessages()
	metrics.SetHistorySize(co.history.size())
	logger.Info().
		Str("session_id", id).
		Str("username", sess.Username).
		Msg("chat message")

	co.broadcastAll(EventMessage, msg)
}

// SetUsername attempts a rename. Rejections go back to the requester alone;
// a success is announced to everyone, confirmed to the requester, and
// followed by a fresh user list.
func (co *Coordinator) SetUsername(id, raw string) {
	co.mu.Lock()
	defer co.mu.Unlock()

	sess, ok := co.sessions.get(id)
	if !ok {
		return
	}

	old, err := co.sessions.rename(id, raw)
	if err != nil {
		logger.Debug().
			Str("session_id", id).
			Err(err).
			Msg("rename rejected")
		co.sendTo(sess, EventUsernameError, UsernameError{Error: err.Error()})
		return
	}
	logger.Info().
		Str("session_id", id).
		Str("old", old).
		Str("new", sess.Username).
		Msg("username changed")

	ms := co.nextMillis()
	change := ChatMessage{
		Type:      kindSystem,
		Text:      fmt.Sprintf("%s changed their name to %s", old, sess.Username),
		Timestamp: wallClock(),
		ID:        fmt.Sprintf("rename_%s_%d", id, ms),
	}
	co.broadcastAll(EventMessage, change)

	co.sendTo(sess, EventUsernameChanged, UsernameChanged{Username: sess.Username})

	co.emitUserList()
}

// nextMillis returns a strictly increasing millisecond timestamp so that ids
// built from it stay unique for the life of the process. Callers hold co.mu.
func (co *Coordinator) nextMillis() int64 {
	ms := time.Now().UnixMilli()
	if ms <= co.lastMS {
		ms = co.lastMS + 1
	}
	co.lastMS = ms
	return ms
}

// wallClock formats the human-readable, second-precision timestamp carried
// by every message.
func wallClock() string {
	return time.Now().Format("15:04:05")
}

func (co *Coordinator) sendTo(sess *Session, event string, data any) {
	payload, err := encodeEvent(event, data)
	if err != nil {
		logger.Error().Err(err).Str("event", event).Msg("encode outbound event")
		return
	}
	if !sess.outbox.Deliver(payload) {
		metrics.IncSendFailure()
		logger.Warn().
			Str("session_id", sess.ID).
			Str("event", event).
			Msg("outbound delivery failed")
		return
	}
	metrics.IncDelivered()
}

// broadcastAll delivers an event to every session. Each recipient is
// independent: one failed send never aborts the rest.
func (co *Coordinator) broadcastAll(event string, data any) {
	for _, sess := range co.sessions.sessions {
		co.sendTo(sess, event, data)
	}
}

// broadcastExcept delivers an event to every session but skip.
func (co *Coordinator) broadcastExcept(skip *Session, event string, data any) {
	for _, sess := range co.sessions.sessions {
		if sess == skip {
			continue
		}
		co.sendTo(sess, event, data)
	}
}

func (co *Coordinator) emitUserList() {
	co.broadcastAll(EventUserList, UserList{Users: co.sessions.list()})
}
