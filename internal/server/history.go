package server

const (
	// maxHistory bounds the shared transcript kept for newcomers.
	maxHistory = 100
	// maxHistoryToSend bounds the replay sent to a newly connected client.
	maxHistoryToSend = 20
)

// historyBuffer is a bounded FIFO of chat messages in chronological order.
// Only chat-kind messages are ever appended; system messages are transient.
// The coordinator serializes every access.
type historyBuffer struct {
	entries []ChatMessage
	limit   int
}

func newHistoryBuffer(limit int) *historyBuffer {
	return &historyBuffer{limit: limit}
}

// append stores msg, evicting the oldest entry once the cap is exceeded.
func (h *historyBuffer) append(msg ChatMessage) {
	h.entries = append(h.entries, msg)
	if len(h.entries) > h.limit {
		h.entries = h.entries[1:]
	}
}

// recent returns up to the last n messages in chronological order.
// The returned slice is a copy and safe to hold after the call.
func (h *historyBuffer) recent(n int) []ChatMessage {
	if n > len(h.entries) {
		n = len(h.entries)
	}
	if n == 0 {
		return nil
	}
	out := make([]ChatMessage, n)
	copy(out, h.entries[len(h.entries)-n:])
	return out
}

func (h *historyBuffer) size() int {
	return len(h.entries)
}
