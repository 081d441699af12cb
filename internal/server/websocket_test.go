package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// readWireEnvelope reads and decodes one frame from a live connection.
func readWireEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatal(err)
	}
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("decode frame %q: %v", raw, err)
	}
	return env
}

func decodeChat(t *testing.T, env Envelope) ChatMessage {
	t.Helper()
	if env.Event != EventMessage {
		t.Fatalf("expected message frame, got %q", env.Event)
	}
	var msg ChatMessage
	if err := json.Unmarshal(env.Data, &msg); err != nil {
		t.Fatal(err)
	}
	return msg
}

// TestWebSocketEndToEnd drives two real websocket clients through connect,
// chat, and disconnect against the full HTTP stack and the global hub.
func TestWebSocketEndToEnd(t *testing.T) {
	cfg := NewConfig()
	cfg.AllowedOrigins = []string{"*"}
	SetConfig(cfg)
	defer SetConfig(nil)

	StartHub()
	ts := httptest.NewServer(SetupRoutes())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	header := http.Header{"Origin": {"http://test.example"}}

	first, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("dial first client: %v", err)
	}
	defer first.Close()

	welcome := decodeChat(t, readWireEnvelope(t, first))
	if welcome.Type != kindSystem || !strings.HasPrefix(welcome.Text, "Welcome to the chat, Guest_") {
		t.Fatalf("unexpected welcome %+v", welcome)
	}
	if env := readWireEnvelope(t, first); env.Event != EventUserList {
		t.Fatalf("expected user_list after welcome, got %q", env.Event)
	}

	second, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("dial second client: %v", err)
	}
	defer second.Close()

	// The second client gets its own welcome and user list.
	decodeChat(t, readWireEnvelope(t, second))
	if env := readWireEnvelope(t, second); env.Event != EventUserList {
		t.Fatalf("expected user_list for second client, got %q", env.Event)
	}

	// The first client sees the join notice and a refreshed list.
	join := decodeChat(t, readWireEnvelope(t, first))
	if !strings.Contains(join.Text, "has joined the chat") {
		t.Fatalf("expected join notice, got %+v", join)
	}
	if env := readWireEnvelope(t, first); env.Event != EventUserList {
		t.Fatalf("expected refreshed user_list, got %q", env.Event)
	}

	// Chat flows to both participants, sender included.
	frame, _ := json.Marshal(Envelope{
		Event: EventChatMessage,
		Data:  json.RawMessage(`{"text":"hello relay"}`),
	})
	if err := first.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatalf("send chat: %v", err)
	}
	for name, conn := range map[string]*websocket.Conn{"sender": first, "other": second} {
		msg := decodeChat(t, readWireEnvelope(t, conn))
		if msg.Type != kindChat || msg.Text != "hello relay" {
			t.Fatalf("%s: unexpected chat frame %+v", name, msg)
		}
	}

	// Disconnecting the second client notifies the first.
	if err := second.Close(); err != nil {
		t.Fatal(err)
	}
	leave := decodeChat(t, readWireEnvelope(t, first))
	if !strings.Contains(leave.Text, "has left the chat") {
		t.Fatalf("expected leave notice, got %+v", leave)
	}
	if env := readWireEnvelope(t, first); env.Event != EventUserList {
		t.Fatalf("expected user_list after leave, got %q", env.Event)
	}
}

// TestWebSocketRejectsDisallowedOrigin verifies the upgrade-time origin
// check against the configured allow list.
func TestWebSocketRejectsDisallowedOrigin(t *testing.T) {
	cfg := NewConfig()
	cfg.AllowedOrigins = []string{"http://allowed.example"}
	SetConfig(cfg)
	defer SetConfig(nil)

	ts := httptest.NewServer(SetupRoutes())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	header := http.Header{"Origin": {"http://denied.example"}}

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err == nil {
		conn.Close()
		t.Fatal("dial succeeded from a disallowed origin")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 handshake response, got %+v", resp)
	}
}
