// Package server exposes HTTP handlers: the WebSocket upgrade endpoint,
// status and stats pages, health checks, and the built-in browser client.
package server

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// WebSocketHandler handles WebSocket upgrade requests. It mints a fresh
// session id for the connection, creates a Client, and hands it to the hub;
// the hub launches the pump goroutines and registers the session.
func WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Str("remote_addr", r.RemoteAddr).Err(err).Msg("websocket upgrade failed")
		return
	}

	client := NewClient(conn, hub, uuid.NewString(), r.RemoteAddr)

	// Register the client with the hub; the hub launches the pump goroutines.
	client.hub.register <- client
}

// HealthHandler provides a simple health check endpoint that returns server status.
// It responds with a plain text message indicating the server is running.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "IPChat server is running!")
}

// StatsHandler returns a JSON snapshot of active users, stored message
// count, and process uptime in seconds.
func StatsHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(hub.Coordinator().Snapshot()); err != nil {
		logger.Warn().Err(err).Msg("error writing stats response")
	}
}

var statusTmpl = template.Must(template.New("status").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>IPChat Server</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; color: #333; }
        .card { border: 1px solid #ccc; border-radius: 5px; padding: 20px; max-width: 480px; }
        h1 { margin-top: 0; }
        a { color: #007cba; }
    </style>
</head>
<body>
    <div class="card">
        <h1>IPChat Server</h1>
        <p>Server is up and running.</p>
        <p>Active users: <strong>{{.ActiveUsers}}</strong></p>
        <p>Messages in history: <strong>{{.MessageCount}}</strong></p>
        <p>Uptime: <strong>{{.UptimeText}}</strong></p>
        <p><a href="/client">Open the chat client</a></p>
    </div>
</body>
</html>`))

// StatusHandler serves the landing page with live server statistics.
func StatusHandler(w http.ResponseWriter, _ *http.Request) {
	stats := hub.Coordinator().Snapshot()
	data := struct {
		ActiveUsers  int
		MessageCount int
		UptimeText   string
	}{
		ActiveUsers:  stats.ActiveUsers,
		MessageCount: stats.MessageCount,
		UptimeText:   (time.Duration(stats.Uptime) * time.Second).String(),
	}

	w.Header().Set("Content-Type", "text/html")
	if err := statusTmpl.Execute(w, data); err != nil {
		logger.Warn().Err(err).Msg("error rendering status page")
	}
}

// ClientPageHandler serves the embedded browser chat client. The page speaks
// the envelope protocol: it de-duplicates messages by id, honors the clear
// flag, and supports username changes and the user list.
func ClientPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	html := `<!DOCTYPE html>
<html>
<head>
    <title>IPChat</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #layout { display: flex; gap: 20px; }
        #main { flex: 1; }
        #messages {
            border: 1px solid #ccc;
            height: 360px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
        }
        #users {
            border: 1px solid #ccc;
            width: 180px;
            padding: 10px;
            background-color: #f9f9f9;
        }
        #users ul { list-style: none; padding-left: 0; }
        input[type="text"] { padding: 5px; margin-right: 5px; }
        #messageInput { width: 300px; }
        button {
            padding: 5px 15px;
            background-color: #007cba;
            color: white;
            border: none;
            cursor: pointer;
        }
        button:hover { background-color: #005a87; }
        .status { margin: 10px 0; padding: 5px; border-radius: 3px; }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
        .system { color: gray; font-style: italic; }
        .chat .username { font-weight: bold; }
        .timestamp { color: #999; font-size: 0.8em; margin-right: 6px; }
        .error { color: #721c24; }
    </style>
</head>
<body>
    <h1>IPChat</h1>

    <div id="status" class="status disconnected">Disconnected</div>

    <div>
        <button id="connectButton" onclick="toggleConnection()">Connect</button>
        <input type="text" id="usernameInput" placeholder="New username" disabled>
        <button id="usernameButton" onclick="changeUsername()" disabled>Change name</button>
        <span id="usernameError" class="error"></span>
    </div>

    <div id="layout">
        <div id="main">
            <div id="messages"></div>
            <input type="text" id="messageInput" placeholder="Type a message... (/clear clears your view)" disabled>
            <button id="sendButton" onclick="sendMessage()" disabled>Send</button>
        </div>
        <div id="users"><strong>Users</strong><ul id="userList"></ul></div>
    </div>

    <script>
        let ws = null;
        let currentUsername = null;
        const seen = new Set();
        const messagesDiv = document.getElementById('messages');
        const messageInput = document.getElementById('messageInput');
        const usernameInput = document.getElementById('usernameInput');
        const usernameError = document.getElementById('usernameError');
        const userList = document.getElementById('userList');
        const statusDiv = document.getElementById('status');

        function setEnabled(connected) {
            messageInput.disabled = !connected;
            usernameInput.disabled = !connected;
            document.getElementById('sendButton').disabled = !connected;
            document.getElementById('usernameButton').disabled = !connected;
            document.getElementById('connectButton').textContent = connected ? 'Disconnect' : 'Connect';
            statusDiv.textContent = connected ? 'Connected' : 'Disconnected';
            statusDiv.className = 'status ' + (connected ? 'connected' : 'disconnected');
        }

        function appendMessage(msg) {
            if (msg.id) {
                if (seen.has(msg.id)) return;
                seen.add(msg.id);
            }
            if (msg.clear) {
                messagesDiv.innerHTML = '';
            }
            const el = document.createElement('div');
            el.className = msg.type;
            const ts = document.createElement('span');
            ts.className = 'timestamp';
            ts.textContent = msg.timestamp || '';
            el.appendChild(ts);
            if (msg.type === 'chat') {
                const name = document.createElement('span');
                name.className = 'username';
                name.textContent = msg.username + ': ';
                el.appendChild(name);
            }
            el.appendChild(document.createTextNode(msg.text));
            messagesDiv.appendChild(el);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        function renderUserList(users) {
            userList.innerHTML = '';
            users.forEach(function(user) {
                const li = document.createElement('li');
                li.textContent = user.username + (user.username === currentUsername ? ' (you)' : '');
                userList.appendChild(li);
            });
        }

        function connect() {
            const scheme = location.protocol === 'https:' ? 'wss' : 'ws';
            ws = new WebSocket(scheme + '://' + location.host + '/ws');

            ws.onopen = function() { setEnabled(true); };

            ws.onmessage = function(event) {
                const frame = JSON.parse(event.data);
                switch (frame.event) {
                case 'message':
                    appendMessage(frame.data);
                    break;
                case 'user_list':
                    renderUserList(frame.data.users);
                    break;
                case 'username_changed':
                    currentUsername = frame.data.username;
                    usernameInput.value = currentUsername;
                    usernameError.textContent = '';
                    break;
                case 'username_error':
                    usernameError.textContent = frame.data.error;
                    break;
                }
            };

            ws.onclose = function() {
                setEnabled(false);
                ws = null;
            };
        }

        function toggleConnection() {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.close();
            } else {
                connect();
            }
        }

        function sendMessage() {
            const text = messageInput.value.trim();
            if (text && ws && ws.readyState === WebSocket.OPEN) {
                ws.send(JSON.stringify({event: 'chat_message', data: {text: text}}));
                messageInput.value = '';
            }
        }

        function changeUsername() {
            const username = usernameInput.value.trim();
            if (username && ws && ws.readyState === WebSocket.OPEN) {
                ws.send(JSON.stringify({event: 'set_username', data: {username: username}}));
            }
        }

        messageInput.addEventListener('keypress', function(e) {
            if (e.key === 'Enter') sendMessage();
        });
        usernameInput.addEventListener('keypress', function(e) {
            if (e.key === 'Enter') changeUsername();
        });
    </script>
</body>
</html>`
	if _, err := fmt.Fprint(w, html); err != nil {
		logger.Warn().Err(err).Msg("error writing client page")
	}
}
