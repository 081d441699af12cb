// Package server coordinates client registration, inbound event dispatch,
// and connection cleanup for the chat relay via the Hub type.
package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// inboundEvent pairs a decoded frame with the client that produced it.
type inboundEvent struct {
	client   *Client
	envelope Envelope
}

// Hub owns all WebSocket client connections. Its run loop is the single
// goroutine that feeds the coordinator, so registry and history mutations
// never interleave across clients.
type Hub struct {
	coordinator *Coordinator
	clients     map[*Client]bool
	register    chan *Client
	unregister  chan *Client
	inbound     chan inboundEvent
	mutex       sync.RWMutex
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewHub creates and initializes a new Hub instance with all necessary
// channels, an empty client map, and a fresh coordinator.
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		coordinator: NewCoordinator(),
		clients:     make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		inbound:     make(chan inboundEvent),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
}

// Coordinator returns the hub's broadcast coordinator for read-only
// snapshots.
func (h *Hub) Coordinator() *Coordinator {
	return h.coordinator
}

// GetRegisterChan returns the channel used for registering new clients to the hub.
// This channel is write-only from the caller's perspective.
func (h *Hub) GetRegisterChan() chan<- *Client {
	return h.register
}

// GetUnregisterChan returns the channel used for unregistering clients from the hub.
// This channel is write-only from the caller's perspective.
func (h *Hub) GetUnregisterChan() chan<- *Client {
	return h.unregister
}

// Run starts the hub's main event loop, handling client registration,
// unregistration, and inbound event dispatch. This method should be called
// in a separate goroutine as it runs indefinitely.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				logger.Warn().Msg("received nil client registration; skipping")
				continue
			}
			h.handleRegister(client)

		case client := <-h.unregister:
			h.handleUnregister(client)

		case ev := <-h.inbound:
			h.dispatch(ev)
		}
	}
}

var hub = NewHub()

func (h *Hub) handleRegister(client *Client) {
	h.mutex.Lock()
	h.clients[client] = true
	clientCount := len(h.clients)
	h.mutex.Unlock()
	logger.Debug().
		Str("session_id", client.id).
		Str("remote_addr", client.addr).
		Int("total_clients", clientCount).
		Msg("client registered")

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()

	h.coordinator.Connect(client.id, client.addr, client)
}

func (h *Hub) handleUnregister(client *Client) {
	h.mutex.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mutex.Unlock()
		return
	}
	delete(h.clients, client)
	clientCount := len(h.clients)
	h.mutex.Unlock()

	// Mark before closing so a late Deliver cannot hit a closed channel.
	client.markClosed()
	close(client.send)
	logger.Debug().
		Str("session_id", client.id).
		Int("total_clients", clientCount).
		Msg("client unregistered")

	h.coordinator.Disconnect(client.id)
}

// dispatch routes one decoded inbound frame into the coordinator. Unknown
// events and malformed payloads are dropped, never fatal.
func (h *Hub) dispatch(ev inboundEvent) {
	switch ev.envelope.Event {
	case EventChatMessage:
		var p ChatPayload
		if !decodePayload(ev, &p) {
			return
		}
		h.coordinator.ChatMessage(ev.client.id, p.Text)

	case EventSetUsername:
		var p UsernamePayload
		if !decodePayload(ev, &p) {
			return
		}
		h.coordinator.SetUsername(ev.client.id, p.Username)

	default:
		logger.Debug().
			Str("session_id", ev.client.id).
			Str("event", ev.envelope.Event).
			Msg("dropping unknown inbound event")
	}
}

func decodePayload(ev inboundEvent, dst any) bool {
	if len(ev.envelope.Data) == 0 {
		// Missing body degrades to the zero payload, which the
		// coordinator treats as a no-op.
		return true
	}
	if err := json.Unmarshal(ev.envelope.Data, dst); err != nil {
		logger.Debug().
			Str("session_id", ev.client.id).
			Str("event", ev.envelope.Event).
			Err(err).
			Msg("malformed inbound payload")
		return false
	}
	return true
}

// shutdownClients gracefully closes all active client connections.
func (h *Hub) shutdownClients() {
	logger.Info().Msg("shutting down all client connections")

	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.Unlock()

	for _, client := range clients {
		if client.conn != nil {
			if err := client.conn.Close(); err != nil {
				if !isExpectedCloseError(err) {
					logger.Warn().
						Str("remote_addr", client.addr).
						Err(err).
						Msg("error closing client connection")
				}
			}
		}
	}

	logger.Info().Int("count", len(clients)).Msg("closed client connections")
}

// Shutdown initiates graceful shutdown of the hub and waits for all
// goroutines to complete, or until the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	logger.Info().Msg("initiating hub shutdown")

	h.cancel()

	// Wait for Run() to complete.
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info().Msg("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		logger.Warn().Msg("hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
